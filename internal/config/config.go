package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fleet-keeper/internal/env"
	"fleet-keeper/internal/models"

	"github.com/spf13/viper"
)

/**
 * Server configuration parameters
 * @property {string} address - Daemon listening address (e.g. "127.0.0.1:8999")
 * @property {string} mode - Gin mode (debug/release/test)
 */
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"`
}

/**
 * Logging configuration
 * @property {string} level - Log level (debug/info/warn/error)
 * @property {string} path - Log file path, "console" writes to stdout only
 */
type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

/**
 * Supervision timings and limits
 * @property {time.Duration} interval - Monitor loop poll interval
 * @property {time.Duration} gracePeriod - Wait after SIGTERM before SIGKILL
 * @property {time.Duration} restartPause - Pause between stop and start of a restart
 * @property {time.Duration} fleetRestartPause - Pause between stop-all and start-all
 * @property {int} maxRestarts - Restart ceiling of the on_failure policy
 * @property {time.Duration} tcpTimeout - TCP reachability probe timeout
 * @property {time.Duration} httpTimeout - HTTP health endpoint probe timeout
 * @property {string} statusFile - JSON file refreshed with the status report after every monitor iteration, empty disables it
 */
type MonitorConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	GracePeriod       time.Duration `mapstructure:"grace_period"`
	RestartPause      time.Duration `mapstructure:"restart_pause"`
	FleetRestartPause time.Duration `mapstructure:"fleet_restart_pause"`
	MaxRestarts       int           `mapstructure:"max_restarts"`
	TCPTimeout        time.Duration `mapstructure:"tcp_timeout"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	StatusFile        string        `mapstructure:"status_file"`
}

/**
 * Deployment metadata, loaded once and never changed by the control loops
 * @property {string} kind - Deployment kind (development/production/...)
 * @property {string} installDir - Installation root, base of relative launch targets
 */
type DeploymentConfig struct {
	Kind       string `mapstructure:"kind"`
	InstallDir string `mapstructure:"install_dir"`
}

type AppConfig struct {
	Server     ServerConfig           `mapstructure:"server"`
	Log        LogConfig              `mapstructure:"log"`
	Monitor    MonitorConfig          `mapstructure:"monitor"`
	Deployment DeploymentConfig       `mapstructure:"deployment"`
	Components []models.ComponentSpec `mapstructure:"components"`
}

const (
	DefaultAddress           = "127.0.0.1:8999"
	DefaultInterval          = 30 * time.Second
	DefaultGracePeriod       = 10 * time.Second
	DefaultRestartPause      = 2 * time.Second
	DefaultFleetRestartPause = 5 * time.Second
	DefaultMaxRestarts       = 3
	DefaultTCPTimeout        = 2 * time.Second
	DefaultHTTPTimeout       = 5 * time.Second
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", DefaultAddress)
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "")
	v.SetDefault("monitor.interval", DefaultInterval)
	v.SetDefault("monitor.grace_period", DefaultGracePeriod)
	v.SetDefault("monitor.restart_pause", DefaultRestartPause)
	v.SetDefault("monitor.fleet_restart_pause", DefaultFleetRestartPause)
	v.SetDefault("monitor.max_restarts", DefaultMaxRestarts)
	v.SetDefault("monitor.tcp_timeout", DefaultTCPTimeout)
	v.SetDefault("monitor.http_timeout", DefaultHTTPTimeout)
	v.SetDefault("deployment.kind", "development")
}

// Default 返回只包含默认值的配置，不读取任何文件
func Default() *AppConfig {
	v := viper.New()
	setDefaults(v)
	var cfg AppConfig
	_ = v.Unmarshal(&cfg)
	collectConfig(&cfg)
	return &cfg
}

/**
 * Load application configuration
 * @param {string} path - Explicit config file, empty means searching fleet.yaml
 * @returns {*AppConfig} Loaded configuration
 * @returns {error} ConfigError when the file is unreadable or the registry is invalid
 * @description
 * - Searches ".", "$HOME/.fleet-keeper" for fleet.yaml when no path is given
 * - Environment variables prefixed FLEET_ override file values
 * - A missing default config file is not an error, defaults are used
 * - Durations need a unit suffix ("5s", "500ms"); a bare non-zero number is rejected
 * - Validates the component registry before returning
 */
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fleet")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if env.FleetDir != "" {
			v.AddConfigPath(env.FleetDir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, &ConfigError{Msg: "read config failed", Err: err}
		}
	}

	if err := checkDurations(v); err != nil {
		return nil, err
	}
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Msg: "unmarshal config failed", Err: err}
	}
	collectConfig(&cfg)

	if _, err := NewRegistry(cfg.Components, cfg.Deployment.InstallDir); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var durationKeys = []string{
	"monitor.interval",
	"monitor.grace_period",
	"monitor.restart_pause",
	"monitor.fleet_restart_pause",
	"monitor.tcp_timeout",
	"monitor.http_timeout",
}

// checkDurations 拒绝没有单位的时长，解码器会把裸数字当作纳秒
func checkDurations(v *viper.Viper) error {
	for _, key := range durationKeys {
		if val := v.Get(key); !hasUnit(val) {
			return &ConfigError{Msg: fmt.Sprintf("%s '%v' needs a unit suffix, e.g. \"5s\"", key, val)}
		}
	}
	items, _ := v.Get("components").([]interface{})
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if val, ok := m["startup_delay"]; ok && !hasUnit(val) {
			name, _ := m["name"].(string)
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return invalidf(name, "startup_delay '%v' needs a unit suffix, e.g. \"5s\"", val)
		}
	}
	return nil
}

func hasUnit(val any) bool {
	switch n := val.(type) {
	case int:
		return n == 0
	case int64:
		return n == 0
	case uint64:
		return n == 0
	case float64:
		return n == 0
	}
	return true
}

func collectConfig(cfg *AppConfig) *AppConfig {
	if cfg.Server.Address == "" {
		cfg.Server.Address = DefaultAddress
	}
	if cfg.Deployment.InstallDir == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.Deployment.InstallDir = wd
		}
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = filepath.Join(cfg.Deployment.InstallDir, "logs", "fleet-keeper.log")
	}
	for i := range cfg.Components {
		if cfg.Components[i].RestartPolicy == "" {
			cfg.Components[i].RestartPolicy = models.RestartManual
		}
	}
	return cfg
}
