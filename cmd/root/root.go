package root

import (
	"fleet-keeper/internal/config"
	"fleet-keeper/internal/env"
	"fleet-keeper/internal/logger"

	"github.com/spf13/cobra"
)

// ModeDaemon 标记以守护进程方式运行的命令
const ModeDaemon = "daemon"

var (
	ConfigFile string
	LogLevel   string
	// Config 由PersistentPreRunE加载，子命令的Run中可直接使用
	Config *config.AppConfig
)

var RootCmd = &cobra.Command{
	Use:   "fleet-keeper",
	Short: "组件集群编排器",
	Long: `fleet-keeper按依赖顺序启动一组外部进程，持续探测它们的健康状态，
按重启策略自动恢复，并在关键组件失败时发出告警`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

/**
 * Load configuration and initialize the logger before any subcommand runs
 * @param {*cobra.Command} cmd - Command being executed
 * @returns {error} ConfigError if the configuration or registry is invalid
 * @description
 * - Daemon commands log to the log file and the console
 * - Other commands log to the log file only, console output is left to the command
 */
func loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(ConfigFile)
	if err != nil {
		return err
	}
	if LogLevel != "" {
		cfg.Log.Level = LogLevel
	}
	Config = cfg
	env.Daemon = cmd.Annotations["mode"] == ModeDaemon
	logger.InitLogger(cfg.Log.Path, cfg.Log.Level, env.Daemon)
	return nil
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&ConfigFile, "config", "c", "", "配置文件路径 (默认查找 ./fleet.yaml, ~/.fleet-keeper/fleet.yaml)")
	RootCmd.PersistentFlags().StringVar(&LogLevel, "log-level", "", "日志级别 (debug/info/warn/error)")
}
