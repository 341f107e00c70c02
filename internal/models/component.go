package models

import (
	"path/filepath"
	"time"
)

type RestartPolicy string

const (
	// 不健康时无条件重启，没有次数上限
	RestartAlways RestartPolicy = "always"
	// 不健康时重启，达到次数上限后不再自动重启，需要人工介入
	RestartOnFailure RestartPolicy = "on_failure"
	// 不自动重启，只报告
	RestartManual RestartPolicy = "manual"
)

// Category 组件的生命周期类别，仅用于展示，不影响调度
type Category string

const (
	CategoryContinuous  Category = "continuous"
	CategoryPeriodic    Category = "periodic"
	CategoryScheduled   Category = "scheduled"
	CategoryOnDemand    Category = "on_demand"
	CategoryEventDriven Category = "event_driven"
)

/**
 * Component definition (immutable after loading)
 * @property {string} name - Unique component name
 * @property {string} executable - Launch target, relative paths are resolved against the install dir
 * @property {string} interpreter - Optional interpreter used to run the launch target
 * @property {[]string} args - Extra command line arguments
 * @property {string} workDir - Working directory, defaults to the install dir
 * @property {int} port - Optional TCP port of the network contract
 * @property {string} healthPath - Optional HTTP health endpoint path
 * @property {[]string} dependsOn - Names of components that must be alive first
 * @property {bool} critical - Startup failure aborts the fleet, runtime failure raises an alert
 * @property {RestartPolicy} restartPolicy - always/on_failure/manual
 * @property {time.Duration} startupDelay - Time to wait after spawn before the component counts as up
 * @property {Category} category - Lifecycle category (informational)
 * @property {string} schedule - Free text schedule (informational)
 * @property {bool} optional - Silently excluded when the launch target is missing
 */
type ComponentSpec struct {
	Name          string        `mapstructure:"name" json:"name"`
	Executable    string        `mapstructure:"executable" json:"executable"`
	Interpreter   string        `mapstructure:"interpreter" json:"interpreter,omitempty"`
	Args          []string      `mapstructure:"args" json:"args,omitempty"`
	WorkDir       string        `mapstructure:"work_dir" json:"workDir,omitempty"`
	Port          int           `mapstructure:"port" json:"port,omitempty"`
	HealthPath    string        `mapstructure:"health_path" json:"healthPath,omitempty"`
	DependsOn     []string      `mapstructure:"depends_on" json:"dependsOn,omitempty"`
	Critical      bool          `mapstructure:"critical" json:"critical"`
	RestartPolicy RestartPolicy `mapstructure:"restart_policy" json:"restartPolicy"`
	StartupDelay  time.Duration `mapstructure:"startup_delay" json:"startupDelay"`
	Category      Category      `mapstructure:"category" json:"category,omitempty"`
	Schedule      string        `mapstructure:"schedule" json:"schedule,omitempty"`
	Optional      bool          `mapstructure:"optional" json:"optional,omitempty"`
}

// LaunchTarget 返回启动目标的绝对路径(相对路径基于安装目录)
func (cs *ComponentSpec) LaunchTarget(installDir string) string {
	if cs.Executable == "" || filepath.IsAbs(cs.Executable) || installDir == "" {
		return cs.Executable
	}
	return filepath.Join(installDir, cs.Executable)
}

// HasHealthEndpoint 只有同时声明了端口和路径才做HTTP检查
func (cs *ComponentSpec) HasHealthEndpoint() bool {
	return cs.Port > 0 && cs.HealthPath != ""
}
