package models

import "time"

type ComponentState string

const (
	StateHealthy    ComponentState = "healthy"
	StateUnhealthy  ComponentState = "unhealthy"
	StateStopped    ComponentState = "stopped"
	StateNotRunning ComponentState = "not_running"
)

// ComponentStatus 单个组件的状态报告
// @Description 组件运行状态
type ComponentStatus struct {
	Name         string         `json:"name" example:"ai_server"`
	Category     Category       `json:"category" example:"continuous"`
	Critical     bool           `json:"critical" example:"true"`
	DependsOn    []string       `json:"dependsOn"`
	Dependents   []string       `json:"dependents,omitempty"`
	State        ComponentState `json:"state" example:"healthy"`
	Pid          int            `json:"pid,omitempty" example:"1234"`
	Uptime       string         `json:"uptime,omitempty" example:"1h30m45s"`
	RestartCount int            `json:"restartCount" example:"0"`
	Port         int            `json:"port,omitempty" example:"5000"`
	LastExit     string         `json:"lastExit,omitempty" example:"exited with error: exit status 1"`
}

// StatusSummary 整个组件集群的汇总计数
type StatusSummary struct {
	Total           int `json:"total" example:"12"`
	Running         int `json:"running" example:"10"`
	Healthy         int `json:"healthy" example:"9"`
	CriticalRunning int `json:"criticalRunning" example:"5"`
	CriticalTotal   int `json:"criticalTotal" example:"5"`
}

// StatusReport 状态报告，只包含未被排除的组件
// @Description 组件集群状态报告
type StatusReport struct {
	Timestamp  time.Time         `json:"timestamp" example:"2024-01-01T10:00:00Z"`
	Deployment string            `json:"deployment" example:"development"`
	Components []ComponentStatus `json:"components"`
	Summary    StatusSummary     `json:"summary"`
}

// CriticalAlert 关键组件在一次监控周期结束时处于失败状态
// @Description 关键组件告警
type CriticalAlert struct {
	ID         string    `json:"id" example:"7a3c8f2e-0f4d-4a8e-9c57-1f2b3c4d5e6f"`
	Time       time.Time `json:"time" example:"2024-01-01T10:00:00Z"`
	Components []string  `json:"components"`
}

// CheckResponse 立即执行一次监控周期的结果
type CheckResponse struct {
	Timestamp time.Time    `json:"timestamp"`
	Failed    []string     `json:"failed"`
	Status    StatusReport `json:"status"`
}

// HealthResponse 守护进程自身的健康检查响应
type HealthResponse struct {
	Version   string `json:"version" example:"1.0.0"`
	StartTime string `json:"startTime" example:"2024-01-01T10:00:00Z"`
	Status    string `json:"status" example:"UP"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
	Running   int    `json:"running" example:"3"`
	Requests  int64  `json:"requests" example:"120"`
	Errors    int64  `json:"errors" example:"2"`
}

// ErrorResponse defines API error response format
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// ComponentLogs 组件输出日志的最后若干行
type ComponentLogs struct {
	Name  string   `json:"name" example:"ai_server"`
	File  string   `json:"file" example:"/opt/fleet/logs/ai_server.log"`
	Lines []string `json:"lines"`
}

// LogFileInfo 日志目录中的一个日志文件
type LogFileInfo struct {
	Name    string `json:"name" example:"ai_server"`
	File    string `json:"file"`
	Size    int64  `json:"size" example:"10240"`
	ModTime string `json:"modTime" example:"2024-01-01T10:00:00Z"`
}
