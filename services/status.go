package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fleet-keeper/internal/env"
	"fleet-keeper/internal/logger"
	"fleet-keeper/internal/models"
)

/**
 * Status 生成组件集群的状态报告
 * @param {context.Context} ctx - 上下文
 * @returns {models.StatusReport} 状态报告
 * @description
 * - 只包含未被排除的组件
 * - 运行中的组件会重新探测健康状态
 * - 进程已退出但尚未被移除的组件状态为stopped
 */
func (o *Orchestrator) Status(ctx context.Context) models.StatusReport {
	report := models.StatusReport{
		Timestamp:  time.Now(),
		Deployment: o.cfg.Deployment.Kind,
		Components: []models.ComponentStatus{},
	}
	excluded := o.registry.Excluded()
	for _, spec := range o.registry.Specs() {
		if excluded[spec.Name] {
			continue
		}
		status := o.componentStatus(ctx, spec)

		report.Summary.Total++
		if spec.Critical {
			report.Summary.CriticalTotal++
		}
		switch status.State {
		case models.StateHealthy:
			report.Summary.Healthy++
			fallthrough
		case models.StateUnhealthy:
			report.Summary.Running++
			if spec.Critical {
				report.Summary.CriticalRunning++
			}
		}
		report.Components = append(report.Components, status)
	}
	return report
}

/**
 * ComponentStatus 返回单个组件的状态
 * @param {context.Context} ctx - 上下文
 * @param {string} name - 组件名
 * @returns {models.ComponentStatus} 组件状态
 * @returns {error} 组件不存在时返回ErrUnknownComponent
 */
func (o *Orchestrator) ComponentStatus(ctx context.Context, name string) (models.ComponentStatus, error) {
	spec, ok := o.registry.Get(name)
	if !ok {
		return models.ComponentStatus{}, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	return o.componentStatus(ctx, spec), nil
}

func (o *Orchestrator) componentStatus(ctx context.Context, spec models.ComponentSpec) models.ComponentStatus {
	status := models.ComponentStatus{
		Name:         spec.Name,
		Category:     spec.Category,
		Critical:     spec.Critical,
		DependsOn:    spec.DependsOn,
		Dependents:   o.registry.Dependents(spec.Name),
		State:        models.StateNotRunning,
		Port:         spec.Port,
		RestartCount: o.supervisor.RestartCount(spec.Name),
	}
	inst, ok := o.supervisor.Instance(spec.Name)
	if !ok {
		return status
	}
	detail := inst.Detail()
	if inst.Liveness() != models.LivenessAlive {
		status.State = models.StateStopped
		status.LastExit = detail.LastExitReason
		return status
	}
	status.Pid = detail.Pid
	status.Uptime = time.Since(detail.StartTime).Truncate(time.Second).String()
	if o.checker.Probe(ctx, inst) {
		status.State = models.StateHealthy
	} else {
		status.State = models.StateUnhealthy
	}
	return status
}

// GetHealthz 守护进程自身的健康状态
func (o *Orchestrator) GetHealthz() models.HealthResponse {
	return models.HealthResponse{
		Version:   env.Version,
		StartTime: o.startTime.Format(time.RFC3339),
		Status:    "UP",
		Uptime:    time.Since(o.startTime).Truncate(time.Second).String(),
		Running:   len(o.supervisor.Order()),
		Requests:  GetTotalRequestCount(),
		Errors:    GetTotalErrorCount(),
	}
}

// exportStatus 把状态报告写入状态文件，供外部工具读取
func (o *Orchestrator) exportStatus(ctx context.Context) {
	path := o.cfg.Monitor.StatusFile
	if path == "" {
		return
	}
	if err := writeStatusFile(path, o.Status(ctx)); err != nil {
		logger.Errorf("Failed to export status to file [%s]: %v", path, err)
	}
}

func writeStatusFile(path string, report models.StatusReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory failed: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("json encoding failed: %w", err)
	}
	// 先写临时文件再改名
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write file failed: %w", err)
	}
	return os.Rename(tmp, path)
}
