package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fleet-keeper/internal/config"
	"fleet-keeper/internal/health"
	"fleet-keeper/internal/logger"
	"fleet-keeper/internal/resolver"
)

/**
 * Orchestrator 组件集群编排器
 * @property {*config.AppConfig} cfg - 应用配置，运行期间只读
 * @property {*config.Registry} registry - 组件注册表
 * @property {*Supervisor} supervisor - 进程监管器
 * @property {*PolicyEngine} policy - 重启策略引擎
 * @property {health.Checker} checker - 健康探测器
 * @property {*AlertCenter} alerts - 告警中心
 * @property {*LogService} logs - 组件输出日志
 */
type Orchestrator struct {
	cfg        *config.AppConfig
	registry   *config.Registry
	supervisor *Supervisor
	policy     *PolicyEngine
	checker    health.Checker
	alerts     *AlertCenter
	logs       *LogService
	startTime  time.Time

	running      atomic.Bool
	closed       atomic.Bool
	iterMutex    sync.Mutex
	shutdownOnce sync.Once
	shutdownErr  error
}

type Option func(*Orchestrator)

// WithChecker 替换默认的分层健康探测器
func WithChecker(checker health.Checker) Option {
	return func(o *Orchestrator) {
		o.checker = checker
	}
}

/**
 * Create orchestrator from configuration
 * @param {*config.AppConfig} cfg - Application configuration
 * @param {...Option} opts - Optional overrides
 * @returns {*Orchestrator} New orchestrator, nothing is started yet
 * @returns {error} ConfigError if the component registry is invalid
 */
func NewOrchestrator(cfg *config.AppConfig, opts ...Option) (*Orchestrator, error) {
	registry, err := config.NewRegistry(cfg.Components, cfg.Deployment.InstallDir)
	if err != nil {
		return nil, err
	}
	var logDir string
	if cfg.Deployment.InstallDir != "" {
		logDir = filepath.Join(cfg.Deployment.InstallDir, "logs")
	}
	o := &Orchestrator{
		cfg:      cfg,
		registry: registry,
		supervisor: NewSupervisor(registry, SupervisorOptions{
			GracePeriod:  cfg.Monitor.GracePeriod,
			RestartPause: cfg.Monitor.RestartPause,
			LogDir:       logDir,
		}),
		policy:    NewPolicyEngine(cfg.Monitor.MaxRestarts),
		checker:   health.NewProber(cfg.Monitor.TCPTimeout, cfg.Monitor.HTTPTimeout),
		alerts:    NewAlertCenter(),
		logs:      NewLogService(logDir),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *Orchestrator) Registry() *config.Registry {
	return o.registry
}

func (o *Orchestrator) Supervisor() *Supervisor {
	return o.supervisor
}

func (o *Orchestrator) Alerts() *AlertCenter {
	return o.alerts
}

func (o *Orchestrator) Logs() *LogService {
	return o.logs
}

func (o *Orchestrator) IsRunning() bool {
	return o.running.Load()
}

/**
 * StartAll 按依赖顺序启动所有组件
 * @param {context.Context} ctx - 取消时停止启动后续组件
 * @returns {error} SchedulingError或StartupError，全部成功返回nil
 * @description
 * - 依赖图无法调度时不启动任何组件
 * - 关键组件启动失败立即中止，已启动的组件保持运行
 * - 非关键组件失败只记录，继续启动后续组件
 */
func (o *Orchestrator) StartAll(ctx context.Context) error {
	order, err := resolver.Resolve(o.registry.Specs(), o.registry.Present)
	if err != nil {
		logger.Errorf("Resolve startup order failed: %v", err)
		return err
	}
	for name := range o.registry.Excluded() {
		logger.Infof("Optional component [%s] excluded, launch target not found", name)
	}
	logger.Infof("Startup order: [%s]", strings.Join(order, ", "))
	o.running.Store(true)

	var startupErr *StartupError
	fail := func(name string, err error) {
		if startupErr == nil {
			startupErr = &StartupError{Causes: make(map[string]error)}
		}
		startupErr.Failed = append(startupErr.Failed, name)
		startupErr.Causes[name] = err
	}

	for i, name := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Infof("[%d/%d] Starting component [%s]", i+1, len(order), name)
		err := o.StartComponent(ctx, name)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		spec, _ := o.registry.Get(name)
		fail(name, err)
		if spec.Critical {
			logger.Errorf("Critical component [%s] failed to start, aborting startup: %v", name, err)
			startupErr.Aborted = name
			return startupErr
		}
		logger.Warnf("Component [%s] failed to start: %v", name, err)
	}

	if startupErr != nil {
		logger.Warnf("Failed to start: %s", strings.Join(startupErr.Failed, ", "))
		return startupErr
	}
	logger.Infof("All %d components started", len(order))
	return nil
}

/**
 * StopAll 按实际启动顺序的逆序停止所有组件
 * @param {context.Context} ctx - 上下文
 * @returns {error} 所有停止错误的合并，单个失败不影响后续组件
 */
func (o *Orchestrator) StopAll(ctx context.Context) error {
	order := o.supervisor.Order()
	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		if err := o.supervisor.Stop(ctx, order[i]); err != nil {
			logger.Errorf("Failed to stop component [%s]: %v", order[i], err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RestartAll 停止全部组件，暂停后重新按依赖顺序启动
func (o *Orchestrator) RestartAll(ctx context.Context) error {
	logger.Info("Restarting all components")
	if err := o.StopAll(ctx); err != nil {
		logger.Warnf("Stop all components failed: %v", err)
	}
	if err := sleepContext(ctx, o.cfg.Monitor.FleetRestartPause); err != nil {
		return err
	}
	return o.StartAll(ctx)
}

// StartComponent 从头启动单个组件，清除其永久失败标记
func (o *Orchestrator) StartComponent(ctx context.Context, name string) error {
	if err := o.supervisor.Start(ctx, name); err != nil {
		return err
	}
	o.policy.Reset(name)
	return nil
}

func (o *Orchestrator) StopComponent(ctx context.Context, name string) error {
	if _, ok := o.registry.Get(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	return o.supervisor.Stop(ctx, name)
}

func (o *Orchestrator) RestartComponent(ctx context.Context, name string) error {
	return o.supervisor.Restart(ctx, name)
}

/**
 * RunOnce 执行一次监控周期
 * @param {context.Context} ctx - 上下文
 * @returns {[]string} 本周期失败的组件
 * @description
 * - 依次探测运行中的组件，不并发；多个调用方的周期串行执行
 * - 不健康的组件按重启策略处理，检查期间已被停止或替换的组件不重启
 * - 关闭之后不再重启任何组件
 * - 失败列表中有关键组件时发出告警
 * - 周期内的panic被恢复并记录，不影响下一周期
 */
func (o *Orchestrator) RunOnce(ctx context.Context) (failed []string) {
	o.iterMutex.Lock()
	defer o.iterMutex.Unlock()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Monitor iteration panic: %v", r)
		}
	}()
	defer monitorIterations.Inc()
	if o.closed.Load() {
		return nil
	}

	for _, name := range o.supervisor.Order() {
		if ctx.Err() != nil {
			return failed
		}
		inst, ok := o.supervisor.Instance(name)
		if !ok {
			continue
		}
		start := time.Now()
		healthy := o.checker.Probe(ctx, inst)
		recordProbe(name, healthy, time.Since(start).Seconds())
		if healthy {
			continue
		}

		spec := inst.Spec()
		count := o.supervisor.RestartCount(name)
		decision := o.policy.Decide(spec, count)
		logger.Warnf("Component [%s] is unhealthy, policy %s decides %s (restarts: %d)",
			name, spec.RestartPolicy, decision, count)

		switch decision {
		case DecisionRestart:
			restarted, err := o.supervisor.RestartIf(ctx, name, inst)
			if err != nil {
				logger.Errorf("Restart component [%s] failed: %v", name, err)
				failed = append(failed, name)
			} else if !restarted {
				logger.Infof("Component [%s] was stopped or replaced during the check, restart skipped", name)
			}
		default:
			failed = append(failed, name)
		}
	}

	var critical []string
	for _, name := range failed {
		if spec, ok := o.registry.Get(name); ok && spec.Critical {
			critical = append(critical, name)
		}
	}
	if len(critical) > 0 {
		o.alerts.Raise(critical)
	}
	return failed
}

/**
 * Monitor 监控循环
 * @param {context.Context} ctx - 取消时退出循环并关闭所有组件
 * @returns {error} 关闭过程中的错误
 * @description
 * - 立即执行第一次检查，之后按配置的间隔轮询
 * - 运行标志被清除(Shutdown)后循环在下一次轮询时退出
 */
func (o *Orchestrator) Monitor(ctx context.Context) error {
	interval := o.cfg.Monitor.Interval
	if interval <= 0 {
		interval = config.DefaultInterval
	}
	logger.Infof("Monitor loop started, interval %v", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if failed := o.RunOnce(ctx); len(failed) > 0 {
			logger.Warnf("Failed components: %s", strings.Join(failed, ", "))
		}
		o.exportStatus(ctx)

		select {
		case <-ctx.Done():
			logger.Info("Monitor loop interrupted, shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.shutdownTimeout())
			defer cancel()
			return o.Shutdown(shutdownCtx)
		case <-ticker.C:
		}
		if !o.running.Load() {
			logger.Info("Monitor loop stopped")
			return nil
		}
	}
}

/**
 * Shutdown 关闭编排器并停止所有组件
 * @param {context.Context} ctx - 上下文
 * @returns {error} StopAll的错误
 * @description
 * - 无论被调用多少次，只执行一次StopAll
 * - 先关闭监管器的自动重启，进行中的重启完成后再停止全部组件
 */
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.shutdownOnce.Do(func() {
		o.running.Store(false)
		o.closed.Store(true)
		o.supervisor.Close()
		logger.Info("Shutting down all components")
		o.shutdownErr = o.StopAll(ctx)
	})
	return o.shutdownErr
}

// 关闭时每个组件最多等待宽限期，再留出回收时间
func (o *Orchestrator) shutdownTimeout() time.Duration {
	grace := o.cfg.Monitor.GracePeriod
	if grace <= 0 {
		grace = config.DefaultGracePeriod
	}
	return time.Duration(len(o.supervisor.Order())+1) * (grace + 5*time.Second)
}
