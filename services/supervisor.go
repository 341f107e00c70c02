package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fleet-keeper/internal/config"
	"fleet-keeper/internal/logger"
	"fleet-keeper/internal/models"
	"fleet-keeper/internal/proc"
	"fleet-keeper/internal/utils"
)

/**
 * Instance 被监管的组件实例
 * @property {models.ComponentSpec} spec - 组件定义
 * @property {*proc.ProcessInstance} proc - 进程实例
 */
type Instance struct {
	spec models.ComponentSpec
	proc *proc.ProcessInstance
}

func (i *Instance) Spec() models.ComponentSpec {
	return i.spec
}

func (i *Instance) Liveness() models.Liveness {
	return i.proc.Liveness()
}

func (i *Instance) Pid() int {
	return i.proc.Pid()
}

func (i *Instance) StartTime() time.Time {
	return i.proc.GetStartTime()
}

func (i *Instance) Detail() models.ProcessDetail {
	return i.proc.GetDetail()
}

/**
 * SupervisorOptions 进程监管参数
 * @property {time.Duration} GracePeriod - SIGTERM之后等待退出的时间
 * @property {time.Duration} RestartPause - 重启时停止和启动之间的间隔，等待端口释放
 * @property {string} LogDir - 组件输出日志目录，为空则丢弃输出
 */
type SupervisorOptions struct {
	GracePeriod  time.Duration
	RestartPause time.Duration
	LogDir       string
}

/**
 * Supervisor 组件进程监管器
 * @description
 * - opMutex串行化所有启动/停止/重启操作，无论来自监控循环、API还是关闭流程
 * - mutex只保护状态表，读取状态不会被启动延迟阻塞
 * - running表中有记录当且仅当组件已启动且尚未被停止
 * - closed之后RestartIf不再重启任何组件
 */
type Supervisor struct {
	registry *config.Registry
	opts     SupervisorOptions
	excluded map[string]bool

	opMutex  sync.Mutex
	closed   bool
	mutex    sync.RWMutex
	running  map[string]*Instance
	order    []string
	restarts map[string]int
}

func NewSupervisor(registry *config.Registry, opts SupervisorOptions) *Supervisor {
	return &Supervisor{
		registry: registry,
		opts:     opts,
		excluded: registry.Excluded(),
		running:  make(map[string]*Instance),
		restarts: make(map[string]int),
	}
}

// Instance 返回运行中的组件实例
func (s *Supervisor) Instance(name string) (*Instance, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	inst, ok := s.running[name]
	return inst, ok
}

func (s *Supervisor) IsRunning(name string) bool {
	_, ok := s.Instance(name)
	return ok
}

// Order 返回实际启动顺序的副本，重启过的组件排在后面
func (s *Supervisor) Order() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return append([]string(nil), s.order...)
}

func (s *Supervisor) RestartCount(name string) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.restarts[name]
}

/**
 * Start 启动组件
 * @param {context.Context} ctx - 取消时中断启动等待
 * @param {string} name - 组件名
 * @returns {error} ErrUnknownComponent/ErrMissingExecutable/ErrDependencyNotReady/ErrStartupFailed
 * @description
 * - 已在运行则直接返回
 * - 进程已退出的实例先移除，再重新拉起
 * - 从停止状态重新启动，重启计数清零
 */
func (s *Supervisor) Start(ctx context.Context, name string) error {
	s.opMutex.Lock()
	defer s.opMutex.Unlock()

	if s.active(name) {
		return nil
	}
	s.mutex.Lock()
	s.restarts[name] = 0
	s.mutex.Unlock()
	return s.start(ctx, name)
}

/**
 * Stop 停止组件
 * @param {context.Context} ctx - 截止时间早于宽限期时缩短宽限期
 * @param {string} name - 组件名
 * @returns {error} 停止过程中的错误，实例无论如何都会被移除
 */
func (s *Supervisor) Stop(ctx context.Context, name string) error {
	s.opMutex.Lock()
	defer s.opMutex.Unlock()
	return s.stop(ctx, name)
}

/**
 * Restart 重启组件
 * @param {context.Context} ctx - 上下文
 * @param {string} name - 组件名
 * @returns {error} 启动阶段的错误
 * @description
 * - 只有运行中的组件重启才增加重启计数，计数在停止/启动之间保留
 * - 停止后暂停RestartPause，让端口释放
 */
func (s *Supervisor) Restart(ctx context.Context, name string) error {
	s.opMutex.Lock()
	defer s.opMutex.Unlock()
	return s.restart(ctx, name)
}

/**
 * RestartIf 仅当组件仍是给定实例时重启
 * @param {context.Context} ctx - 上下文
 * @param {string} name - 组件名
 * @param {*Instance} inst - 调用方检查过的实例
 * @returns {bool} 是否执行了重启
 * @returns {error} 重启的错误
 * @description
 * - 检查期间组件被停止、被重新启动或监管器已关闭时什么都不做
 */
func (s *Supervisor) RestartIf(ctx context.Context, name string, inst *Instance) (bool, error) {
	s.opMutex.Lock()
	defer s.opMutex.Unlock()

	if s.closed {
		return false, nil
	}
	if cur, ok := s.Instance(name); !ok || cur != inst {
		return false, nil
	}
	return true, s.restart(ctx, name)
}

// Close 等待进行中的操作结束，此后RestartIf不再生效
func (s *Supervisor) Close() {
	s.opMutex.Lock()
	defer s.opMutex.Unlock()
	s.closed = true
}

func (s *Supervisor) restart(ctx context.Context, name string) error {
	if _, ok := s.registry.Get(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}

	if s.IsRunning(name) {
		s.mutex.Lock()
		s.restarts[name]++
		count := s.restarts[name]
		s.mutex.Unlock()
		componentRestarts.WithLabelValues(name).Inc()

		logger.Infof("Restarting component [%s] (restart #%d)", name, count)
		if err := s.stop(ctx, name); err != nil {
			logger.Warnf("Stop component [%s] during restart failed: %v", name, err)
		}
		if err := sleepContext(ctx, s.opts.RestartPause); err != nil {
			return err
		}
	}
	return s.start(ctx, name)
}

func (s *Supervisor) start(ctx context.Context, name string) error {
	if s.active(name) {
		return nil
	}
	spec, ok := s.registry.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	target, exist := s.registry.ResolveTarget(spec)
	if !exist {
		if spec.Optional {
			logger.Infof("Optional component [%s] skipped, launch target '%s' not found", name, target)
			return nil
		}
		return fmt.Errorf("%w: component '%s' target '%s'", ErrMissingExecutable, name, target)
	}
	for _, dep := range spec.DependsOn {
		if s.excluded[dep] {
			continue
		}
		inst, ok := s.Instance(dep)
		if !ok || inst.Liveness() != models.LivenessAlive {
			return fmt.Errorf("%w: '%s' requires '%s'", ErrDependencyNotReady, name, dep)
		}
	}

	pi, err := s.newProcess(spec, target)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStartupFailed, name, err)
	}
	err = pi.StartProcess()
	// 子进程已继承日志文件句柄
	if f, ok := pi.Output.(*os.File); ok {
		f.Close()
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStartupFailed, name, err)
	}
	inst := &Instance{spec: spec, proc: pi}
	s.mutex.Lock()
	s.running[name] = inst
	s.mutex.Unlock()
	recordUp(name, true)

	if spec.StartupDelay > 0 {
		logger.Infof("Waiting %v for component [%s] to initialize", spec.StartupDelay, name)
	}
	if err := sleepContext(ctx, spec.StartupDelay); err != nil {
		s.stop(context.Background(), name)
		return err
	}
	if inst.Liveness() != models.LivenessAlive {
		detail := pi.GetDetail()
		s.remove(name)
		return fmt.Errorf("%w: %s: %s", ErrStartupFailed, name, detail.LastExitReason)
	}

	s.mutex.Lock()
	s.order = append(s.order, name)
	s.mutex.Unlock()
	logger.Infof("Component [%s] started (PID: %d)", name, pi.Pid())
	return nil
}

// active 判断组件是否在运行，进程已退出的实例被移除
func (s *Supervisor) active(name string) bool {
	inst, ok := s.Instance(name)
	if !ok {
		return false
	}
	if inst.Liveness() != models.LivenessDead {
		return true
	}
	logger.Infof("Component [%s] has exited (%s), replacing it", name, inst.Detail().LastExitReason)
	s.remove(name)
	return false
}

func (s *Supervisor) stop(ctx context.Context, name string) error {
	inst, ok := s.Instance(name)
	if !ok {
		return nil
	}
	defer s.remove(name)

	grace := s.opts.GracePeriod
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < grace {
			grace = max(left, 0)
		}
	}
	killed, err := inst.proc.StopProcess(grace)
	if killed {
		logger.Warnf("ShutdownTimeout: component [%s] did not exit within %v and was killed", name, grace)
	}
	if err != nil && !errors.Is(err, proc.ErrNotStarted) {
		return fmt.Errorf("stop component '%s': %w", name, err)
	}
	logger.Infof("Component [%s] stopped", name)
	return nil
}

func (s *Supervisor) remove(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.running, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	recordUp(name, false)
}

/**
 * newProcess 构造组件的进程实例
 * @description
 * - 设置了解释器时以解释器启动，启动目标作为第一个参数
 * - 参数支持模板变量，例如 "--port={{.Port}}"
 * - 工作目录默认为安装目录
 */
func (s *Supervisor) newProcess(spec models.ComponentSpec, target string) (*proc.ProcessInstance, error) {
	data := utils.CommandArgs{
		Name:       spec.Name,
		Port:       spec.Port,
		InstallDir: s.registry.InstallDir(),
		HealthPath: spec.HealthPath,
	}
	command := target
	args := spec.Args
	if spec.Interpreter != "" {
		command = spec.Interpreter
		args = append([]string{target}, spec.Args...)
	}
	command, args, err := utils.GetCommandLine(command, args, data)
	if err != nil {
		return nil, err
	}

	pi := proc.NewProcessInstance(spec.Name, command, args)
	pi.WorkDir = spec.WorkDir
	if pi.WorkDir == "" {
		pi.WorkDir = s.registry.InstallDir()
	} else if !filepath.IsAbs(pi.WorkDir) && s.registry.InstallDir() != "" {
		pi.WorkDir = filepath.Join(s.registry.InstallDir(), pi.WorkDir)
	}
	if s.opts.LogDir != "" {
		if f := openComponentLog(s.opts.LogDir, spec.Name); f != nil {
			pi.Output = f
		}
	}
	return pi, nil
}

func openComponentLog(dir, name string) *os.File {
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Warnf("Create log directory '%s' failed: %v", dir, err)
		return nil
	}
	f, err := os.OpenFile(componentLogPath(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logger.Warnf("Open log file of component [%s] failed: %v", name, err)
		return nil
	}
	return f
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
