//go:build !windows

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"fleet-keeper/internal/config"
	"fleet-keeper/internal/health"
	"fleet-keeper/internal/logger"
	"fleet-keeper/internal/models"
	"fleet-keeper/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T, cfg *config.AppConfig, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		o.StopAll(context.Background())
	})
	return o
}

func TestNewOrchestratorInvalidRegistry(t *testing.T) {
	_, err := NewOrchestrator(testConfig(t, sleeper("A", "ghost")))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidRegistry)
}

/**
 * TestStartAllAndStopAll 测试按依赖顺序启动、逆序停止
 * @description
 * - 启动顺序为A、B、C
 * - 停止顺序为C、B、A
 */
func TestStartAllAndStopAll(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(t, sleeper("C", "A", "B"), sleeper("B", "A"), sleeper("A")))
	ctx := context.Background()

	require.NoError(t, o.StartAll(ctx))
	assert.Equal(t, []string{"A", "B", "C"}, o.Supervisor().Order())
	assert.True(t, o.IsRunning())

	var buf bytes.Buffer
	logger.InitLoggerWithWriter(&buf, "info")
	defer logger.InitLoggerWithWriter(os.Stderr, "error")

	require.NoError(t, o.StopAll(ctx))
	assert.Empty(t, o.Supervisor().Order())

	out := buf.String()
	c := strings.Index(out, "Component [C] stopped")
	b := strings.Index(out, "Component [B] stopped")
	a := strings.Index(out, "Component [A] stopped")
	require.True(t, c >= 0 && b >= 0 && a >= 0)
	assert.Less(t, c, b)
	assert.Less(t, b, a)
}

/**
 * TestStartAllCriticalExitAborts 测试关键组件启动后立即退出
 * @description
 * - A、B正常启动，C是关键组件，启动后立即退出
 * - 启动结果为失败，A、B保持运行，不回滚
 */
func TestStartAllCriticalExitAborts(t *testing.T) {
	c := models.ComponentSpec{
		Name:         "C",
		Executable:   "sh",
		Args:         []string{"-c", "exit 1"},
		DependsOn:    []string{"A", "B"},
		Critical:     true,
		StartupDelay: 300 * time.Millisecond,
	}
	o := newTestOrchestrator(t, testConfig(t, sleeper("A"), sleeper("B", "A"), c))

	err := o.StartAll(context.Background())
	require.Error(t, err)

	var startupErr *StartupError
	require.True(t, errors.As(err, &startupErr))
	assert.Equal(t, "C", startupErr.Aborted)
	assert.Equal(t, []string{"C"}, startupErr.Failed)
	assert.ErrorIs(t, err, ErrStartupFailed)

	assert.True(t, o.Supervisor().IsRunning("A"))
	assert.True(t, o.Supervisor().IsRunning("B"))
	assert.False(t, o.Supervisor().IsRunning("C"))
}

func TestStartAllCriticalAbortSkipsRest(t *testing.T) {
	critical := sleeper("B")
	critical.Executable = "bin/missing.sh"
	critical.Critical = true
	o := newTestOrchestrator(t, testConfig(t, sleeper("A"), critical, sleeper("C")))

	err := o.StartAll(context.Background())
	var startupErr *StartupError
	require.True(t, errors.As(err, &startupErr))
	assert.Equal(t, "B", startupErr.Aborted)
	assert.ErrorIs(t, err, ErrMissingExecutable)

	assert.True(t, o.Supervisor().IsRunning("A"))
	assert.False(t, o.Supervisor().IsRunning("C"), "nothing after the critical failure is attempted")
}

func TestStartAllNonCriticalFailuresContinue(t *testing.T) {
	broken := sleeper("B")
	broken.Executable = "bin/missing.sh"
	o := newTestOrchestrator(t, testConfig(t, sleeper("A"), broken, sleeper("C", "B"), sleeper("D")))

	err := o.StartAll(context.Background())
	var startupErr *StartupError
	require.True(t, errors.As(err, &startupErr))
	assert.Empty(t, startupErr.Aborted)
	assert.Equal(t, []string{"B", "C"}, startupErr.Failed)
	assert.ErrorIs(t, err, ErrMissingExecutable)
	assert.ErrorIs(t, err, ErrDependencyNotReady)

	assert.Equal(t, []string{"A", "D"}, o.Supervisor().Order())
}

func TestStartAllSchedulingError(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(t, sleeper("A", "B"), sleeper("B", "A"), sleeper("C")))

	err := o.StartAll(context.Background())
	var schedErr *resolver.SchedulingError
	require.True(t, errors.As(err, &schedErr))
	assert.Equal(t, []string{"A", "B"}, schedErr.Unresolved)
	assert.Empty(t, o.Supervisor().Order(), "nothing is spawned")

	// 自依赖同样是环
	o = newTestOrchestrator(t, testConfig(t, sleeper("A", "A"), sleeper("C")))
	err = o.StartAll(context.Background())
	require.True(t, errors.As(err, &schedErr))
	assert.Equal(t, []string{"A"}, schedErr.Unresolved)
	assert.Empty(t, o.Supervisor().Order())
}

func TestStartAllExcludesMissingOptional(t *testing.T) {
	optional := sleeper("processor")
	optional.Executable = "bin/processor.sh"
	optional.Optional = true
	o := newTestOrchestrator(t, testConfig(t, optional, sleeper("consumer", "processor")), WithChecker(newFakeChecker()))

	require.NoError(t, o.StartAll(context.Background()))
	assert.Equal(t, []string{"consumer"}, o.Supervisor().Order())

	report := o.Status(context.Background())
	require.Len(t, report.Components, 1)
	assert.Equal(t, "consumer", report.Components[0].Name)
	assert.Equal(t, 1, report.Summary.Total)
}

/**
 * TestMonitorAlwaysPolicy 测试always策略
 * @description
 * - 组件连续三次探测不健康，每次都重启，重启计数依次加一
 * - 重启成功的组件不计入失败列表
 */
func TestMonitorAlwaysPolicy(t *testing.T) {
	always := sleeper("always")
	always.RestartPolicy = models.RestartAlways
	checker := newFakeChecker("always")
	o := newTestOrchestrator(t, testConfig(t, always), WithChecker(checker))
	ctx := context.Background()

	require.NoError(t, o.StartAll(ctx))
	for i := 1; i <= 3; i++ {
		assert.Empty(t, o.RunOnce(ctx))
		assert.Equal(t, i, o.Supervisor().RestartCount("always"))
	}
	assert.True(t, o.Supervisor().IsRunning("always"))

	checker.setHealthy("always", true)
	assert.Empty(t, o.RunOnce(ctx))
	assert.Equal(t, 3, o.Supervisor().RestartCount("always"))
}

/**
 * TestMonitorOnFailureCeiling 测试on_failure策略的重启上限
 * @description
 * - 前三次不健康时重启
 * - 第四次起不再重启，组件进入失败列表，关键组件发出告警
 * - 从头启动后永久失败标记被清除
 */
func TestMonitorOnFailureCeiling(t *testing.T) {
	flaky := sleeper("flaky")
	flaky.RestartPolicy = models.RestartOnFailure
	flaky.Critical = true
	o := newTestOrchestrator(t, testConfig(t, flaky), WithChecker(newFakeChecker("flaky")))
	ctx := context.Background()
	alerts := o.Alerts().Subscribe()

	require.NoError(t, o.StartAll(ctx))
	for i := 1; i <= 3; i++ {
		assert.Empty(t, o.RunOnce(ctx))
	}
	assert.Equal(t, 3, o.Supervisor().RestartCount("flaky"))
	assert.False(t, o.policy.Exhausted("flaky"))

	assert.Equal(t, []string{"flaky"}, o.RunOnce(ctx))
	assert.Equal(t, 3, o.Supervisor().RestartCount("flaky"))
	assert.True(t, o.policy.Exhausted("flaky"))

	select {
	case alert := <-alerts:
		assert.Equal(t, []string{"flaky"}, alert.Components)
		assert.NotEmpty(t, alert.ID)
	case <-time.After(time.Second):
		t.Fatal("no critical alert delivered")
	}
	require.Len(t, o.Alerts().History(), 1)

	// 每个周期都会报告
	assert.Equal(t, []string{"flaky"}, o.RunOnce(ctx))
	assert.Len(t, o.Alerts().History(), 2)

	require.NoError(t, o.StopComponent(ctx, "flaky"))
	require.NoError(t, o.StartComponent(ctx, "flaky"))
	assert.False(t, o.policy.Exhausted("flaky"))
	assert.Equal(t, 0, o.Supervisor().RestartCount("flaky"))
}

func TestMonitorManualPolicyReports(t *testing.T) {
	manual := sleeper("manual")
	o := newTestOrchestrator(t, testConfig(t, manual, sleeper("other")), WithChecker(newFakeChecker("manual")))
	ctx := context.Background()

	require.NoError(t, o.StartAll(ctx))
	inst, _ := o.Supervisor().Instance("manual")
	pid := inst.Pid()

	assert.Equal(t, []string{"manual"}, o.RunOnce(ctx))
	assert.Equal(t, 0, o.Supervisor().RestartCount("manual"))
	inst, _ = o.Supervisor().Instance("manual")
	assert.Equal(t, pid, inst.Pid())
	assert.Empty(t, o.Alerts().History(), "non-critical failures raise no alert")
}

func TestMonitorDetectsExitedProcess(t *testing.T) {
	short := models.ComponentSpec{
		Name:       "short",
		Executable: "sh",
		Args:       []string{"-c", "sleep 0.3; exit 2"},
		Critical:   true,
	}
	o := newTestOrchestrator(t, testConfig(t, short), WithChecker(newFakeChecker()))
	ctx := context.Background()

	require.NoError(t, o.StartAll(ctx))
	inst, ok := o.Supervisor().Instance("short")
	require.True(t, ok)
	select {
	case <-inst.proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	assert.Equal(t, []string{"short"}, o.RunOnce(ctx))
	require.Len(t, o.Alerts().History(), 1)

	status, err := o.ComponentStatus(ctx, "short")
	require.NoError(t, err)
	assert.Equal(t, models.StateStopped, status.State)
	assert.Contains(t, status.LastExit, "exit status 2")

	// 手动启动替换已退出的实例
	require.NoError(t, o.StartComponent(ctx, "short"))
	fresh, ok := o.Supervisor().Instance("short")
	require.True(t, ok)
	assert.NotEqual(t, inst.Pid(), fresh.Pid())
	status, err = o.ComponentStatus(ctx, "short")
	require.NoError(t, err)
	assert.NotEqual(t, models.StateStopped, status.State)
}

// gateChecker 阻塞在检查中直到放行，之后报告不健康
type gateChecker struct {
	entered chan struct{}
	release chan struct{}
}

func newGateChecker() *gateChecker {
	return &gateChecker{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gateChecker) Probe(ctx context.Context, target health.Target) bool {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return false
}

// firstChecker 只有第一次见到的实例不健康
type firstChecker struct {
	mutex sync.Mutex
	first health.Target
}

func (f *firstChecker) Probe(ctx context.Context, target health.Target) bool {
	f.mutex.Lock()
	if f.first == nil {
		f.first = target
	}
	bad := f.first == target
	f.mutex.Unlock()
	if bad {
		return false
	}
	return target.Liveness() == models.LivenessAlive
}

// runOnceBlocked 在后台执行监控周期，等到检查开始后返回结果通道
func runOnceBlocked(t *testing.T, o *Orchestrator, checker *gateChecker) <-chan []string {
	t.Helper()
	done := make(chan []string, 1)
	go func() {
		done <- o.RunOnce(context.Background())
	}()
	select {
	case <-checker.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor iteration did not reach the health check")
	}
	return done
}

func waitIteration(t *testing.T, done <-chan []string) []string {
	t.Helper()
	select {
	case failed := <-done:
		return failed
	case <-time.After(10 * time.Second):
		t.Fatal("monitor iteration did not finish")
		return nil
	}
}

func alwaysSleeper(name string) models.ComponentSpec {
	spec := sleeper(name)
	spec.RestartPolicy = models.RestartAlways
	return spec
}

/**
 * TestRunOnceSkipsStoppedComponent 测试检查期间被停止的组件
 * @description
 * - 检查进行中组件被停止，检查结果不健康也不重启
 * - 组件不在失败列表中，重启计数不变
 */
func TestRunOnceSkipsStoppedComponent(t *testing.T) {
	checker := newGateChecker()
	o := newTestOrchestrator(t, testConfig(t, alwaysSleeper("A")), WithChecker(checker))
	ctx := context.Background()
	require.NoError(t, o.StartAll(ctx))

	done := runOnceBlocked(t, o, checker)
	require.NoError(t, o.StopComponent(ctx, "A"))
	close(checker.release)

	assert.Empty(t, waitIteration(t, done))
	assert.False(t, o.Supervisor().IsRunning("A"))
	assert.Empty(t, o.Supervisor().Order())
	assert.Equal(t, 0, o.Supervisor().RestartCount("A"))
}

// 检查期间组件被停止又重新启动，新实例保持不变
func TestRunOnceSkipsReplacedComponent(t *testing.T) {
	checker := newGateChecker()
	o := newTestOrchestrator(t, testConfig(t, alwaysSleeper("A")), WithChecker(checker))
	ctx := context.Background()
	require.NoError(t, o.StartAll(ctx))

	done := runOnceBlocked(t, o, checker)
	require.NoError(t, o.StopComponent(ctx, "A"))
	require.NoError(t, o.StartComponent(ctx, "A"))
	fresh, ok := o.Supervisor().Instance("A")
	require.True(t, ok)
	close(checker.release)

	assert.Empty(t, waitIteration(t, done))
	inst, ok := o.Supervisor().Instance("A")
	require.True(t, ok)
	assert.Same(t, fresh, inst)
	assert.Equal(t, 0, o.Supervisor().RestartCount("A"))
}

/**
 * TestRunOnceDuringShutdown 测试检查期间编排器被关闭
 * @description
 * - Shutdown停止全部组件后，进行中的周期不会把组件重新拉起
 * - 关闭之后的周期什么都不做
 */
func TestRunOnceDuringShutdown(t *testing.T) {
	checker := newGateChecker()
	o := newTestOrchestrator(t, testConfig(t, alwaysSleeper("A"), alwaysSleeper("B")), WithChecker(checker))
	ctx := context.Background()
	require.NoError(t, o.StartAll(ctx))

	done := runOnceBlocked(t, o, checker)
	require.NoError(t, o.Shutdown(ctx))
	assert.False(t, o.IsRunning())
	close(checker.release)

	waitIteration(t, done)
	assert.Empty(t, o.Supervisor().Order())
	assert.False(t, o.Supervisor().IsRunning("A"))
	assert.False(t, o.Supervisor().IsRunning("B"))
	assert.Equal(t, 0, o.Supervisor().RestartCount("A"))

	assert.Empty(t, o.RunOnce(ctx))
	assert.Empty(t, o.Supervisor().Order())
}

// 并发的监控周期串行执行，同一次故障只重启一次
func TestRunOnceConcurrentIterations(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(t, alwaysSleeper("A")), WithChecker(&firstChecker{}))
	ctx := context.Background()
	require.NoError(t, o.StartAll(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.RunOnce(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, o.Supervisor().RestartCount("A"))
	inst, ok := o.Supervisor().Instance("A")
	require.True(t, ok)
	assert.Equal(t, models.LivenessAlive, inst.Liveness())
	assert.Equal(t, []string{"A"}, o.Supervisor().Order())
}

func TestRunOnceRecoversPanic(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(t, sleeper("A")), WithChecker(panicChecker{}))
	require.NoError(t, o.StartAll(context.Background()))

	assert.NotPanics(t, func() {
		assert.Empty(t, o.RunOnce(context.Background()))
	})
}

/**
 * TestMonitorShutdownOnCancel 测试监控循环被取消后关闭所有组件
 * @description
 * - 取消上下文后循环退出并停止所有组件
 * - 重复调用Shutdown不会再次执行
 */
func TestMonitorShutdownOnCancel(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(t, sleeper("A"), sleeper("B", "A")), WithChecker(newFakeChecker()))
	require.NoError(t, o.StartAll(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- o.Monitor(ctx)
	}()

	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("monitor loop did not exit")
	}
	assert.False(t, o.IsRunning())
	assert.Empty(t, o.Supervisor().Order())

	require.NoError(t, o.Supervisor().Start(context.Background(), "A"))
	assert.NoError(t, o.Shutdown(context.Background()))
	assert.True(t, o.Supervisor().IsRunning("A"), "second shutdown is a no-op")
}

func TestMonitorExitsAfterShutdown(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(t, sleeper("A")), WithChecker(newFakeChecker()))
	require.NoError(t, o.StartAll(context.Background()))

	done := make(chan error, 1)
	go func() {
		done <- o.Monitor(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, o.Shutdown(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor loop did not exit")
	}
}

func TestRestartAll(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(t, sleeper("A"), sleeper("B", "A")))
	ctx := context.Background()

	require.NoError(t, o.StartAll(ctx))
	inst, _ := o.Supervisor().Instance("A")
	pid := inst.Pid()

	require.NoError(t, o.RestartAll(ctx))
	assert.Equal(t, []string{"A", "B"}, o.Supervisor().Order())
	inst, _ = o.Supervisor().Instance("A")
	assert.NotEqual(t, pid, inst.Pid())
}

/**
 * TestStatusWithHealthEndpoint 测试端口和健康路径的探测
 * @description
 * - 进程存活但端口没有监听时不健康
 * - 端口监听且/status返回200后健康
 */
func TestStatusWithHealthEndpoint(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	api := sleeper("ai_server")
	api.Port = port
	api.HealthPath = "/status"
	api.Critical = true
	api.Category = models.CategoryContinuous
	o := newTestOrchestrator(t, testConfig(t, api, sleeper("dashboard", "ai_server")))
	ctx := context.Background()
	require.NoError(t, o.StartAll(ctx))

	status, err := o.ComponentStatus(ctx, "ai_server")
	require.NoError(t, err)
	assert.Equal(t, models.StateUnhealthy, status.State)

	l, err = net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/status" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	srv.Listener.Close()
	srv.Listener = l
	srv.Start()
	defer srv.Close()

	report := o.Status(ctx)
	assert.Equal(t, "test", report.Deployment)
	assert.Equal(t, models.StatusSummary{Total: 2, Running: 2, Healthy: 2, CriticalRunning: 1, CriticalTotal: 1}, report.Summary)
	require.Len(t, report.Components, 2)
	assert.Equal(t, models.StateHealthy, report.Components[0].State)
	assert.Greater(t, report.Components[0].Pid, 0)
	assert.Equal(t, []string{"dashboard"}, report.Components[0].Dependents)

	require.NoError(t, o.StopComponent(ctx, "dashboard"))
	status, err = o.ComponentStatus(ctx, "dashboard")
	require.NoError(t, err)
	assert.Equal(t, models.StateNotRunning, status.State)

	_, err = o.ComponentStatus(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUnknownComponent)
}

func TestExportStatus(t *testing.T) {
	cfg := testConfig(t, sleeper("A"))
	cfg.Monitor.StatusFile = filepath.Join(t.TempDir(), "share", "fleet-status.json")
	o := newTestOrchestrator(t, cfg, WithChecker(newFakeChecker()))
	require.NoError(t, o.StartAll(context.Background()))

	o.exportStatus(context.Background())

	data, err := os.ReadFile(cfg.Monitor.StatusFile)
	require.NoError(t, err)
	var report models.StatusReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 1, report.Summary.Healthy)
}

type panicChecker struct{}

func (panicChecker) Probe(ctx context.Context, target health.Target) bool {
	panic("health check exploded")
}
