//go:build !windows

package proc

import (
	"bytes"
	"os"
	"testing"
	"time"

	"fleet-keeper/internal/logger"
	"fleet-keeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLoggerWithWriter(os.Stderr, "error")
}

func TestLivenessBeforeStart(t *testing.T) {
	pi := NewProcessInstance("idle", "sleep", []string{"1"})
	assert.Equal(t, models.LivenessUnknown, pi.Liveness())
	assert.Equal(t, 0, pi.Pid())

	_, err := pi.StopProcess(time.Second)
	assert.ErrorIs(t, err, ErrNotStarted)
}

/**
 * TestStartAndGracefulStop 测试进程启动与优雅停止
 * @description
 * - sleep响应SIGTERM，应在宽限期内退出
 * - 停止后存活检测返回dead
 */
func TestStartAndGracefulStop(t *testing.T) {
	pi := NewProcessInstance("sleeper", "sleep", []string{"30"})
	require.NoError(t, pi.StartProcess())

	assert.Greater(t, pi.Pid(), 0)
	assert.Equal(t, models.LivenessAlive, pi.Liveness())
	assert.Equal(t, models.StatusRunning, pi.GetDetail().Status)

	killed, err := pi.StopProcess(5 * time.Second)
	require.NoError(t, err)
	assert.False(t, killed)
	assert.Equal(t, models.LivenessDead, pi.Liveness())

	detail := pi.GetDetail()
	assert.Equal(t, models.StatusStopped, detail.Status)
	assert.Equal(t, "stopped by user", detail.LastExitReason)
}

/**
 * TestStopForceKillsAfterGrace 测试超时强制结束
 * @description
 * - 子进程忽略SIGTERM，超过宽限期后被强制结束
 */
func TestStopForceKillsAfterGrace(t *testing.T) {
	pi := NewProcessInstance("stubborn", "sh", []string{"-c", "trap '' TERM; while true; do sleep 0.1; done"})
	require.NoError(t, pi.StartProcess())
	// 等待shell安装信号处理
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	killed, err := pi.StopProcess(300 * time.Millisecond)
	require.NoError(t, err)
	assert.True(t, killed)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
	assert.Equal(t, models.LivenessDead, pi.Liveness())
}

func TestExitIsDetected(t *testing.T) {
	pi := NewProcessInstance("crasher", "sh", []string{"-c", "exit 3"})
	require.NoError(t, pi.StartProcess())

	select {
	case <-pi.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process was not reaped")
	}

	assert.Equal(t, models.LivenessDead, pi.Liveness())
	detail := pi.GetDetail()
	assert.Equal(t, models.StatusError, detail.Status)
	assert.Contains(t, detail.LastExitReason, "exit status 3")

	// 已退出的进程停止时直接返回
	killed, err := pi.StopProcess(time.Second)
	assert.NoError(t, err)
	assert.False(t, killed)
}

func TestStartFailure(t *testing.T) {
	pi := NewProcessInstance("ghost", "/nonexistent/fleet-keeper-binary", nil)
	require.Error(t, pi.StartProcess())
	assert.Equal(t, models.StatusError, pi.GetDetail().Status)
	assert.Equal(t, models.LivenessUnknown, pi.Liveness())
}

func TestOutputAndWorkDir(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	pi := NewProcessInstance("printer", "sh", []string{"-c", "pwd"})
	pi.WorkDir = dir
	pi.Output = &out
	require.NoError(t, pi.StartProcess())
	<-pi.Done()

	assert.Contains(t, out.String(), dir[len(dir)-8:])
}
