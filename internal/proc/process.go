package proc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"fleet-keeper/internal/logger"
	"fleet-keeper/internal/models"
	"fleet-keeper/internal/utils"
)

// 强制结束后等待回收的上限，避免不可中断的进程卡住停止流程
const reapTimeout = 5 * time.Second

var ErrNotStarted = errors.New("process not started")

/**
 * ProcessInstance 进程实例信息
 * @property {string} Title - 进程标题，即组件名
 * @property {string} Command - 执行命令(解释器或可执行文件)
 * @property {[]string} Args - 命令参数
 * @property {string} WorkDir - 工作目录
 * @property {io.Writer} Output - 子进程标准输出/错误的去向，nil表示丢弃
 * @property {string} Status - 进程状态: running/exited/stopped/error
 * @property {time.Time} StartTime - 启动时间
 * @property {time.Time} LastExitTime - 最后退出时间
 * @property {string} LastExitReason - 最后退出原因
 */
type ProcessInstance struct {
	Title          string
	Command        string
	Args           []string
	WorkDir        string
	Output         io.Writer
	Status         models.RunStatus
	StartTime      time.Time
	LastExitTime   time.Time
	LastExitReason string
	process        *os.Process
	done           chan struct{} //回收协程在进程退出后关闭
	mutex          sync.Mutex
}

/**
 * NewProcessInstance 创建新的进程实例
 * @param {string} title - 进程标题
 * @param {string} command - 执行命令
 * @param {[]string} args - 命令参数
 * @returns {*ProcessInstance} 返回创建的进程实例
 */
func NewProcessInstance(title, command string, args []string) *ProcessInstance {
	return &ProcessInstance{
		Title:   title,
		Command: command,
		Args:    args,
		Status:  models.StatusExited,
	}
}

func (pi *ProcessInstance) Pid() int {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	return pi.pid()
}

func (pi *ProcessInstance) pid() int {
	if pi.process == nil {
		return 0
	}
	return pi.process.Pid
}

func (pi *ProcessInstance) GetStartTime() time.Time {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	return pi.StartTime
}

// Done 返回进程退出后关闭的通道，未启动时返回nil
func (pi *ProcessInstance) Done() <-chan struct{} {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	return pi.done
}

func (pi *ProcessInstance) GetDetail() models.ProcessDetail {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	return models.ProcessDetail{
		Title:          pi.Title,
		Command:        pi.Command,
		Args:           pi.Args,
		WorkDir:        pi.WorkDir,
		Pid:            pi.pid(),
		Status:         pi.Status,
		StartTime:      pi.StartTime,
		LastExitTime:   pi.LastExitTime,
		LastExitReason: pi.LastExitReason,
	}
}

/**
 * StartProcess 启动进程
 * @returns {error} 返回错误信息
 * @description
 * - 进程放入独立进程组，停止时整组结束
 * - 启动回收协程，进程退出后立即Wait，避免僵尸进程
 * - 进程生命周期与调用方的context无关，只能通过StopProcess结束
 */
func (pi *ProcessInstance) StartProcess() error {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	if pi.Status == models.StatusRunning {
		return nil
	}
	logger.Infof("Executing command: %s %s", pi.Command, strings.Join(pi.Args, " "))

	cmd := exec.Command(pi.Command, pi.Args...)
	if pi.WorkDir != "" {
		cmd.Dir = pi.WorkDir
	}
	if pi.Output != nil {
		cmd.Stdout = pi.Output
		cmd.Stderr = pi.Output
	}
	utils.SetNewPG(cmd)

	if err := cmd.Start(); err != nil {
		pi.Status = models.StatusError
		pi.LastExitReason = fmt.Sprintf("start failed: %v", err)
		logger.Errorf("Failed to start process '%s', error: %v", pi.Title, err)
		return err
	}

	pi.process = cmd.Process
	pi.done = make(chan struct{})
	pi.Status = models.StatusRunning
	pi.StartTime = time.Now()
	pi.LastExitReason = ""

	logger.Infof("Process '%s' started (PID: %d)", pi.Title, pi.process.Pid)
	go pi.reap(cmd, pi.done)
	return nil
}

// reap 等待进程退出并记录退出原因
func (pi *ProcessInstance) reap(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()

	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	defer close(done)

	pi.LastExitTime = time.Now()
	if pi.Status == models.StatusStopped {
		return
	}
	if err != nil {
		logger.Warnf("Process '%s' (PID: %d) exited with error: %v", pi.Title, cmd.Process.Pid, err)
		pi.LastExitReason = fmt.Sprintf("exited with error: %v", err)
		pi.Status = models.StatusError
	} else {
		logger.Infof("Process '%s' (PID: %d) exited normally", pi.Title, cmd.Process.Pid)
		pi.LastExitReason = "exited normally"
		pi.Status = models.StatusExited
	}
}

/**
 * Liveness 直接检测进程是否存活
 * @returns {models.Liveness} alive/dead/unknown
 * @description
 * - 回收协程已结束，则进程必定已退出
 * - 否则向进程发送0信号确认，检测出错时返回unknown
 */
func (pi *ProcessInstance) Liveness() models.Liveness {
	pi.mutex.Lock()
	process, done := pi.process, pi.done
	pi.mutex.Unlock()

	if process == nil || done == nil {
		return models.LivenessUnknown
	}
	select {
	case <-done:
		return models.LivenessDead
	default:
	}
	running, err := utils.IsProcessRunning(process.Pid)
	if err != nil {
		logger.Debugf("Probe process '%s' (PID: %d) failed: %v", pi.Title, process.Pid, err)
		return models.LivenessUnknown
	}
	if running {
		return models.LivenessAlive
	}
	return models.LivenessDead
}

/**
 * StopProcess 停止进程
 * @param {time.Duration} grace - 优雅退出的等待时间
 * @returns {bool} 是否因超时而强制结束
 * @returns {error} 返回错误信息
 * @description
 * - 先请求优雅退出，超过grace仍未退出则强制结束
 * - 返回前等待回收协程完成
 * - 已经退出的进程直接返回
 */
func (pi *ProcessInstance) StopProcess(grace time.Duration) (bool, error) {
	pi.mutex.Lock()
	process, done := pi.process, pi.done
	if process == nil || done == nil {
		pi.mutex.Unlock()
		return false, ErrNotStarted
	}
	select {
	case <-done:
		pi.mutex.Unlock()
		return false, nil
	default:
	}
	pi.Status = models.StatusStopped
	pi.LastExitReason = "stopped by user"
	pi.mutex.Unlock()

	if err := utils.TerminateProcess(process); err != nil {
		logger.Warnf("Failed to terminate process '%s' (PID: %d): %v", pi.Title, process.Pid, err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		logger.Infof("Process '%s' (PID: %d) stopped", pi.Title, process.Pid)
		return false, nil
	case <-timer.C:
	}

	logger.Warnf("Process '%s' (PID: %d) did not exit within %v, killing it", pi.Title, process.Pid, grace)
	if err := utils.KillProcess(process); err != nil {
		logger.Errorf("Failed to kill process '%s' (PID: %d): %v", pi.Title, process.Pid, err)
	}
	select {
	case <-done:
	case <-time.After(reapTimeout):
		return true, fmt.Errorf("process '%s' (PID: %d) not reaped after kill", pi.Title, process.Pid)
	}
	logger.Infof("Process '%s' (PID: %d) killed", pi.Title, process.Pid)
	return true, nil
}
