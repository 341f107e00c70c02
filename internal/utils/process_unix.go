//go:build !windows

package utils

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// SetNewPG 设置进程属性，子进程使用独立的进程组，
// 避免终端的Ctrl+C信号直接打到被管理的组件上
func SetNewPG(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

/**
 * Check whether a process is running
 * @param {int} pid - Process ID
 * @returns {bool} True if the process exists
 * @returns {error} Non-nil when the state cannot be determined
 * @description
 * - Sends signal 0, which performs the permission and existence checks only
 * - ESRCH means the process is gone; EPERM means it exists but is owned by another user
 */
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, fmt.Errorf("invalid PID %d", pid)
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("failed to find process with PID %d: %v", pid, err)
	}
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
		return false, nil
	}
	if errors.Is(err, syscall.EPERM) {
		return true, nil
	}
	return false, fmt.Errorf("failed to signal process with PID %d: %v", pid, err)
}

// TerminateProcess 向进程组发送SIGTERM，请求进程优雅退出
func TerminateProcess(process *os.Process) error {
	if err := syscall.Kill(-process.Pid, syscall.SIGTERM); err == nil {
		return nil
	}
	return process.Signal(syscall.SIGTERM)
}

// KillProcess 强制结束整个进程组，解释器拉起的子进程也一并结束
func KillProcess(process *os.Process) error {
	if err := syscall.Kill(-process.Pid, syscall.SIGKILL); err == nil {
		return nil
	}
	return process.Kill()
}
