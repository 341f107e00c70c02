package utils

import (
	"net"
	"strconv"
	"time"
)

// CheckPortConnectable 在超时时间内尝试连接localhost上的端口
func CheckPortConnectable(port int, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = time.Second
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("localhost", strconv.Itoa(port)), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
