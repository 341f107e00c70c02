package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"fleet-keeper/internal/logger"
	"fleet-keeper/internal/models"
	"fleet-keeper/internal/utils"
)

// Target 被探测的运行实例
type Target interface {
	Spec() models.ComponentSpec
	Liveness() models.Liveness
}

// Checker 健康探测接口，监控循环和状态报告都通过它判断组件健康
type Checker interface {
	Probe(ctx context.Context, target Target) bool
}

/**
 * Prober 分层健康探测器
 * @property {time.Duration} TCPTimeout - TCP连接超时
 * @property {time.Duration} HTTPTimeout - HTTP请求超时
 */
type Prober struct {
	TCPTimeout  time.Duration
	HTTPTimeout time.Duration
	client      *http.Client
}

func NewProber(tcpTimeout, httpTimeout time.Duration) *Prober {
	return &Prober{
		TCPTimeout:  tcpTimeout,
		HTTPTimeout: httpTimeout,
		client:      &http.Client{Timeout: httpTimeout},
	}
}

/**
 * Probe 判断组件是否健康
 * @param {context.Context} ctx - 上下文，取消时HTTP探测立即失败
 * @param {Target} target - 运行实例
 * @returns {bool} 健康返回true
 * @description
 * - 进程必须存活，unknown视为不健康
 * - 声明了端口则要求端口可连接
 * - 同时声明了端口和健康路径则要求HTTP GET返回2xx
 * - 任一层失败立即返回，后续层不再执行
 */
func (p *Prober) Probe(ctx context.Context, target Target) bool {
	spec := target.Spec()
	if liveness := target.Liveness(); liveness != models.LivenessAlive {
		logger.Debugf("Component [%s] liveness is %s", spec.Name, liveness)
		return false
	}
	if spec.Port <= 0 {
		return true
	}
	if !utils.CheckPortConnectable(spec.Port, p.TCPTimeout) {
		logger.Debugf("Component [%s] port %d is not connectable", spec.Name, spec.Port)
		return false
	}
	if !spec.HasHealthEndpoint() {
		return true
	}
	if err := p.checkHTTP(ctx, spec); err != nil {
		logger.Debugf("Component [%s] health endpoint failed: %v", spec.Name, err)
		return false
	}
	return true
}

func (p *Prober) checkHTTP(ctx context.Context, spec models.ComponentSpec) error {
	ctx, cancel := context.WithTimeout(ctx, p.HTTPTimeout)
	defer cancel()

	url := fmt.Sprintf("http://localhost:%d%s", spec.Port, spec.HealthPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
