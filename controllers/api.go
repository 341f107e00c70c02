package controllers

import (
	"net/http"
	"time"

	"fleet-keeper/internal/models"
	"fleet-keeper/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIController struct {
	orchestrator *services.Orchestrator
}

/**
 * Create new API controller instance
 * @param {*services.Orchestrator} orchestrator - Fleet orchestrator
 * @returns {*APIController} New API controller instance
 */
func NewAPIController(orchestrator *services.Orchestrator) *APIController {
	return &APIController{
		orchestrator: orchestrator,
	}
}

/**
 * Register daemon level routes to Gin engine
 * @param {*gin.Engine} r - Gin router instance
 * @description
 * - Registers fleet wide operations (status/check/alerts/start/stop/restart)
 * - Registers /healthz and the Prometheus /metrics endpoint
 */
func (a *APIController) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/fleet/api/v1")
	api.GET("/status", a.Status)
	api.POST("/check", a.Check)
	api.GET("/alerts", a.Alerts)
	api.POST("/start", a.StartAll)
	api.POST("/stop", a.StopAll)
	api.POST("/restart", a.RestartAll)
	r.GET("/healthz", a.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// @Summary 获取集群状态
// @Description 返回所有未被排除组件的状态和汇总计数
// @Tags Fleet
// @Produce json
// @Success 200 {object} models.StatusReport
// @Router /fleet/api/v1/status [get]
func (a *APIController) Status(c *gin.Context) {
	c.JSON(http.StatusOK, a.orchestrator.Status(c.Request.Context()))
}

// @Summary 执行一次监控周期
// @Description 立即探测所有运行中的组件，按重启策略处理，返回失败列表和最新状态
// @Tags Fleet
// @Produce json
// @Success 200 {object} models.CheckResponse
// @Router /fleet/api/v1/check [post]
func (a *APIController) Check(c *gin.Context) {
	ctx := c.Request.Context()
	failed := a.orchestrator.RunOnce(ctx)
	if failed == nil {
		failed = []string{}
	}
	c.JSON(http.StatusOK, models.CheckResponse{
		Timestamp: time.Now(),
		Failed:    failed,
		Status:    a.orchestrator.Status(ctx),
	})
}

// @Summary 最近的关键告警
// @Tags Fleet
// @Produce json
// @Success 200 {array} models.CriticalAlert
// @Router /fleet/api/v1/alerts [get]
func (a *APIController) Alerts(c *gin.Context) {
	alerts := a.orchestrator.Alerts().History()
	if alerts == nil {
		alerts = []models.CriticalAlert{}
	}
	c.JSON(http.StatusOK, alerts)
}

// @Summary 按依赖顺序启动所有组件
// @Tags Fleet
// @Produce json
// @Success 200 {object} models.StatusReport
// @Failure 409 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /fleet/api/v1/start [post]
func (a *APIController) StartAll(c *gin.Context) {
	if err := a.orchestrator.StartAll(c.Request.Context()); err != nil {
		respondError(c, "fleet.start_failed", err)
		return
	}
	c.JSON(http.StatusOK, a.orchestrator.Status(c.Request.Context()))
}

// @Summary 逆序停止所有组件
// @Tags Fleet
// @Produce json
// @Success 200 {object} models.StatusReport
// @Failure 500 {object} models.ErrorResponse
// @Router /fleet/api/v1/stop [post]
func (a *APIController) StopAll(c *gin.Context) {
	if err := a.orchestrator.StopAll(c.Request.Context()); err != nil {
		respondError(c, "fleet.stop_failed", err)
		return
	}
	c.JSON(http.StatusOK, a.orchestrator.Status(c.Request.Context()))
}

// @Summary 重启所有组件
// @Tags Fleet
// @Produce json
// @Success 200 {object} models.StatusReport
// @Failure 500 {object} models.ErrorResponse
// @Router /fleet/api/v1/restart [post]
func (a *APIController) RestartAll(c *gin.Context) {
	if err := a.orchestrator.RestartAll(c.Request.Context()); err != nil {
		respondError(c, "fleet.restart_failed", err)
		return
	}
	c.JSON(http.StatusOK, a.orchestrator.Status(c.Request.Context()))
}

// @Summary 业务就绪探针
// @Description 返回守护进程版本、启动时间、运行中的组件数和请求统计
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func (a *APIController) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, a.orchestrator.GetHealthz())
}
