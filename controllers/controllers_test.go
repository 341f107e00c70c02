//go:build !windows

package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fleet-keeper/internal/config"
	"fleet-keeper/internal/logger"
	"fleet-keeper/internal/middleware"
	"fleet-keeper/internal/models"
	"fleet-keeper/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.InitLoggerWithWriter(os.Stderr, "error")
}

func setupRouter(t *testing.T) (*gin.Engine, *services.Orchestrator) {
	t.Helper()
	cfg := config.Default()
	cfg.Deployment.InstallDir = t.TempDir()
	cfg.Deployment.Kind = "test"
	cfg.Monitor.GracePeriod = 2 * time.Second
	cfg.Monitor.RestartPause = 10 * time.Millisecond
	cfg.Monitor.FleetRestartPause = 10 * time.Millisecond
	cfg.Components = []models.ComponentSpec{
		{Name: "registry", Executable: "sleep", Args: []string{"30"}, Critical: true, RestartPolicy: models.RestartAlways},
		{Name: "server", Executable: "sleep", Args: []string{"30"}, DependsOn: []string{"registry"}},
		{Name: "broken", Executable: "bin/broken.sh"},
	}
	o, err := services.NewOrchestrator(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { o.StopAll(context.Background()) })

	r := gin.New()
	r.Use(middleware.MetricsMiddleware())
	NewAPIController(o).RegisterRoutes(r)
	NewComponentController(o).RegisterRoutes(r)
	NewLogController(o).RegisterRoutes(r)
	return r, o
}

func doRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestComponentLifecycleAPI(t *testing.T) {
	r, o := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/fleet/api/v1/components/server/start")
	assert.Equal(t, http.StatusConflict, w.Code)
	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "component.start_failed", errResp.Code)
	assert.Contains(t, errResp.Error, "dependency not ready")

	w = doRequest(r, http.MethodPost, "/fleet/api/v1/components/registry/start")
	require.Equal(t, http.StatusOK, w.Code)
	var status models.ComponentStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.StateHealthy, status.State)
	assert.Greater(t, status.Pid, 0)

	w = doRequest(r, http.MethodPost, "/fleet/api/v1/components/registry/restart")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 1, status.RestartCount)

	w = doRequest(r, http.MethodPost, "/fleet/api/v1/components/registry/stop")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.StateNotRunning, status.State)
	assert.False(t, o.Supervisor().IsRunning("registry"))
}

func TestComponentNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/fleet/api/v1/components/ghost"},
		{http.MethodPost, "/fleet/api/v1/components/ghost/start"},
		{http.MethodPost, "/fleet/api/v1/components/ghost/stop"},
		{http.MethodPost, "/fleet/api/v1/components/ghost/restart"},
	}
	for _, tt := range tests {
		w := doRequest(r, tt.method, tt.path)
		assert.Equal(t, http.StatusNotFound, w.Code, tt.path)

		var errResp models.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
		assert.Equal(t, "component.notexist", errResp.Code)
	}
}

/**
 * TestFleetAPI 测试集群级接口
 * @description
 * - start启动集群，组件缺少启动目标时返回409和失败列表
 * - status返回汇总计数
 * - check执行一次监控周期
 * - stop停止所有组件
 */
func TestFleetAPI(t *testing.T) {
	r, o := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/fleet/api/v1/start")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "broken")
	assert.Equal(t, []string{"registry", "server"}, o.Supervisor().Order())

	w = doRequest(r, http.MethodGet, "/fleet/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)
	var report models.StatusReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "test", report.Deployment)
	assert.Equal(t, 3, report.Summary.Total)
	assert.Equal(t, 2, report.Summary.Running)
	assert.Equal(t, 2, report.Summary.Healthy)
	assert.Equal(t, 1, report.Summary.CriticalRunning)

	w = doRequest(r, http.MethodPost, "/fleet/api/v1/check")
	require.Equal(t, http.StatusOK, w.Code)
	var check models.CheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &check))
	assert.Empty(t, check.Failed)

	w = doRequest(r, http.MethodGet, "/fleet/api/v1/alerts")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = doRequest(r, http.MethodPost, "/fleet/api/v1/stop")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, o.Supervisor().Order())
}

func TestHealthzAndMetrics(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	var health models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "UP", health.Status)
	assert.NotEmpty(t, health.Version)

	w = doRequest(r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fleet_api_request_total")
}

func TestLogAPI(t *testing.T) {
	r, o := setupRouter(t)

	w := doRequest(r, http.MethodGet, "/fleet/api/v1/components/registry/logs")
	assert.Equal(t, http.StatusNotFound, w.Code)

	logFile := o.Logs().LogFile("registry")
	require.NoError(t, os.MkdirAll(filepath.Dir(logFile), 0755))
	require.NoError(t, os.WriteFile(logFile, []byte("one\ntwo\nthree\n"), 0644))

	w = doRequest(r, http.MethodGet, "/fleet/api/v1/components/registry/logs?lines=2")
	require.Equal(t, http.StatusOK, w.Code)
	var logs models.ComponentLogs
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	assert.Equal(t, []string{"two", "three"}, logs.Lines)
	assert.Equal(t, logFile, logs.File)

	w = doRequest(r, http.MethodGet, "/fleet/api/v1/components/registry/logs?lines=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/fleet/api/v1/components/ghost/logs")
	assert.Equal(t, http.StatusNotFound, w.Code)
	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "component.notexist", errResp.Code)

	w = doRequest(r, http.MethodGet, "/fleet/api/v1/logs")
	require.Equal(t, http.StatusOK, w.Code)
	var files []models.LogFileInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &files))
	require.Len(t, files, 1)
	assert.Equal(t, "registry", files[0].Name)
	assert.Equal(t, int64(14), files[0].Size)
}
