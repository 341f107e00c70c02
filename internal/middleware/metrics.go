package middleware

import (
	"time"

	"fleet-keeper/internal/logger"
	"fleet-keeper/services"

	"github.com/gin-gonic/gin"
)

/**
 * HTTP请求统计中间件
 * @description
 * - 按路由统计请求数量和处理时间
 * - 状态码 >= 400 的请求计入错误数
 * - 未匹配路由的请求统一记为unknown，避免标签无限增长
 */
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		services.IncrementRequestCount(path)
		services.RecordRequestDuration(path, duration.Seconds())
		if status := c.Writer.Status(); status >= 400 {
			services.IncrementErrorCount(path)
			logger.Warnf("%s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, status, duration)
		} else {
			logger.Debugf("%s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, status, duration)
		}
	}
}
