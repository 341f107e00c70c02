package controllers

import (
	"errors"
	"net/http"

	"fleet-keeper/internal/models"
	"fleet-keeper/internal/resolver"
	"fleet-keeper/services"

	"github.com/gin-gonic/gin"
)

// respondError 把编排错误映射为HTTP状态码
func respondError(c *gin.Context, code string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrUnknownComponent):
		status = http.StatusNotFound
		code = "component.notexist"
	case errors.Is(err, services.ErrMissingExecutable),
		errors.Is(err, services.ErrDependencyNotReady),
		errors.Is(err, resolver.ErrCycleOrMissing):
		status = http.StatusConflict
	}
	c.JSON(status, &models.ErrorResponse{
		Code:  code,
		Error: err.Error(),
	})
}
