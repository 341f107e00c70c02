package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"fleet-keeper/internal/models"
	"fleet-keeper/services"

	"github.com/gin-gonic/gin"
)

type LogController struct {
	orchestrator *services.Orchestrator
}

func NewLogController(orchestrator *services.Orchestrator) *LogController {
	return &LogController{
		orchestrator: orchestrator,
	}
}

func (lc *LogController) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/fleet/api/v1")
	api.GET("/logs", lc.ListLogs)
	api.GET("/components/:name/logs", lc.GetComponentLogs)
}

// ListLogs lists the component log files
//
//	@Summary		List log files
//	@Tags			Logs
//	@Produce		json
//	@Success		200		{array}		models.LogFileInfo
//	@Failure		500		{object}	models.ErrorResponse
//	@Router			/fleet/api/v1/logs [get]
func (lc *LogController) ListLogs(c *gin.Context) {
	files, err := lc.orchestrator.Logs().List()
	if err != nil {
		respondError(c, "log.list_failed", err)
		return
	}
	c.JSON(http.StatusOK, files)
}

// GetComponentLogs returns the last lines of a component log
//
//	@Summary		Get component logs
//	@Tags			Logs
//	@Produce		json
//	@Param			name	path		string					true	"Component name"
//	@Param			lines	query		int						false	"Number of lines (default 100)"
//	@Success		200		{object}	models.ComponentLogs
//	@Failure		400		{object}	models.ErrorResponse	"Invalid lines"
//	@Failure		404		{object}	models.ErrorResponse	"Component or log file not found"
//	@Router			/fleet/api/v1/components/{name}/logs [get]
func (lc *LogController) GetComponentLogs(c *gin.Context) {
	name := c.Param("name")
	if _, ok := lc.orchestrator.Registry().Get(name); !ok {
		respondError(c, "component.notexist", fmt.Errorf("%w: %s", services.ErrUnknownComponent, name))
		return
	}
	lines := services.DefaultLogLines
	if v := c.Query("lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, &models.ErrorResponse{
				Code:  "log.invalid_lines",
				Error: fmt.Sprintf("invalid lines: %s", v),
			})
			return
		}
		lines = n
	}
	logs, err := lc.orchestrator.Logs().Tail(name, lines)
	if err != nil {
		c.JSON(http.StatusNotFound, &models.ErrorResponse{
			Code:  "log.notexist",
			Error: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, logs)
}
