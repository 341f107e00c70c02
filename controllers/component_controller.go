package controllers

import (
	"net/http"

	"fleet-keeper/services"

	"github.com/gin-gonic/gin"
)

type ComponentController struct {
	orchestrator *services.Orchestrator
}

/**
 * Create new Component controller instance
 * @param {*services.Orchestrator} orchestrator - Fleet orchestrator
 * @returns {*ComponentController} New Component controller instance
 */
func NewComponentController(orchestrator *services.Orchestrator) *ComponentController {
	return &ComponentController{
		orchestrator: orchestrator,
	}
}

/**
 * Register all component API routes to Gin engine
 * @param {*gin.Engine} r - Gin router instance
 * @description
 * - Registers routes for single component operations (get/start/stop/restart)
 */
func (cc *ComponentController) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/fleet/api/v1")
	api.GET("/components/:name", cc.GetComponent)
	api.POST("/components/:name/start", cc.StartComponent)
	api.POST("/components/:name/stop", cc.StopComponent)
	api.POST("/components/:name/restart", cc.RestartComponent)
}

// GetComponent returns the status of one component
//
//	@Summary		Get component
//	@Tags			Components
//	@Produce		json
//	@Param			name	path		string					true	"Component name"
//	@Success		200		{object}	models.ComponentStatus
//	@Failure		404		{object}	models.ErrorResponse	"Component not found"
//	@Router			/fleet/api/v1/components/{name} [get]
func (cc *ComponentController) GetComponent(c *gin.Context) {
	status, err := cc.orchestrator.ComponentStatus(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, "component.notexist", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// StartComponent starts a component from scratch
//
//	@Summary		Start component
//	@Tags			Components
//	@Produce		json
//	@Param			name	path		string					true	"Component name"
//	@Success		200		{object}	models.ComponentStatus
//	@Failure		404		{object}	models.ErrorResponse	"Component not found"
//	@Failure		409		{object}	models.ErrorResponse	"Launch target missing or dependency not ready"
//	@Failure		500		{object}	models.ErrorResponse	"Startup failed"
//	@Router			/fleet/api/v1/components/{name}/start [post]
func (cc *ComponentController) StartComponent(c *gin.Context) {
	name := c.Param("name")
	if err := cc.orchestrator.StartComponent(c.Request.Context(), name); err != nil {
		respondError(c, "component.start_failed", err)
		return
	}
	cc.GetComponent(c)
}

// StopComponent stops a component
//
//	@Summary		Stop component
//	@Tags			Components
//	@Produce		json
//	@Param			name	path		string					true	"Component name"
//	@Success		200		{object}	models.ComponentStatus
//	@Failure		404		{object}	models.ErrorResponse	"Component not found"
//	@Failure		500		{object}	models.ErrorResponse	"Stop failed"
//	@Router			/fleet/api/v1/components/{name}/stop [post]
func (cc *ComponentController) StopComponent(c *gin.Context) {
	name := c.Param("name")
	if err := cc.orchestrator.StopComponent(c.Request.Context(), name); err != nil {
		respondError(c, "component.stop_failed", err)
		return
	}
	cc.GetComponent(c)
}

// RestartComponent restarts a component and increments its restart counter
//
//	@Summary		Restart component
//	@Tags			Components
//	@Produce		json
//	@Param			name	path		string					true	"Component name"
//	@Success		200		{object}	models.ComponentStatus
//	@Failure		404		{object}	models.ErrorResponse	"Component not found"
//	@Failure		500		{object}	models.ErrorResponse	"Restart failed"
//	@Router			/fleet/api/v1/components/{name}/restart [post]
func (cc *ComponentController) RestartComponent(c *gin.Context) {
	name := c.Param("name")
	if err := cc.orchestrator.RestartComponent(c.Request.Context(), name); err != nil {
		respondError(c, "component.restart_failed", err)
		return
	}
	cc.GetComponent(c)
}
