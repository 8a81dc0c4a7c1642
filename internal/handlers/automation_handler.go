package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"opsflow/internal/models"
	"opsflow/internal/services"

	"github.com/gin-gonic/gin"
)

// AutomationHandler exposes rule management and execution over HTTP.
type AutomationHandler struct {
	rules  *services.RuleService
	engine *services.RuleEngineService
}

func NewAutomationHandler(rules *services.RuleService, engine *services.RuleEngineService) *AutomationHandler {
	return &AutomationHandler{rules: rules, engine: engine}
}

// ListRules returns every stored rule, highest priority first.
func (h *AutomationHandler) ListRules(c *gin.Context) {
	rules, err := h.rules.ListRules(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list rules", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rules)
}

// CreateRule validates and stores a new rule.
func (h *AutomationHandler) CreateRule(c *gin.Context) {
	var req services.AutomationRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	createdBy := c.GetHeader("X-User-ID")
	rule, err := h.rules.CreateRule(c.Request.Context(), &req, createdBy)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to create rule", Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, rule)
}

func (h *AutomationHandler) GetRule(c *gin.Context) {
	rule, err := h.rules.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: "Failed to get rule", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *AutomationHandler) UpdateRule(c *gin.Context) {
	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	rule, err := h.rules.UpdateRule(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: "Failed to update rule", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *AutomationHandler) DeleteRule(c *gin.Context) {
	if err := h.rules.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		status := http.StatusInternalServerError
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: "Failed to delete rule", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

type executeRequest struct {
	RuleID       string                 `json:"rule_id"`
	TriggerEvent string                 `json:"trigger_event" binding:"required"`
	EventData    map[string]interface{} `json:"event_data"`
}

// ExecuteRules feeds one event through the engine. A rule_id selects the
// manual execution path for that rule.
func (h *AutomationHandler) ExecuteRules(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	if req.EventData == nil {
		req.EventData = map[string]interface{}{}
	}

	var (
		executions []models.RuleExecution
		err        error
	)
	if req.RuleID != "" {
		executions, err = h.engine.ExecuteRule(c.Request.Context(), req.RuleID, req.TriggerEvent, req.EventData)
	} else {
		event := services.TriggerEvent{
			EventType: req.TriggerEvent,
			EventData: req.EventData,
			Source:    "api",
			Timestamp: time.Now(),
		}
		executions, err = h.engine.ProcessTriggerEvent(c.Request.Context(), event)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to execute rules", Message: err.Error()})
		return
	}
	if executions == nil {
		executions = []models.RuleExecution{}
	}

	c.JSON(http.StatusOK, gin.H{
		"executions": executions,
		"count":      len(executions),
	})
}

// ListExecutions returns a rule's execution history.
func (h *AutomationHandler) ListExecutions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	executions, err := h.rules.ListExecutions(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list executions", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, executions)
}

// RegisterAutomationRoutes mounts the automation surface under /automations.
func RegisterAutomationRoutes(r *gin.RouterGroup, handler *AutomationHandler) {
	auto := r.Group("/automations")
	{
		auto.GET("", handler.ListRules)
		auto.POST("", handler.CreateRule)
		auto.GET(":id", handler.GetRule)
		auto.PUT(":id", handler.UpdateRule)
		auto.DELETE(":id", handler.DeleteRule)
		auto.POST("execute", handler.ExecuteRules)
		auto.GET(":id/executions", handler.ListExecutions)
	}
}
