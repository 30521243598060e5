package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/liurenhao/stagegate/internal/domain"
)

// StartRun launches a worker run at a gate.
// POST /v1/projects/:project/runs
func (h *Handler) StartRun(c echo.Context) error {
	ctx := c.Request().Context()
	project := c.Param("project")

	var req domain.RunGateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	req.Project = project

	if req.Gate == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "gate is required"})
	}
	if req.Role == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "role is required"})
	}
	if req.Task == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "task is required"})
	}

	exec, err := h.executor.StartRun(ctx, req.Project, req.Role, req.Gate, req.Task)
	if err != nil {
		if strings.Contains(err.Error(), "not eligible") || strings.Contains(err.Error(), "unknown gate") {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, domain.RunGateResponse{
		ExecutionID: exec.ExecutionID,
		Project:     exec.Project,
		Role:        exec.Role,
		Gate:        exec.Gate,
	})
}

// GetExecution returns an execution record.
// GET /v1/executions/:execution_id
func (h *Handler) GetExecution(c echo.Context) error {
	ctx := c.Request().Context()
	executionID := c.Param("execution_id")

	exec, err := h.store.GetExecution(ctx, executionID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if exec == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "execution not found"})
	}
	return c.JSON(http.StatusOK, exec)
}

// GetExecutionEvents returns an execution's trace events after a timestamp.
// GET /v1/executions/:execution_id/events?after_ts=0&limit=200
func (h *Handler) GetExecutionEvents(c echo.Context) error {
	ctx := c.Request().Context()
	executionID := c.Param("execution_id")

	afterTs, _ := strconv.ParseInt(c.QueryParam("after_ts"), 10, 64)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	events, err := h.store.GetEvents(ctx, executionID, afterTs, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if events == nil {
		events = []domain.Event{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"events": events})
}
