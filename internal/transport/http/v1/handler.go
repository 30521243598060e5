// Package v1 provides the external HTTP API.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/liurenhao/stagegate/internal/executor"
	"github.com/liurenhao/stagegate/internal/store"
)

// Handler handles HTTP requests.
type Handler struct {
	store    store.Store
	executor *executor.Executor
}

// NewHandler creates a new handler.
func NewHandler(st store.Store, x *executor.Executor) *Handler {
	return &Handler{store: st, executor: x}
}

// RegisterRoutes registers the external routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Worker runs
	e.POST("/v1/projects/:project/runs", h.StartRun)
	e.GET("/v1/executions/:execution_id", h.GetExecution)
	e.GET("/v1/executions/:execution_id/events", h.GetExecutionEvents)

	// Project artifacts
	e.POST("/v1/projects/:project/documents", h.SaveDocument)
	e.GET("/v1/projects/:project/documents", h.ListDocuments)
	e.GET("/v1/projects/:project/documents/:document_id", h.GetDocument)
	e.GET("/v1/projects/:project/deliverables", h.ListDeliverables)
	e.GET("/v1/projects/:project/concepts", h.ListConcepts)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
