package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/liurenhao/stagegate/internal/domain"
)

// SaveDocument saves a project document directly, outside a worker run.
// POST /v1/projects/:project/documents
func (h *Handler) SaveDocument(c echo.Context) error {
	ctx := c.Request().Context()
	project := c.Param("project")

	var req domain.SaveDocumentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.Category == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "category is required"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "title is required"})
	}
	if req.Body == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "body is required"})
	}

	doc, err := h.store.SaveDocument(ctx, &domain.Document{
		DocumentID: domain.NewID("doc"),
		Project:    project,
		Category:   req.Category,
		Title:      req.Title,
		Body:       req.Body,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, doc)
}

// ListDocuments lists a project's documents.
// GET /v1/projects/:project/documents
func (h *Handler) ListDocuments(c echo.Context) error {
	ctx := c.Request().Context()
	project := c.Param("project")

	docs, err := h.store.ListDocuments(ctx, project)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"documents": docs})
}

// GetDocument returns one document by id.
// GET /v1/projects/:project/documents/:document_id
func (h *Handler) GetDocument(c echo.Context) error {
	ctx := c.Request().Context()
	project := c.Param("project")
	documentID := c.Param("document_id")

	doc, err := h.store.GetDocument(ctx, documentID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if doc == nil || doc.Project != project {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "document not found"})
	}
	return c.JSON(http.StatusOK, doc)
}

// ListDeliverables lists a role's deliverables for a project.
// GET /v1/projects/:project/deliverables?role=engineer
func (h *Handler) ListDeliverables(c echo.Context) error {
	ctx := c.Request().Context()
	project := c.Param("project")
	role := domain.Role(c.QueryParam("role"))

	if role == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "role is required"})
	}

	deliverables, err := h.store.ListDeliverables(ctx, project, role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if deliverables == nil {
		deliverables = []domain.Deliverable{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"deliverables": deliverables})
}

// ListConcepts lists a project's saved design concepts.
// GET /v1/projects/:project/concepts
func (h *Handler) ListConcepts(c echo.Context) error {
	ctx := c.Request().Context()
	project := c.Param("project")

	concepts, err := h.store.ListConcepts(ctx, project)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if concepts == nil {
		concepts = []domain.Concept{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"concepts": concepts})
}
