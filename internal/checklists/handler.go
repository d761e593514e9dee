package checklists

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tender-backend/internal/shared/server/middleware"
	"tender-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches checklist routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/checklists", h.create)
	rg.GET("/checklists", h.list)
	rg.GET("/checklists/templates", h.templates)
	rg.GET("/checklists/:id", h.get)
	rg.PUT("/checklists/:id", h.update)
	rg.POST("/checklists/:id/items", h.addItem)
	rg.DELETE("/checklists/:id", h.remove)
}

type createItemRequest struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type createRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Language    string              `json:"language"`
	IsTemplate  bool                `json:"isTemplate"`
	Items       []createItemRequest `json:"items"`
}

func (h *Handler) create(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	items := make([]NewItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, NewItemInput{
			Kind: ItemKind(item.Kind),
			Text: item.Text,
		})
	}

	cl, err := h.Svc.Create(c.Request.Context(), userID, req.Name, req.Description, req.Language, req.IsTemplate, items)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "name and at least one valid item are required", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create checklist", nil)
		}
		return
	}

	respond.JSON(c, http.StatusCreated, toResponse(cl))
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	checklistID := c.Param("id")

	cl, err := h.Svc.Get(c.Request.Context(), userID, checklistID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "checklist not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch checklist", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, toResponse(cl))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	lists, err := h.Svc.List(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list checklists", nil)
		return
	}

	resp := make([]ChecklistResponse, 0, len(lists))
	for _, cl := range lists {
		resp = append(resp, toResponse(cl))
	}

	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) templates(c *gin.Context) {
	language := c.Query("language")

	lists, err := h.Svc.Templates(c.Request.Context(), language)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list templates", nil)
		return
	}

	resp := make([]ChecklistResponse, 0, len(lists))
	for _, cl := range lists {
		resp = append(resp, toResponse(cl))
	}

	respond.JSON(c, http.StatusOK, resp)
}

type updateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Language    *string `json:"language"`
}

func (h *Handler) update(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	checklistID := c.Param("id")

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	cl, err := h.Svc.Update(c.Request.Context(), userID, checklistID, UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Language:    req.Language,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "checklist not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "name and language must not be empty", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to update checklist", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, toResponse(cl))
}

func (h *Handler) addItem(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	checklistID := c.Param("id")

	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	item, err := h.Svc.AddItem(c.Request.Context(), userID, checklistID, NewItemInput{
		Kind: ItemKind(req.Kind),
		Text: req.Text,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "checklist not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "a valid kind and non-empty text are required", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to add checklist item", nil)
		}
		return
	}

	respond.JSON(c, http.StatusCreated, toItemResponse(item))
}

func (h *Handler) remove(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	checklistID := c.Param("id")

	if err := h.Svc.Delete(c.Request.Context(), userID, checklistID); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "checklist not found", nil)
		case errors.Is(err, ErrTemplateProtected):
			respond.Error(c, http.StatusForbidden, "forbidden", "template checklists cannot be deleted", nil)
		case errors.Is(err, ErrInUse):
			respond.Error(c, http.StatusConflict, "conflict", "checklist is used by an analysis job", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete checklist", nil)
		}
		return
	}

	c.Status(http.StatusNoContent)
}
