package analysis

import (
	"errors"
	"net/http"
	"strconv"

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

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.submit)
	rg.GET("/analyses", h.list)
	rg.GET("/analyses/:id", h.get)
	rg.GET("/analyses/:id/results", h.results)
	rg.POST("/analyses/:id/cancel", h.cancel)
	rg.DELETE("/analyses/:id", h.remove)
}

type submitRequest struct {
	Name        string   `json:"name"`
	ChecklistID string   `json:"checklistId"`
	DocumentIDs []string `json:"documentIds"`
	AIModel     string   `json:"aiModel"`
}

func (h *Handler) submit(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	job, err := h.Svc.Submit(c.Request.Context(), userID, SubmitInput{
		Name:        req.Name,
		ChecklistID: req.ChecklistID,
		DocumentIDs: req.DocumentIDs,
		AIModel:     req.AIModel,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "checklistId and 1-20 unique documentIds are required", nil)
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "checklist or document not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit analysis", nil)
		}
		return
	}

	// The job runs asynchronously; the client polls or subscribes for progress.
	respond.JSON(c, http.StatusAccepted, toJobResponse(job, nil))
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	jobID := c.Param("id")

	view, err := h.Svc.Get(c.Request.Context(), userID, jobID)
	if err != nil {
		respondJobError(c, err, "failed to fetch analysis")
		return
	}

	respond.JSON(c, http.StatusOK, toJobResponse(view.Job, view.Units))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	jobs, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		resp = append(resp, toJobResponse(job, nil))
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) results(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	jobID := c.Param("id")

	grouped, err := h.Svc.Results(c.Request.Context(), userID, jobID)
	if err != nil {
		respondJobError(c, err, "failed to fetch results")
		return
	}

	respond.JSON(c, http.StatusOK, toResultsResponse(grouped))
}

func (h *Handler) cancel(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	jobID := c.Param("id")

	if err := h.Svc.Cancel(c.Request.Context(), userID, jobID); err != nil {
		switch {
		case errors.Is(err, ErrNotCancelable):
			respond.Error(c, http.StatusConflict, "conflict", "analysis is already finished", nil)
		default:
			respondJobError(c, err, "failed to cancel analysis")
		}
		return
	}

	respond.OK(c, gin.H{"status": "cancel_requested"})
}

func (h *Handler) remove(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	jobID := c.Param("id")

	if err := h.Svc.Delete(c.Request.Context(), userID, jobID); err != nil {
		respondJobError(c, err, "failed to delete analysis")
		return
	}

	c.Status(http.StatusNoContent)
}

func respondJobError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
