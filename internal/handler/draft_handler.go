package handler

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinicflow/drafthub/internal/service"
	"clinicflow/drafthub/pkg/response"
)

type DraftHandler struct {
	draftService service.DraftService
	logger       *zap.Logger
}

func NewDraftHandler(draftService service.DraftService, logger *zap.Logger) *DraftHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftHandler{draftService: draftService, logger: logger}
}

type SaveDraftRequest struct {
	Data json.RawMessage `json:"data" binding:"required"`
}

type draftAgeResponse struct {
	AgeMs *int64 `json:"age_ms"`
}

// Save schedules the form state for debounced persistence.
func (h *DraftHandler) Save(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	var req SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if err := h.draftService.Save(c.Request.Context(), userID, c.Param("key"), req.Data); err != nil {
		h.handleError(c, err)
		return
	}
	response.Accepted(c, gin.H{"accepted": true})
}

// Get returns the recoverable draft for the form, if any.
func (h *DraftHandler) Get(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	view, err := h.draftService.Get(c.Request.Context(), userID, c.Param("key"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, view)
}

// Clear discards the draft, typically after the form's real save succeeded.
func (h *DraftHandler) Clear(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	if err := h.draftService.Clear(c.Request.Context(), userID, c.Param("key")); err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *DraftHandler) Age(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	age, err := h.draftService.Age(c.Request.Context(), userID, c.Param("key"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, draftAgeResponse{AgeMs: age})
}

func (h *DraftHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidDraftKey):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrServiceClosed):
		response.ServiceUnavailable(c, "draft service unavailable")
	default:
		h.logger.Error("draft request failed", zap.String("key", c.Param("key")), zap.Error(err))
		response.InternalError(c, "draft request failed")
	}
}
