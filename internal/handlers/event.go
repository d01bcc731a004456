package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/services"
	"github.com/yungbote/journeylens-backend/internal/types"
)

const maxBatchSize = 100

type EventHandler struct {
	collection services.CollectionService
	log        *logger.Logger
}

func NewEventHandler(collection services.CollectionService, log *logger.Logger) *EventHandler {
	handlerLog := log.With("handler", "EventHandler")
	return &EventHandler{collection: collection, log: handlerLog}
}

// PostEvent ingests a single event. Validation failures come back as 400;
// everything past validation is processed best-effort and returns 200.
func (h *EventHandler) PostEvent(c *gin.Context) {
	var event types.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	resp, err := h.collection.ProcessEvent(c.Request.Context(), &event)
	if err != nil {
		if errors.Is(err, services.ErrMissingUserID) || errors.Is(err, services.ErrInvalidType) {
			RespondError(c, http.StatusBadRequest, "invalid_event", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "processing_failed", err)
		return
	}
	RespondOK(c, resp)
}

func (h *EventHandler) PostEventBatch(c *gin.Context) {
	var events []*types.Event
	if err := c.ShouldBindJSON(&events); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(events) == 0 {
		RespondError(c, http.StatusBadRequest, "empty_batch", errors.New("batch contains no events"))
		return
	}
	if len(events) > maxBatchSize {
		RespondError(c, http.StatusBadRequest, "batch_too_large", errors.New("batch exceeds 100 events"))
		return
	}

	responses := h.collection.ProcessBatch(c.Request.Context(), events)
	RespondOK(c, gin.H{"results": responses})
}
