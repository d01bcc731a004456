package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/services"
)

type AnalyticsHandler struct {
	collection services.CollectionService
	log        *logger.Logger
}

func NewAnalyticsHandler(collection services.CollectionService, log *logger.Logger) *AnalyticsHandler {
	handlerLog := log.With("handler", "AnalyticsHandler")
	return &AnalyticsHandler{collection: collection, log: handlerLog}
}

// GetInsights always returns a snapshot; an unseen user gets default-valued
// insights rather than a 404.
func (h *AnalyticsHandler) GetInsights(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		RespondError(c, http.StatusBadRequest, "missing_user_id", errors.New("userId path parameter is required"))
		return
	}
	RespondOK(c, h.collection.UserInsights(userID))
}

func (h *AnalyticsHandler) GetEvents(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		RespondError(c, http.StatusBadRequest, "missing_user_id", errors.New("userId path parameter is required"))
		return
	}

	limit := 0
	if rawLimit := c.Query("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 0 {
			RespondError(c, http.StatusBadRequest, "invalid_limit", errors.New("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	startTime, err := optionalInt64(c, "startTime")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_start_time", err)
		return
	}
	endTime, err := optionalInt64(c, "endTime")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_end_time", err)
		return
	}

	events, err := h.collection.UserEvents(c.Request.Context(), userID, limit, startTime, endTime)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "events_read_failed", err)
		return
	}
	RespondOK(c, gin.H{
		"events": events,
		"count":  len(events),
		"total":  h.collection.UserEventCount(c.Request.Context(), userID),
	})
}

func (h *AnalyticsHandler) GetStruggles(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		RespondError(c, http.StatusBadRequest, "missing_user_id", errors.New("userId path parameter is required"))
		return
	}
	struggles := h.collection.StruggleEvents(userID)
	RespondOK(c, gin.H{"struggles": struggles, "count": len(struggles)})
}

func (h *AnalyticsHandler) GetDashboard(c *gin.Context) {
	hours := 24
	if rawHours := c.Query("hours"); rawHours != "" {
		parsed, err := strconv.Atoi(rawHours)
		if err != nil || parsed < 0 {
			RespondError(c, http.StatusBadRequest, "invalid_hours", errors.New("hours must be a non-negative integer"))
			return
		}
		hours = parsed
	}
	RespondOK(c, h.collection.Dashboard(hours))
}

func optionalInt64(c *gin.Context, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errors.New(name + " must be milliseconds since epoch")
	}
	return &parsed, nil
}
