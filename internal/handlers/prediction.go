package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/services"
)

type PredictionHandler struct {
	risk services.RiskService
	log  *logger.Logger
}

func NewPredictionHandler(risk services.RiskService, log *logger.Logger) *PredictionHandler {
	handlerLog := log.With("handler", "PredictionHandler")
	return &PredictionHandler{risk: risk, log: handlerLog}
}

// GetExitRisk serves the cached prediction, waiting briefly for an in-flight
// one. The response always carries a usable result; fallbacks set
// errorMessage instead of failing the request.
func (h *PredictionHandler) GetExitRisk(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		RespondError(c, http.StatusBadRequest, "missing_user_id", errors.New("userId path parameter is required"))
		return
	}
	RespondOK(c, h.risk.CurrentPrediction(c.Request.Context(), userID))
}

func (h *PredictionHandler) GetModelHealth(c *gin.Context) {
	RespondOK(c, h.risk.ModelHealth(c.Request.Context()))
}
