package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"studytimer/backend/internal/service"
)

type StatsHandler struct {
	statsService *service.StatsService
}

func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

func (h *StatsHandler) Daily(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	days := 0
	if raw := c.Query("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			days = parsed
		}
	}

	stats, apiErr := h.statsService.Daily(c.Request.Context(), userID, days)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, stats)
}
