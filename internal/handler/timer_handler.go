package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studytimer/backend/internal/logging"
	"studytimer/backend/internal/model"
	"studytimer/backend/internal/notify"
	"studytimer/backend/internal/service"
)

const keepAliveInterval = 25 * time.Second

type TimerHandler struct {
	timerService *service.TimerService
	hub          *notify.Hub
}

type startRequest struct {
	GoalID string `json:"goalId"`
}

type pomodoroToggleRequest struct {
	Enabled *bool `json:"enabled"`
}

func NewTimerHandler(timerService *service.TimerService, hub *notify.Hub) *TimerHandler {
	return &TimerHandler{timerService: timerService, hub: hub}
}

func (h *TimerHandler) GetState(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	state, apiErr := h.timerService.GetState(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *TimerHandler) Start(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	state, apiErr := h.timerService.Start(c.Request.Context(), userID, req.GoalID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *TimerHandler) Pause(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	state, apiErr := h.timerService.Pause(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *TimerHandler) Reset(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	state, apiErr := h.timerService.Reset(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

// Stop records the run. A zero-length run answers 200 with no session.
func (h *TimerHandler) Stop(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	result, apiErr := h.timerService.Stop(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *TimerHandler) Visibility(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	state, apiErr := h.timerService.Visible(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *TimerHandler) SetPomodoro(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req pomodoroToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		writeInvalidJSON(c)
		return
	}

	state, apiErr := h.timerService.SetPomodoroEnabled(c.Request.Context(), userID, *req.Enabled)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *TimerHandler) GetSettings(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	settings, apiErr := h.timerService.GetSettings(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *TimerHandler) UpdateSettings(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req model.PomodoroSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	state, apiErr := h.timerService.UpdateSettings(c.Request.Context(), userID, req)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

// Events streams phase changes as server-sent events so the client can play
// its chime. The stream ends when the client disconnects.
func (h *TimerHandler) Events(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	events, cancel := h.hub.Subscribe(userID)
	defer cancel()

	// The first frame carries the current state so a reconnecting client
	// picks up transitions it missed.
	initial, apiErr := h.timerService.GetState(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	logging.Logger.Debug("timer event stream opened", "user_id", userID)
	sentInitial := false
	c.Stream(func(w io.Writer) bool {
		if !sentInitial {
			sentInitial = true
			c.SSEvent("state", initial)
			return true
		}

		select {
		case <-c.Request.Context().Done():
			return false
		case event, open := <-events:
			if !open {
				return false
			}
			c.SSEvent(event.Type, event)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
	logging.Logger.Debug("timer event stream closed", "user_id", userID)
}
