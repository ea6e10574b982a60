package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studytimer/backend/internal/handler"
	"studytimer/backend/internal/middleware"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Goals    *handler.GoalHandler
	Sessions *handler.SessionHandler
	Stats    *handler.StatsHandler
	Timer    *handler.TimerHandler
}

func New(tokens middleware.TokenParser, h Handlers, corsOrigins []string) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)

	protected := api.Group("")
	protected.Use(middleware.Auth(tokens))
	protected.GET("/auth/me", h.Auth.Me)

	goals := protected.Group("/goals")
	goals.GET("", h.Goals.List)
	goals.POST("", h.Goals.Create)
	goals.GET("/:id", h.Goals.Get)
	goals.PUT("/:id", h.Goals.Update)
	goals.DELETE("/:id", h.Goals.Delete)

	sessions := protected.Group("/sessions")
	sessions.GET("", h.Sessions.List)
	sessions.GET("/:id", h.Sessions.Get)
	sessions.DELETE("/:id", h.Sessions.Delete)

	protected.GET("/stats/daily", h.Stats.Daily)

	timer := protected.Group("/timer")
	timer.GET("/state", h.Timer.GetState)
	timer.POST("/start", h.Timer.Start)
	timer.POST("/pause", h.Timer.Pause)
	timer.POST("/reset", h.Timer.Reset)
	timer.POST("/stop", h.Timer.Stop)
	timer.POST("/visibility", h.Timer.Visibility)
	timer.PUT("/pomodoro", h.Timer.SetPomodoro)
	timer.GET("/settings", h.Timer.GetSettings)
	timer.PUT("/settings", h.Timer.UpdateSettings)
	timer.GET("/events", h.Timer.Events)

	return engine
}
