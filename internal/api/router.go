package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/theloomik/Bunker/internal/game"
	"go.uber.org/zap"
)

// Router API路由器
type Router struct {
	engine         *gin.Engine
	sessionHandler *SessionHandler
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(manager *game.SessionManager, log *zap.Logger) *Router {
	engine := gin.New()

	// 全局中间件
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))

	router := &Router{
		engine:         engine,
		sessionHandler: NewSessionHandler(manager, log),
		log:            log,
	}

	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// API v1路由组
	v1 := r.engine.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", r.sessionHandler.Create)
			sessions.GET("/:key", r.sessionHandler.Snapshot)
			sessions.DELETE("/:key", r.sessionHandler.Cancel)

			sessions.POST("/:key/join", r.sessionHandler.Join)
			sessions.POST("/:key/leave", r.sessionHandler.Leave)
			sessions.POST("/:key/start", r.sessionHandler.Start)
			sessions.POST("/:key/reveal", r.sessionHandler.Reveal)

			sessions.POST("/:key/vote/start", r.sessionHandler.StartVote)
			sessions.POST("/:key/vote/ballot", r.sessionHandler.CastBallot)
			sessions.POST("/:key/vote/close", r.sessionHandler.CloseVote)
			sessions.GET("/:key/vote/outcome", r.sessionHandler.LastOutcome)

			sessions.POST("/:key/ack-end", r.sessionHandler.AcknowledgeEnd)
		}

		players := v1.Group("/players")
		{
			players.GET("/:id/stats", r.sessionHandler.PlayerStats)
			players.PUT("/:id/name", r.sessionHandler.SetPlayerName)
		}
	}
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// Engine 获取Gin引擎
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// requestLogger 请求日志中间件
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug("HTTP请求",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
