// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"ai-codegen-api/internal/config"
	"ai-codegen-api/internal/interfaces/http/handler"
	"ai-codegen-api/internal/interfaces/http/middleware"
)

// Handlers 路由需要的全部处理器
type Handlers struct {
	Health   *handler.HealthHandler
	App      *handler.AppHandler
	Generate *handler.GenerateHandler
	Workflow *handler.WorkflowHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers Handlers
	redis    *goredis.Client
}

// New 创建新的路由器。redisClient 用于限流，可以为 nil。
func New(cfg *config.Config, handlers Handlers, redisClient *goredis.Client) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
		redis:    redisClient,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}

	r.engine.Use(middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
		Enabled:           r.cfg.Security.RateLimit.Enabled,
		RequestsPerSecond: r.cfg.Security.RateLimit.RequestsPerSecond,
	}, r.redis))
}

func (r *Router) setupRoutes() {
	// 系统端点
	r.engine.GET("/health", r.handlers.Health.Health)
	r.engine.GET("/ready", r.handlers.Health.Ready)

	if r.cfg.Observability.Metrics.Enabled {
		path := r.cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.engine.Group("/v1")
	{
		apps := v1.Group("/apps")
		{
			apps.POST("", r.handlers.App.Create)
			apps.GET("", r.handlers.App.List)
			apps.GET("/:id", r.handlers.App.Get)
			apps.DELETE("/:id", r.handlers.App.Delete)
			apps.POST("/:id/deploy", r.handlers.App.Deploy)
			apps.GET("/:id/history", r.handlers.App.ListHistory)

			apps.POST("/:id/generate", r.handlers.Generate.Generate)
			apps.POST("/:id/generate/stream", r.handlers.Generate.GenerateStream) // SSE
			apps.POST("/:id/workflow", r.handlers.Workflow.Run)                   // SSE
		}
	}
}
