package server

import (
	"net/http"
	"time"

	"microblog/internal/auth"
	"microblog/internal/config"
	"microblog/internal/metrics"
	"microblog/internal/mw"
	"microblog/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter 统一初始化 Gin 中间件与 REST API。只有 /feed 和 /users/me
// 要求有效的 Bearer Token，其余帖子接口与原始设计保持开放。
func SetupRouter(cfg config.Config, db *gorm.DB, keys *auth.KeyPair) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))
	r.Use(mw.CORS(cfg.Env))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := NewHandler(
		service.NewUserService(db, keys, cfg),
		service.NewPostService(db),
		service.NewStreamService(db),
	)

	api := r.Group("/api/v1")

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)

	api.GET("/users", h.ListUsers)

	api.POST("/posts", h.CreatePost)
	api.GET("/posts", h.ListPosts)
	api.GET("/posts/:id", h.GetPost)
	api.GET("/posts/:id/replies", h.GetReplies)
	api.DELETE("/posts/:id", h.DeletePost)

	api.POST("/threads", h.CreateThread)
	api.GET("/threads", h.ListRootThreads)

	api.GET("/stream", h.GetStream)
	api.POST("/stream", h.AddToStream)

	// 需要 Bearer Token 的接口。
	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(keys, db))
	authed.GET("/feed", h.Feed)
	authed.GET("/users/me", h.Me)

	return r
}
