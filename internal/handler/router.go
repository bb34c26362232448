package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/techoasis/helpdesk-rag/internal/middleware"
)

const adminRole = "admin"

type RouterDeps struct {
	Chat      *ChatHandler
	Articles  *ArticleHandler
	JWTSecret []byte
}

// RegisterRoutes wires the API surface. When no JWT secret is configured the
// service runs open, which is the expected mode behind a trusted gateway.
func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	userGroup := api.Group("")
	adminGroup := api.Group("")
	if len(deps.JWTSecret) > 0 {
		userGroup.Use(middleware.JWTAuth(deps.JWTSecret))
		adminGroup.Use(middleware.JWTAuth(deps.JWTSecret), middleware.RequireRole(adminRole))
	}

	userGroup.POST("/chat", deps.Chat.Chat)
	userGroup.POST("/chat/stream", deps.Chat.ChatStream)
	userGroup.GET("/kb/articles", deps.Articles.List)
	userGroup.GET("/kb/articles/:id", deps.Articles.Get)

	adminGroup.POST("/reindex", deps.Chat.Reindex)
	adminGroup.POST("/kb/articles", deps.Articles.Create)
	adminGroup.PUT("/kb/articles/:id", deps.Articles.Update)
	adminGroup.DELETE("/kb/articles/:id", deps.Articles.Delete)
}
