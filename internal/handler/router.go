package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/consultrag/internal/middleware"
)

type RouterDeps struct {
	Assistant     *AssistantHandler
	DefaultUser   string
	AskRateWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	assistant := api.Group("/assistant")
	assistant.Use(middleware.UserScope(deps.DefaultUser))
	assistant.POST("/index", deps.Assistant.Index)
	assistant.POST("/ask", middleware.RateLimit(deps.AskRateWindow), deps.Assistant.Ask)
	assistant.GET("/stats", deps.Assistant.Stats)
	assistant.DELETE("/cache", deps.Assistant.ClearCache)
	assistant.POST("/reindex", deps.Assistant.Reindex)
	assistant.POST("/snapshot/export", deps.Assistant.ExportSnapshot)
	assistant.POST("/snapshot/import", deps.Assistant.ImportSnapshot)
}
