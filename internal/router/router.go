package router

import (
	"github.com/craftforge/backend/config"
	"github.com/craftforge/backend/internal/handler"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

func Setup(
	cfg *config.Config,
	projectHandler *handler.ProjectHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	api := r.Group("/api")
	{
		projects := api.Group("/projects")
		{
			projects.POST("", projectHandler.Create)
			projects.GET("", projectHandler.List)
			projects.GET("/:id", projectHandler.Get)
			projects.POST("/:id/cancel", projectHandler.Cancel)
			projects.GET("/:id/artifact", projectHandler.Artifact)
			projects.DELETE("/:id", projectHandler.Delete)
		}

		builds := api.Group("/builds")
		{
			builds.GET("/status", projectHandler.QueueStatus) // 编排器负载
		}
	}

	return r
}
