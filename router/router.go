package router

import (
	"net/http"

	"ShareGate/config"
	"ShareGate/internal/handler"
	"ShareGate/internal/repo"
	"ShareGate/internal/service"
	"ShareGate/utils"

	"github.com/gin-gonic/gin"
)

// InitRouter builds the HTTP routes.
func InitRouter(
	cfg *config.Config,
	linkRepo repo.LinkRepository,
	builder *service.Builder,
	pipeline *service.Pipeline,
	lifecycle *service.Lifecycle,
	signer *service.Signer,
	delivery *handler.Delivery,
) *gin.Engine {
	r := gin.Default()
	r.Use(utils.CORSMiddleware())
	r.Use(utils.GlobalRateLimit(cfg.GlobalRate, cfg.GlobalBurst))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public access route.
	r.GET("/"+cfg.RoutePrefix+"/:token", handler.AccessShareLinkHandler(pipeline, delivery))

	api := r.Group("/api")
	{
		auth := api.Group("")
		auth.Use(utils.AuthMiddleware())

		share := auth.Group("/share")
		{
			share.POST("", handler.CreateShareLinkHandler(builder, signer, cfg))
			share.POST("/prune", handler.PruneShareLinksHandler(lifecycle, cfg))
			share.POST("/:token/revoke", handler.RevokeShareLinkHandler(linkRepo, lifecycle))
			share.POST("/:token/extend", handler.ExtendShareLinkHandler(linkRepo, lifecycle))
		}
	}
	return r
}
