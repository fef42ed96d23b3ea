package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinicflow/drafthub/internal/config"
	"clinicflow/drafthub/internal/handler/middleware"
	jwtpkg "clinicflow/drafthub/pkg/jwt"
)

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	jwtManager *jwtpkg.Manager,
	draftHandler *DraftHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Draft recovery, scoped to the authenticated clinician
	drafts := r.Group("/api/v1/drafts")
	drafts.Use(middleware.JWTAuth(jwtManager))
	{
		drafts.GET("/:key", draftHandler.Get)
		drafts.PUT("/:key", draftHandler.Save)
		drafts.DELETE("/:key", draftHandler.Clear)
		drafts.GET("/:key/age", draftHandler.Age)
	}

	return r
}
