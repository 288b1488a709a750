// Package rest exposes the statements service over HTTP JSON.
package rest

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/norelinorth/statements/internal/services/statements/app"
)

// NewRouter builds the HTTP router for the statements service.
func NewRouter(service *app.Service, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	handler := &Handler{service: service, logger: logger}

	v1 := router.Group("/v1")
	{
		v1.POST("/documents", handler.createDocument)
		v1.GET("/documents/:id", handler.getDocument)
		v1.POST("/documents/:id/extract", handler.extractPreview)
		v1.POST("/documents/:id/parse", handler.parseTransactions)
		v1.POST("/documents/:id/synthesize", handler.synthesize)
		v1.POST("/documents/:id/reset", handler.resetProcessing)

		v1.GET("/providers", handler.listProviders)
		v1.GET("/providers/:name", handler.getProvider)
		v1.PUT("/providers/:name", handler.putProvider)
	}

	return router
}

// requestLogger logs one line per request with latency and status.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
