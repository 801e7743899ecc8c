package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"lelongwatch/internal/archive"
	"lelongwatch/internal/store"
)

func SetupRoutes(router *gin.Engine, st *store.Store, arch *archive.Archive, logger *logrus.Logger) {
	handler := NewHandler(st, arch, logger)

	router.Use(cors.Default())

	api := router.Group("/api")
	{
		api.GET("/properties", handler.GetProperties)
		api.GET("/properties/:record_id/history", handler.GetPriceTrail)
		api.GET("/stats", handler.GetStats)
		api.GET("/changes", handler.GetChanges)
		api.GET("/runs", handler.GetRuns)
		api.GET("/runs/:id/changes", handler.GetRunChanges)
	}
}
