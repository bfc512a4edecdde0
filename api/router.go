package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/keywordsearch/api/handlers"
	"github.com/meghashyamc/keywordsearch/config"
	"github.com/meghashyamc/keywordsearch/db/kvdb"
	"github.com/meghashyamc/keywordsearch/db/searchdb"
	"github.com/meghashyamc/keywordsearch/logger"
	"github.com/meghashyamc/keywordsearch/services/download"
	"github.com/meghashyamc/keywordsearch/storage"
	"github.com/meghashyamc/keywordsearch/validation"
)

func setupRoutes(router *gin.Engine, logger logger.Logger, cfg *config.Config, searchDB searchdb.DB, kvDB kvdb.DB, root *storage.Root, validator *validation.Validator, prefix download.Prefix) {
	router.GET("/health", health())

	v1 := router.Group("/v1")
	handlers.SetupIndex(v1, logger, cfg, searchDB, kvDB, root, validator, prefix)
	handlers.SetupSearch(v1, logger, searchDB, root, validator)
	handlers.SetupDownload(v1, logger, kvDB, root)
}

func health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	}
}

func newRouter(rateLimit float64) *gin.Engine {
	router := gin.New()
	router.UseRawPath = true
	router.Use(_CORSMiddleware())
	router.Use(gin.Recovery())
	router.Use(rateLimitMiddleware(rateLimit))

	return router
}
