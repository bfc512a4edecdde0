package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/keywordsearch/db/kvdb"
	"github.com/meghashyamc/keywordsearch/logger"
	"github.com/meghashyamc/keywordsearch/services/archive"
	"github.com/meghashyamc/keywordsearch/storage"
)

const mediaTypeGzip = "application/gzip"

func SetupDownload(router gin.IRouter, logger logger.Logger, kvDB kvdb.DB, root *storage.Root) {
	packager := archive.New(logger, root, kvDB)
	router.GET("/files/download/:index_name", handleDownload(packager, root, logger))
}

// handleDownload streams the archive of an index, packaging it on first request.
func handleDownload(packager *archive.Packager, root *storage.Root, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("index_name")
		logger.Info("received index file download request", "index_name", name)

		exists, err := root.IndexExists(name)
		if err != nil {
			logger.Error("could not stat index directory", "index_name", name, "err", err.Error())
			c.Abort()
			c.String(http.StatusInternalServerError, fmt.Sprintf("Failed to access index: %s", err))
			return
		}
		if !exists {
			logger.Error("index directory not found", "index_name", name)
			c.Abort()
			c.String(http.StatusNotFound, fmt.Sprintf("Index '%s' not found", name))
			return
		}

		archivePath, err := packager.Package(c.Request.Context(), name)
		if err != nil {
			c.Abort()
			if errors.Is(err, storage.ErrIndexNotFound) {
				c.String(http.StatusNotFound, fmt.Sprintf("Index '%s' not found", name))
				return
			}
			c.String(http.StatusInternalServerError, err.Error())
			return
		}

		file, err := os.Open(archivePath)
		if err != nil {
			logger.Error("could not open compressed file", "path", archivePath, "err", err.Error())
			c.Abort()
			c.String(http.StatusInternalServerError, fmt.Sprintf("Failed to open the compressed file: %s", err))
			return
		}
		defer file.Close()

		info, err := file.Stat()
		if err != nil {
			logger.Error("could not stat compressed file", "path", archivePath, "err", err.Error())
			c.Abort()
			c.String(http.StatusInternalServerError, fmt.Sprintf("Failed to read the compressed file content: %s", err))
			return
		}

		filename := root.ArchiveName(name)
		logger.Info("prepared download response", "index_name", name, "content_length", info.Size(), "filename", filename)
		c.DataFromReader(http.StatusOK, info.Size(), mediaTypeGzip, file, map[string]string{
			"Access-Control-Allow-Origin":  "*",
			"Access-Control-Allow-Methods": "*",
			"Access-Control-Allow-Headers": "*",
			"Content-Disposition":          fmt.Sprintf("attachment; filename=%q", filename),
		})
	}
}
