package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/keywordsearch/config"
	"github.com/meghashyamc/keywordsearch/db/kvdb"
	"github.com/meghashyamc/keywordsearch/db/searchdb"
	"github.com/meghashyamc/keywordsearch/logger"
	"github.com/meghashyamc/keywordsearch/services/download"
	"github.com/meghashyamc/keywordsearch/services/index"
	"github.com/meghashyamc/keywordsearch/services/ingest"
	"github.com/meghashyamc/keywordsearch/storage"
	"github.com/meghashyamc/keywordsearch/validation"
)

const (
	mediaTypeJSON      = "application/json"
	mediaTypeMultipart = "multipart/form-data"
)

type IndexRequest struct {
	Documents []ingest.DocumentInput `json:"documents" validate:"required,dive"`
}

type IndexResponse struct {
	Results     []ingest.Outcome `json:"results"`
	IndexName   string           `json:"index_name,omitempty"`
	DownloadURL string           `json:"download_url,omitempty"`
}

func SetupIndex(router gin.IRouter, logger logger.Logger, cfg *config.Config, searchDB searchdb.DB, kvDB kvdb.DB, root *storage.Root, validator *validation.Validator, prefix download.Prefix) {
	decoder := ingest.New(logger, cfg.GetMaxDocumentBytes())
	service := index.New(logger, searchDB, kvDB, root)
	router.POST("/index", handleIndex(decoder, service, logger, validator, prefix))
	router.GET("/index/:index_name", handleGetIndex(service, logger, validator))
	router.GET("/indices", handleListIndices(service, logger, validator))
}

func handleIndex(decoder *ingest.Decoder, service *index.Service, logger logger.Logger, validator *validation.Validator, prefix download.Prefix) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger.Info("received document indexing request", "content_type", c.ContentType())

		batch, status := decodeIndexRequest(c, decoder, logger, validator)
		if status != http.StatusOK {
			c.Abort()
			c.JSON(status, IndexResponse{Results: batch.Outcomes})
			return
		}

		handle, err := service.Build(c.Request.Context(), batch)
		if err != nil {
			logger.Error("could not build index", "err", err.Error())
			c.Abort()
			c.JSON(http.StatusInternalServerError, IndexResponse{Results: batch.Outcomes})
			return
		}

		c.JSON(http.StatusOK, IndexResponse{
			Results:     batch.Outcomes,
			IndexName:   handle.Name,
			DownloadURL: prefix.IndexURL(handle.Name),
		})
	}
}

func decodeIndexRequest(c *gin.Context, decoder *ingest.Decoder, logger logger.Logger, validator *validation.Validator) (*ingest.Batch, int) {
	switch c.ContentType() {
	case mediaTypeMultipart:
		reader, err := c.Request.MultipartReader()
		if err != nil {
			logger.Warn("could not read multipart request", "err", err.Error())
			return ingest.Rejected(ingest.MsgInvalidMultipart), http.StatusUnprocessableEntity
		}
		return decoder.DecodeMultipart(c.Request.Context(), reader), http.StatusOK

	case mediaTypeJSON:
		request := IndexRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract documents from the request body", "err", err.Error())
			return ingest.Rejected(ingest.MsgInvalidJSON), http.StatusUnprocessableEntity
		}
		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate index request", "err", err.Error())
			return ingest.Rejected(ingest.MsgInvalidJSON), http.StatusUnprocessableEntity
		}
		return decoder.DecodeBatch(request.Documents), http.StatusOK

	default:
		logger.Warn("unsupported content type", "content_type", c.ContentType())
		return ingest.Rejected(ingest.MsgUnsupportedContentType), http.StatusUnsupportedMediaType
	}
}
