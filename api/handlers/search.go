package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/keywordsearch/db/searchdb"
	"github.com/meghashyamc/keywordsearch/logger"
	"github.com/meghashyamc/keywordsearch/services/search"
	"github.com/meghashyamc/keywordsearch/storage"
	"github.com/meghashyamc/keywordsearch/validation"
)

type SearchRequest struct {
	Query string `json:"query" validate:"required,valid_query,max=1000"`
	TopK  int    `json:"top_k" validate:"min=0,max=1000"`
	Index string `json:"index" validate:"required"`
}

type SearchResponse struct {
	Hits  []search.Hit `json:"hits"`
	Error string       `json:"error,omitempty"`
}

func SetupSearch(router gin.IRouter, logger logger.Logger, searchDB searchdb.DB, root *storage.Root, validator *validation.Validator) {
	service := search.New(logger, searchDB, root)
	router.POST("/search", handleSearch(service, logger, validator))
}

func handleSearch(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SearchRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected params from search request", "err", err.Error())
			c.Abort()
			c.JSON(http.StatusUnprocessableEntity, SearchResponse{Hits: []search.Hit{}, Error: "failed to extract request body parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate search request", "err", err.Error())
			c.Abort()
			c.JSON(http.StatusNotAcceptable, SearchResponse{Hits: []search.Hit{}, Error: err.Error()})
			return
		}

		hits, err := service.Search(c.Request.Context(), search.Query{
			Query: request.Query,
			TopK:  request.TopK,
			Index: request.Index,
		})
		if err != nil {
			c.Abort()
			c.JSON(searchErrorStatus(err), SearchResponse{Hits: []search.Hit{}, Error: err.Error()})
			return
		}

		c.JSON(http.StatusOK, SearchResponse{Hits: hits})
	}
}

func searchErrorStatus(err error) int {
	var searchErr *search.Error
	switch {
	case errors.Is(err, storage.ErrIndexNotFound):
		return http.StatusNotFound
	case errors.Is(err, search.ErrInvalidTopK):
		return http.StatusNotAcceptable
	case errors.As(err, &searchErr) && searchErr.Stage == search.StageParse:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
