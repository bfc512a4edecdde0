package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/keywordsearch/db/kvdb"
	"github.com/meghashyamc/keywordsearch/logger"
	"github.com/meghashyamc/keywordsearch/services/index"
	"github.com/meghashyamc/keywordsearch/validation"
)

type IndexNameRequest struct {
	IndexName string `uri:"index_name" json:"index_name" validate:"required,valid_index_name"`
}

func handleGetIndex(service *index.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := IndexNameRequest{}
		if err := c.ShouldBindUri(&request); err != nil {
			logger.Warn("could not extract index name from the path", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract path parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		details, err := service.Get(request.IndexName)
		if err != nil {
			c.Abort()
			if errors.Is(err, index.ErrIndexNotFound) {
				writeResponse(c, nil, http.StatusNotFound, []string{err.Error()})
				return
			}
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, details, http.StatusOK, nil)
	}
}

const defaultIndicesPerPage = 20

type ListIndicesRequest struct {
	PerPage int `form:"per_page" json:"per_page" validate:"min=0,max=100"`
	Page    int `form:"page" json:"page" validate:"min=0"`
}

func (r *ListIndicesRequest) setDefaults() {
	if r.PerPage == 0 {
		r.PerPage = defaultIndicesPerPage
	}

	if r.Page == 0 {
		r.Page = 1
	}
}

type ListIndicesResponse struct {
	Indices     []kvdb.IndexRecord `json:"indices"`
	PageDetails Pagination         `json:"page_details"`
}

func handleListIndices(service *index.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := ListIndicesRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from list request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract query parameters"})
			return
		}
		request.setDefaults()

		if err := validator.Validate(request); err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		records, err := service.List()
		if err != nil {
			logger.Error("could not list indices", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		limit := request.PerPage
		offset := (request.Page - 1) * request.PerPage
		page := []kvdb.IndexRecord{}
		if offset < len(records) {
			page = records[offset:min(offset+limit, len(records))]
		}

		writeResponse(c, ListIndicesResponse{
			Indices:     page,
			PageDetails: calculatePagination(len(records), limit, offset),
		}, http.StatusOK, nil)
	}
}
