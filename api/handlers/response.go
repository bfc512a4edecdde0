package handlers

import "github.com/gin-gonic/gin"

type response struct {
	Data   any      `json:"data"`
	Errors []string `json:"errors"`
}

// writeResponse writes the {data, errors} envelope used by the registry endpoints.
func writeResponse(c *gin.Context, data any, statusCode int, errors []string) {
	c.JSON(statusCode, response{
		Data:   data,
		Errors: errors,
	})
}

// Pagination describes one page of a listing.
type Pagination struct {
	CurrentPage  int  `json:"current_page"`
	PageSize     int  `json:"page_size"`
	TotalPages   int  `json:"total_pages"`
	HasNextPage  bool `json:"has_next_page"`
	HasPrevPage  bool `json:"has_prev_page"`
	TotalResults int  `json:"total_results"`
}

func calculatePagination(total, limit, offset int) Pagination {
	pageSize := limit
	currentPage := (offset / limit) + 1
	totalPages := (total + pageSize - 1) / pageSize

	if totalPages == 0 {
		totalPages = 1
	}

	return Pagination{
		CurrentPage:  currentPage,
		PageSize:     pageSize,
		TotalPages:   totalPages,
		HasNextPage:  currentPage < totalPages,
		HasPrevPage:  currentPage > 1,
		TotalResults: total,
	}
}
