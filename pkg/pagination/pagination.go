package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Page  int
	Limit int
}

// FromContext extracts page/limit query parameters from the echo context.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{Page: page, Limit: limit}
}

// Offset returns the number of rows to skip for the current page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pages returns the total page count for the given result size.
func (p Params) Pages(total int) int {
	if total <= 0 {
		return 0
	}
	pages := total / p.Limit
	if total%p.Limit != 0 {
		pages++
	}
	return pages
}

// Response is the API envelope. Data carries the payload on success; Errors
// carries field-level messages on validation failure. Total/Page/Pages are
// present only on list responses.
type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
	Total   *int        `json:"total,omitempty"`
	Page    *int        `json:"page,omitempty"`
	Pages   *int        `json:"pages,omitempty"`
}

// New wraps a single payload in the response envelope.
func New(message string, data interface{}) *Response {
	return &Response{Message: message, Data: data}
}

// NewList wraps a paginated payload with total and page counts echoed back.
func NewList(message string, data interface{}, total int, p Params) *Response {
	pages := p.Pages(total)
	return &Response{
		Message: message,
		Data:    data,
		Total:   &total,
		Page:    &p.Page,
		Pages:   &pages,
	}
}
