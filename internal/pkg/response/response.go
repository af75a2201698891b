package response

import (
	"math/rand/v2"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/interviewlab/core/internal/pkg/apperr"
)

var notFoundMessages = []string{
	"Nothing here. Try another question?",
	"That one slipped out of the question bank.",
	"404: the interviewer never asked that.",
	"We looked under every whiteboard. Not found.",
}

// Pagination metadata returned with paginated responses.
type Pagination struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	TotalPage   int   `json:"total_page"`
	Size        int   `json:"size"`
	HasNextPage bool  `json:"has_next_page"`
}

// pagedResponse is the envelope for paginated list responses.
type pagedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// OK sends a 200 response. Arrays/slices are wrapped in {data: [...]}.
func OK(c *gin.Context, data interface{}) {
	if data != nil {
		v := reflect.ValueOf(data)
		if v.Kind() == reflect.Slice {
			c.JSON(http.StatusOK, gin.H{"data": data})
			return
		}
	}
	c.JSON(http.StatusOK, data)
}

// Paged sends a paginated response.
func Paged(c *gin.Context, data interface{}, pagination Pagination) {
	c.JSON(http.StatusOK, pagedResponse{
		Data:       data,
		Pagination: pagination,
	})
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Accepted sends a 202 response for work queued in the background.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, data)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": 0, "code": status, "message": message})
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, message)
}

// Unauthorized sends a 401 error response.
func Unauthorized(c *gin.Context) {
	abort(c, http.StatusUnauthorized, "sign in required")
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context) {
	abort(c, http.StatusNotFound, notFoundMessages[rand.IntN(len(notFoundMessages))])
}

// NotFoundMsg sends a 404 error with a custom message.
func NotFoundMsg(c *gin.Context, message string) {
	abort(c, http.StatusNotFound, message)
}

// Conflict sends a 409 error response.
func Conflict(c *gin.Context, message string) {
	abort(c, http.StatusConflict, message)
}

// PreconditionFailed sends a 412 error response.
func PreconditionFailed(c *gin.Context, message string) {
	abort(c, http.StatusPreconditionFailed, message)
}

// TooManyRequests sends a 429 error response.
func TooManyRequests(c *gin.Context) {
	abort(c, http.StatusTooManyRequests, "too many requests, slow down")
}

// InternalError sends a 500 error response without leaking err.
func InternalError(c *gin.Context, err error) {
	_ = c.Error(err)
	abort(c, http.StatusInternalServerError, "internal server error")
}

// BadGateway sends a 502 error response.
func BadGateway(c *gin.Context, message string) {
	abort(c, http.StatusBadGateway, message)
}

// Error maps a service error to its HTTP status. Forbidden is reported as
// not found so callers cannot probe other users' resources.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)
	msg := apperr.PublicMessage(err)
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		abort(c, http.StatusBadRequest, msg)
	case apperr.KindUnauthorized:
		abort(c, http.StatusUnauthorized, msg)
	case apperr.KindForbidden, apperr.KindNotFound:
		abort(c, http.StatusNotFound, msg)
	case apperr.KindConflict:
		abort(c, http.StatusConflict, msg)
	case apperr.KindPrecondition:
		abort(c, http.StatusPreconditionFailed, msg)
	case apperr.KindUpstream:
		abort(c, http.StatusBadGateway, msg)
	default:
		abort(c, http.StatusInternalServerError, msg)
	}
}
