package feedback

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/interviewlab/core/internal/middleware"
	"github.com/interviewlab/core/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts the feedback routes. generateMW guards the two
// generation endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, generateMW ...gin.HandlerFunc) {
	answers := rg.Group("/answers/:id/feedback", authMW)
	answers.GET("", h.get)
	answers.POST("/quick", append(append([]gin.HandlerFunc{}, generateMW...), h.quick)...)
	answers.POST("/detailed", append(append([]gin.HandlerFunc{}, generateMW...), h.detailed)...)

	rg.GET("/feedback/tasks/:id", authMW, h.task)
}

// GET /answers/:id/feedback
func (h *Handler) get(c *gin.Context) {
	fb, err := h.svc.Get(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if fb == nil {
		response.NotFoundMsg(c, "feedback has not been generated")
		return
	}
	response.OK(c, fb)
}

// POST /answers/:id/feedback/quick
func (h *Handler) quick(c *gin.Context) {
	fb, err := h.svc.EnsureQuick(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, fb)
}

// POST /answers/:id/feedback/detailed?async=true
func (h *Handler) detailed(c *gin.Context) {
	async, _ := strconv.ParseBool(c.Query("async"))
	userID := middleware.CurrentUserID(c)

	if async && h.svc.AsyncEnabled() {
		job, err := h.svc.EnqueueDetailed(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		if job.Feedback != nil {
			response.OK(c, job.Feedback)
			return
		}
		response.Accepted(c, gin.H{"task_id": job.Task.ID, "status": job.Task.Status})
		return
	}

	fb, err := h.svc.EnsureDetailed(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, fb)
}

// GET /feedback/tasks/:id
func (h *Handler) task(c *gin.Context) {
	task, err := h.svc.Task(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, task)
}
