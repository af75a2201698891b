package question

import (
	"github.com/gin-gonic/gin"
	"github.com/interviewlab/core/internal/middleware"
	"github.com/interviewlab/core/internal/pkg/pagination"
	"github.com/interviewlab/core/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts /questions. generateMW runs after auth on the
// generation route only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, generateMW ...gin.HandlerFunc) {
	g := rg.Group("/questions", authMW)
	g.POST("/generate", append(append([]gin.HandlerFunc{}, generateMW...), h.generate)...)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/answers", h.answers)
	g.POST("/:id/answers", h.submitAnswer)
}

// POST /questions/generate
func (h *Handler) generate(c *gin.Context) {
	var in GenerateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	result, err := h.svc.Generate(c.Request.Context(), middleware.CurrentUserID(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// GET /questions?page&size&session_id=
func (h *Handler) list(c *gin.Context) {
	rows, pag, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c), c.Query("session_id"), pagination.FromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, rows, pag)
}

// GET /questions/:id
func (h *Handler) get(c *gin.Context) {
	q, err := h.svc.Get(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, q)
}

// GET /questions/:id/answers
func (h *Handler) answers(c *gin.Context) {
	rows, err := h.svc.Answers(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rows)
}

// POST /questions/:id/answers
func (h *Handler) submitAnswer(c *gin.Context) {
	var body answerRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "content is required")
		return
	}
	a, err := h.svc.SubmitAnswer(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), body.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, a)
}
