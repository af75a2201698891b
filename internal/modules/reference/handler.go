package reference

import (
	"github.com/gin-gonic/gin"
	"github.com/interviewlab/core/internal/middleware"
	"github.com/interviewlab/core/internal/pkg/pagination"
	"github.com/interviewlab/core/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/references", authMW)
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:digest", h.get)
}

// POST /references
func (h *Handler) create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "content is required")
		return
	}
	row, created, err := h.svc.Create(c.Request.Context(), middleware.CurrentUserID(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		response.Created(c, row)
		return
	}
	response.OK(c, row)
}

// GET /references
func (h *Handler) list(c *gin.Context) {
	rows, pag, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c), pagination.FromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, rows, pag)
}

// GET /references/:digest
func (h *Handler) get(c *gin.Context) {
	row, err := h.svc.Get(c.Request.Context(), middleware.CurrentUserID(c), c.Param("digest"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, row)
}
