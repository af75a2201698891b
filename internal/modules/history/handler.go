package history

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/interviewlab/core/internal/middleware"
	"github.com/interviewlab/core/internal/pkg/pagination"
	"github.com/interviewlab/core/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/history", authMW)
	g.GET("", h.list)
	g.GET("/recent", h.recent)
	g.GET("/diversity", h.diversity)
}

// GET /history?page&size&reference=
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	entries, pag, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c), c.Query("reference"), q)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, entries, pag)
}

// GET /history/recent?limit&reference=
func (h *Handler) recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	userID := middleware.CurrentUserID(c)
	ref := strings.TrimSpace(c.Query("reference"))

	var items []string
	if ref != "" {
		items = h.svc.RecentByReference(c.Request.Context(), userID, ref, limit)
	} else {
		items = h.svc.Recent(c.Request.Context(), userID, limit)
	}
	response.OK(c, items)
}

// GET /history/diversity?reference=
func (h *Handler) diversity(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	ref := strings.TrimSpace(c.Query("reference"))

	var previous []string
	if ref != "" {
		previous = h.svc.RecentByReference(c.Request.Context(), userID, ref, 0)
	} else {
		previous = h.svc.Recent(c.Request.Context(), userID, 0)
	}
	response.OK(c, gin.H{
		"count":       len(previous),
		"instruction": h.svc.DiversityInstruction(previous),
	})
}
