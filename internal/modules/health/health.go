package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/interviewlab/core/internal/pkg/cron"
	"github.com/interviewlab/core/internal/pkg/response"
)

const pingTimeout = 2 * time.Second

// Pinger is a dependency that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Scheduler is the subset of the cron scheduler exposed over HTTP.
type Scheduler interface {
	List() []cron.ListItem
	RunNow(ctx context.Context, name string) error
}

type Handler struct {
	deps  map[string]Pinger
	sched Scheduler
	start time.Time
}

func NewHandler(deps map[string]Pinger, sched Scheduler) *Handler {
	return &Handler{deps: deps, sched: sched, start: time.Now()}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/health", h.health)
	rg.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })

	g := rg.Group("/health/cron", authMW)
	g.GET("", h.cronList)
	g.POST("/run/:name", h.cronRun)
}

// GET /health
func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	checks := make(map[string]bool, len(h.deps))
	for name, dep := range h.deps {
		ok := dep.Ping(ctx) == nil
		checks[name] = ok
		if !ok {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"uptime": humanizeDuration(time.Since(h.start)),
	})
}

func (h *Handler) cronList(c *gin.Context) {
	response.OK(c, h.sched.List())
}

func (h *Handler) cronRun(c *gin.Context) {
	if err := h.sched.RunNow(c.Request.Context(), c.Param("name")); err != nil {
		response.NotFoundMsg(c, err.Error())
		return
	}
	response.OK(c, gin.H{"message": "job finished"})
}

func humanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Truncate(time.Second).String()
	}
	if d < time.Hour {
		return d.Truncate(time.Minute).String()
	}
	if d < 24*time.Hour {
		return d.Truncate(time.Hour).String()
	}
	return d.Truncate(24 * time.Hour).String()
}
