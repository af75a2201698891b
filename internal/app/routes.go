package app

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/interviewlab/core/internal/middleware"
	"github.com/interviewlab/core/internal/modules/auth/user"
	"github.com/interviewlab/core/internal/modules/feedback"
	"github.com/interviewlab/core/internal/modules/health"
	"github.com/interviewlab/core/internal/modules/history"
	"github.com/interviewlab/core/internal/modules/question"
	"github.com/interviewlab/core/internal/modules/reference"
	"github.com/interviewlab/core/internal/pkg/metrics"
	"github.com/interviewlab/core/internal/pkg/response"
)

const apiPrefix = "/api/v1"

var appInfo = gin.H{
	"name":    "interviewlab-core",
	"version": "1.0.0",
}

func (a *App) registerRoutes() {
	r := a.router
	authMW := middleware.Auth(a.db)
	rdb := a.rc.Raw()

	r.NoRoute(func(c *gin.Context) { response.NotFound(c) })
	r.NoMethod(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"ok": 0, "code": http.StatusMethodNotAllowed, "message": "method not allowed"})
	})

	if a.cfg.Metrics.Enable {
		path := strings.TrimSpace(a.cfg.Metrics.Path)
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, metrics.Handler())
	}

	api := r.Group(apiPrefix)
	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })

	health.NewHandler(map[string]health.Pinger{
		"database": health.PingFunc(func(ctx context.Context) error {
			sqlDB, err := a.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
		"redis": a.rc,
	}, a.sched).RegisterRoutes(api, authMW)

	limit := middleware.RateLimit(rdb, "generate", a.cfg.RateLimit.GeneratePerMinute, a.logger)

	user.NewHandler(user.NewService(a.db, a.logger)).RegisterRoutes(api, authMW)
	history.NewHandler(a.history).RegisterRoutes(api, authMW)
	reference.NewHandler(a.reference).RegisterRoutes(api, authMW)
	question.NewHandler(a.question).RegisterRoutes(api, authMW, limit, middleware.Idempotence(rdb))
	feedback.NewHandler(a.feedback).RegisterRoutes(api, authMW, limit)
}
