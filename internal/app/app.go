package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/interviewlab/core/internal/config"
	"github.com/interviewlab/core/internal/database"
	"github.com/interviewlab/core/internal/middleware"
	"github.com/interviewlab/core/internal/modules/ai"
	"github.com/interviewlab/core/internal/modules/feedback"
	"github.com/interviewlab/core/internal/modules/history"
	"github.com/interviewlab/core/internal/modules/question"
	"github.com/interviewlab/core/internal/modules/reference"
	pkgcron "github.com/interviewlab/core/internal/pkg/cron"
	"github.com/interviewlab/core/internal/pkg/metrics"
	pkgredis "github.com/interviewlab/core/internal/pkg/redis"
	"github.com/interviewlab/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	rc     *pkgredis.Client
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler

	history   *history.Service
	reference *reference.Service
	question  *question.Service
	feedback  *feedback.Service
	tasks     *taskqueue.Service
}

// New initializes the application: DB, Redis, services, routes, cron.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	applyRuntimeSettings(cfg, logger)

	db, err := database.Connect(cfg, logger, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	rc, err := pkgredis.Connect(ctx, cfg.RedisURL)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.Metrics.Enable {
		metrics.Init()
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	if cfg.Metrics.Enable {
		router.Use(metrics.Middleware())
	}
	router.Use(cors.New(corsConfig(cfg)))

	a := &App{cfg: cfg, router: router, db: db, rc: rc, logger: logger, cancel: cancel}
	if err := a.initServices(); err != nil {
		cancel()
		_ = rc.Close()
		return nil, err
	}

	a.sched = pkgcron.New(logger)
	a.registerCronJobs()
	a.sched.Start(ctx)

	a.registerRoutes()
	return a, nil
}

func (a *App) initServices() error {
	cfg := a.cfg
	log := a.logger

	a.history = history.NewService(a.db, cfg.History, log)
	// A detailed generation never outlives its timeout, so a task idle for
	// twice that long has lost its worker.
	a.tasks = taskqueue.NewService(a.rc).WithStaleAfter(2 * cfg.Feedback.GenerationTimeout)

	a.reference = reference.NewService(a.db, log).WithCache(a.rc)
	if cfg.Storage.S3.Enable {
		store, err := reference.NewS3Store(cfg.Storage.S3)
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
		a.reference.WithObjectStore(store, cfg.Storage.S3.Prefix)
	}

	gen := ai.NewGenerator(cfg.AI, log)
	if !gen.Available() {
		log.Warn("no enabled AI provider configured, generation requests will fail")
	}

	a.question = question.NewService(a.db, a.history, gen, a.reference, question.Options{
		Timeout:             cfg.Feedback.GenerationTimeout,
		FilterDuplicates:    cfg.History.FilterDuplicates,
		SimilarityThreshold: cfg.History.SimilarityThreshold,
	}, log)

	a.feedback = feedback.NewService(a.db, gen, gen, feedback.Options{
		Timeout: cfg.Feedback.GenerationTimeout,
	}, log)
	if cfg.Feedback.AsyncDetailed {
		a.feedback.WithQueue(a.tasks)
	}
	return nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops cron, waits for background feedback work and closes Redis.
func (a *App) Shutdown() {
	a.cancel()
	a.feedback.Close()
	if err := a.rc.Close(); err != nil {
		a.logger.Warn("close redis", zap.Error(err))
	}
}
