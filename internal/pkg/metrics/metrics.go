package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interview_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "route", "status"},
	)

	QuestionsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_questions_generated_total",
			Help: "Questions persisted after duplicate filtering",
		},
	)

	DuplicatesFiltered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_duplicate_questions_filtered_total",
			Help: "Generated candidates dropped as near duplicates",
		},
		[]string{"against"},
	)

	HistoryWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_history_write_failures_total",
			Help: "History ledger writes that failed and were skipped",
		},
	)

	HistorySwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_history_swept_total",
			Help: "Expired history rows deleted by the sweep job",
		},
	)

	FeedbackCacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_feedback_cache_results_total",
			Help: "Feedback cache lookups by axis and result",
		},
		[]string{"axis", "result"},
	)

	FeedbackGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_feedback_generations_total",
			Help: "Feedback generations by axis and outcome",
		},
		[]string{"axis", "status"},
	)

	LLMDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interview_llm_call_duration_seconds",
			Help:    "LLM call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 90},
		},
		[]string{"task", "status"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_llm_tokens_used_total",
			Help: "LLM tokens used",
		},
		[]string{"model", "type"},
	)
)

var registerOnce sync.Once

// Init registers all collectors with the default registry.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(QuestionsGenerated)
		prometheus.MustRegister(DuplicatesFiltered)
		prometheus.MustRegister(HistoryWriteFailures)
		prometheus.MustRegister(HistorySwept)
		prometheus.MustRegister(FeedbackCacheResults)
		prometheus.MustRegister(FeedbackGenerations)
		prometheus.MustRegister(LLMDuration)
		prometheus.MustRegister(LLMTokensUsed)
	})
}

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// Middleware records request latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// ObserveLLM records one LLM call.
func ObserveLLM(task string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	LLMDuration.WithLabelValues(task, status).Observe(time.Since(started).Seconds())
}

// AddTokens records token usage; zero counts are ignored.
func AddTokens(model string, input, output int) {
	if input > 0 {
		LLMTokensUsed.WithLabelValues(model, "input").Add(float64(input))
	}
	if output > 0 {
		LLMTokensUsed.WithLabelValues(model, "output").Add(float64(output))
	}
}
