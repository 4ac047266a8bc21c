package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "okr_llm_requests_total",
			Help: "Completion calls by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	LLMLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "okr_llm_request_duration_seconds",
			Help:    "Completion call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"operation"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "okr_llm_tokens_used_total",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "okr_circuit_breaker_open",
			Help: "1 when the named circuit breaker is open",
		},
		[]string{"name"},
	)

	ScoringRounds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "okr_scoring_rounds_total",
			Help: "Scoring rounds by outcome",
		},
		[]string{"status"},
	)

	ScoringRoundDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "okr_scoring_round_duration_seconds",
			Help:    "Duration of one scoring round including parsing",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80, 160},
		},
	)

	ScoringCells = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "okr_scoring_cells_total",
			Help: "(kr, person) cells processed by outcome",
		},
		[]string{"outcome"},
	)

	ScoresSaved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "okr_scores_saved_total",
			Help: "Task score rows persisted",
		},
	)

	TasksImported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "okr_tasks_imported_total",
			Help: "Task rows imported from spreadsheets",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "okr_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "okr_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(LLMRequests)
		prometheus.MustRegister(LLMLatency)
		prometheus.MustRegister(LLMTokensUsed)
		prometheus.MustRegister(CircuitBreakerState)
		prometheus.MustRegister(ScoringRounds)
		prometheus.MustRegister(ScoringRoundDuration)
		prometheus.MustRegister(ScoringCells)
		prometheus.MustRegister(ScoresSaved)
		prometheus.MustRegister(TasksImported)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
