package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	questionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatbot_questions_total",
		Help: "Total chatbot questions",
	})
	questionsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatbot_questions_failed_total",
		Help: "Total chatbot questions that failed",
	})
	comparisonsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatbot_comparisons_total",
		Help: "Total policy comparisons",
	})
	comparisonsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatbot_comparisons_failed_total",
		Help: "Total policy comparisons that failed",
	})
	indexBuildsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rag_index_builds_total",
		Help: "Total retrieval index builds",
	})
	indexedDocuments = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rag_indexed_documents",
		Help: "Policies in the current retrieval index",
	})
	llmDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "llm_request_duration_ms",
		Help:    "LLM-backed request duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
	})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		questionsTotal,
		questionsFailedTotal,
		comparisonsTotal,
		comparisonsFailed,
		indexBuildsTotal,
		indexedDocuments,
		llmDuration,
	)
}

// IncQuestion counts a chatbot question.
func IncQuestion() {
	questionsTotal.Inc()
}

// IncQuestionFailed counts a chatbot question that ended in an error.
func IncQuestionFailed() {
	questionsFailedTotal.Inc()
}

// IncComparison counts a policy comparison.
func IncComparison() {
	comparisonsTotal.Inc()
}

// IncComparisonFailed counts a policy comparison that ended in an error.
func IncComparisonFailed() {
	comparisonsFailed.Inc()
}

// IndexBuilt records a finished retrieval index build over n documents.
func IndexBuilt(n int) {
	indexBuildsTotal.Inc()
	indexedDocuments.Set(float64(n))
}

// ObserveLLMDuration records the wall time of an LLM-backed request.
func ObserveLLMDuration(d time.Duration) {
	value := float64(d) / float64(time.Millisecond)
	if value < 0 {
		value = 0
	}
	llmDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
