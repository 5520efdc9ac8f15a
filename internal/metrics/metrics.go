package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesIngested counts processed source messages by channel and result
	// (inserted, duplicate, failed).
	MessagesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medpipe_messages_ingested_total",
		Help: "Source messages processed by the ingestion coordinator.",
	}, []string{"channel", "result"})

	// MediaOutcomes counts media gate decisions by resulting state.
	MediaOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medpipe_media_outcomes_total",
		Help: "Media acquisition outcomes.",
	}, []string{"state"})

	// DetectionRuns counts enrichment items by result (written, failed, missing_file).
	DetectionRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medpipe_detection_runs_total",
		Help: "Pending assets handled by the enrichment runner.",
	}, []string{"result"})

	ConnectionRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medpipe_db_connection_retries_total",
		Help: "Database connection attempts retried after a transient failure.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
