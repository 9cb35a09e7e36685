package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cloudbees-oss/juxr/types"
)

const MetricsNamespace = "juxr"

var (
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	artifactsImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "artifacts_imported_total",
		Help:      "Count of artifacts reconstructed from the inbound stream",
	}, []string{
		"kind",
	})

	artifactsExported = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "artifacts_exported_total",
		Help:      "Count of artifacts framed onto the outbound stream",
	}, []string{
		"kind",
	})

	testResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "test_results_total",
		Help:      "Count of test case results recorded",
	}, []string{
		"suite",
		"result",
	})
)

// RecordError increments the error counter for the named error kind
func RecordError(name string) {
	errorsTotal.WithLabelValues(name).Inc()
}

// RecordArtifactImported counts one reconstructed artifact
func RecordArtifactImported(kind string) {
	artifactsImported.WithLabelValues(kind).Inc()
}

// RecordArtifactExported counts one framed artifact
func RecordArtifactExported(kind string) {
	artifactsExported.WithLabelValues(kind).Inc()
}

// RecordSuite counts the results of every case in the suite
func RecordSuite(s *types.TestSuite) {
	for _, c := range s.Cases {
		testResultsTotal.WithLabelValues(s.Name, string(c.Status)).Inc()
	}
}
