package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for address and dataset observability.
// Every method is safe to call on a nil receiver so packages can record
// unconditionally.
type BusinessMetrics struct {
	// Formatting
	AddressesFormatted *prometheus.CounterVec
	FormatFailures     *prometheus.CounterVec

	// Validation
	PostalValidations  *prometheus.CounterVec
	AddressValidations *prometheus.CounterVec

	// Dataset reads
	SchemaLoads  *prometheus.CounterVec
	CacheLookups *prometheus.CounterVec

	// Dataset refresh
	FetchRuns     *prometheus.CounterVec
	FetchFiles    prometheus.Counter
	FetchDuration prometheus.Histogram
	RefreshEvents *prometheus.CounterVec
}

// NewBusinessMetrics creates the metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "addrfmt"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	subsystem := "business"

	m := &BusinessMetrics{
		// =======================================================================
		// Formatting
		// =======================================================================
		AddressesFormatted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "addresses_formatted_total",
				Help:      "Total addresses rendered",
			},
			[]string{"country", "mode"}, // mode: lines, joined
		),
		FormatFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "format_failures_total",
				Help:      "Total format requests that failed",
			},
			[]string{"country", "reason"}, // reason: unknown_locale, no_template, unresolved_placeholder, ...
		),

		// =======================================================================
		// Validation
		// =======================================================================
		PostalValidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "postal_validations_total",
				Help:      "Total postal code checks",
			},
			[]string{"country", "result"}, // result: valid, invalid
		),
		AddressValidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "address_validations_total",
				Help:      "Total full address validations",
			},
			[]string{"country", "result"}, // result: valid, invalid
		),

		// =======================================================================
		// Dataset reads
		// =======================================================================
		SchemaLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "schema_loads_total",
				Help:      "Total schema loads from the backing store",
			},
			[]string{"result"}, // result: ok, not_found, error
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "schema_cache_lookups_total",
				Help:      "Total schema cache lookups",
			},
			[]string{"result"}, // result: hit, miss
		),

		// =======================================================================
		// Dataset refresh
		// =======================================================================
		FetchRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dataset_fetch_runs_total",
				Help:      "Total dataset refresh runs",
			},
			[]string{"result"}, // result: success, failure
		),
		FetchFiles: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dataset_fetch_files_total",
				Help:      "Total country records downloaded",
			},
		),
		FetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dataset_fetch_duration_seconds",
				Help:      "Dataset refresh duration",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		RefreshEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dataset_refresh_events_total",
				Help:      "Dataset refresh notifications",
			},
			[]string{"direction"}, // direction: published, received
		),
	}

	return m
}

// Global instance for easy access from handlers
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace, nil)
	return Business
}

// RecordFormat counts a rendered address.
func (m *BusinessMetrics) RecordFormat(country, mode string) {
	if m == nil {
		return
	}
	m.AddressesFormatted.WithLabelValues(country, mode).Inc()
}

// RecordFormatFailure counts a failed render.
func (m *BusinessMetrics) RecordFormatFailure(country, reason string) {
	if m == nil {
		return
	}
	m.FormatFailures.WithLabelValues(country, reason).Inc()
}

// RecordPostalValidation counts a postal code check.
func (m *BusinessMetrics) RecordPostalValidation(country string, valid bool) {
	if m == nil {
		return
	}
	m.PostalValidations.WithLabelValues(country, validLabel(valid)).Inc()
}

// RecordAddressValidation counts a full address validation.
func (m *BusinessMetrics) RecordAddressValidation(country string, valid bool) {
	if m == nil {
		return
	}
	m.AddressValidations.WithLabelValues(country, validLabel(valid)).Inc()
}

// RecordSchemaLoad counts a load that reached the backing store.
func (m *BusinessMetrics) RecordSchemaLoad(result string) {
	if m == nil {
		return
	}
	m.SchemaLoads.WithLabelValues(result).Inc()
}

// RecordCacheHit counts a schema served from memory.
func (m *BusinessMetrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues("hit").Inc()
}

// RecordCacheMiss counts a schema that had to be loaded.
func (m *BusinessMetrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// RecordFetchFile counts one downloaded record.
func (m *BusinessMetrics) RecordFetchFile() {
	if m == nil {
		return
	}
	m.FetchFiles.Inc()
}

// RecordFetchRun records the outcome and duration of a refresh run.
func (m *BusinessMetrics) RecordFetchRun(success bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.FetchRuns.WithLabelValues(result).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

// RecordRefreshEvent counts a refresh notification.
func (m *BusinessMetrics) RecordRefreshEvent(direction string) {
	if m == nil {
		return
	}
	m.RefreshEvents.WithLabelValues(direction).Inc()
}

func validLabel(valid bool) string {
	if valid {
		return "valid"
	}
	return "invalid"
}
