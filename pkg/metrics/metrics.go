// Package metrics exports engine events as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/engine"
)

// Observer implements engine.Observer by updating Prometheus collectors.
type Observer struct {
	// JoinsTotal counts joins by strategy and kind (inner, left).
	JoinsTotal *prometheus.CounterVec
	// RowsDroppedTotal counts per-row errors contained by a stage.
	RowsDroppedTotal *prometheus.CounterVec
	// Groups is the distribution of group counts per grouping stage.
	Groups prometheus.Histogram
	// QueriesTotal counts finished queries by form and status.
	QueriesTotal *prometheus.CounterVec
	// QueryDuration is query latency in seconds, by form.
	QueryDuration *prometheus.HistogramVec
	// QueryRows is the distribution of result sizes, by form.
	QueryRows *prometheus.HistogramVec
}

var _ engine.Observer = (*Observer)(nil)

// NewObserver registers the collectors with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default registry.
func NewObserver(reg prometheus.Registerer) *Observer {
	factory := promauto.With(reg)
	return &Observer{
		JoinsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarry_joins_total",
				Help: "Total number of joins evaluated, by strategy",
			},
			[]string{"strategy", "kind"},
		),
		RowsDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarry_rows_dropped_total",
				Help: "Total number of rows dropped because of a contained evaluation error",
			},
			[]string{"stage"},
		),
		Groups: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quarry_groups_emitted",
				Help:    "Number of groups emitted per grouping stage",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarry_queries_total",
				Help: "Total number of queries evaluated",
			},
			[]string{"form", "status"},
		),
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quarry_query_duration_seconds",
				Help:    "Query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"form"},
		),
		QueryRows: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quarry_query_rows",
				Help:    "Number of rows produced per query",
				Buckets: prometheus.ExponentialBuckets(1, 10, 7),
			},
			[]string{"form"},
		),
	}
}

func (o *Observer) StrategySelected(strategy string, kind engine.JoinKind, _, _ algebra.Operator) {
	o.JoinsTotal.WithLabelValues(strategy, kind.String()).Inc()
}

func (o *Observer) RowDropped(stage engine.Stage, _ string, _ error) {
	o.RowsDroppedTotal.WithLabelValues(string(stage)).Inc()
}

func (o *Observer) GroupsEmitted(groups int) {
	o.Groups.Observe(float64(groups))
}

func (o *Observer) QueryFinished(form algebra.QueryForm, rows int, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	label := form.String()
	o.QueriesTotal.WithLabelValues(label, status).Inc()
	o.QueryDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	if err == nil {
		o.QueryRows.WithLabelValues(label).Observe(float64(rows))
	}
}
