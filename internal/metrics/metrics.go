package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowpbx/ivrflow/internal/callflow"
	"github.com/prometheus/client_golang/prometheus"
)

// ContactCounter returns the number of stored contacts.
type ContactCounter interface {
	Count(ctx context.Context) (int64, error)
}

// StepStatsProvider exposes flow step outcome counters.
type StepStatsProvider interface {
	Stats() callflow.StepStats
}

// InFlightProvider exposes the number of flow steps being handled right now.
type InFlightProvider interface {
	InFlight() int64
}

// Collector is a prometheus.Collector that gathers ivrflow metrics at scrape time.
type Collector struct {
	contacts  ContactCounter
	steps     StepStatsProvider
	inFlight  InFlightProvider
	startTime time.Time
	logger    *slog.Logger

	contactsDesc *prometheus.Desc
	stepsDesc    *prometheus.Desc
	inFlightDesc *prometheus.Desc
	uptimeDesc   *prometheus.Desc
}

// NewCollector creates a new metrics collector. Any provider may be nil if unavailable.
func NewCollector(
	contacts ContactCounter,
	steps StepStatsProvider,
	inFlight InFlightProvider,
	startTime time.Time,
	logger *slog.Logger,
) *Collector {
	return &Collector{
		contacts:  contacts,
		steps:     steps,
		inFlight:  inFlight,
		startTime: startTime,
		logger:    logger.With("subsystem", "metrics"),

		contactsDesc: prometheus.NewDesc(
			"ivrflow_contacts",
			"Number of contacts in the contact store",
			nil, nil,
		),
		stepsDesc: prometheus.NewDesc(
			"ivrflow_flow_steps_total",
			"Outcome monitoring flow steps handled, by outcome",
			[]string{"outcome"}, nil,
		),
		inFlightDesc: prometheus.NewDesc(
			"ivrflow_flow_steps_in_flight",
			"Flow steps currently holding a contact lock",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"ivrflow_uptime_seconds",
			"Seconds since the ivrflow process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.contactsDesc
	ch <- c.stepsDesc
	ch <- c.inFlightDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.contacts != nil {
		count, err := c.contacts.Count(ctx)
		if err != nil {
			c.logger.Error("failed to count contacts", "error", err)
		} else {
			ch <- prometheus.MustNewConstMetric(
				c.contactsDesc, prometheus.GaugeValue,
				float64(count),
			)
		}
	}

	if c.steps != nil {
		st := c.steps.Stats()
		for _, o := range []struct {
			label string
			value uint64
		}{
			{"transitioned", st.Transitioned},
			{"no_op", st.NoOp},
			{"failed", st.Failed},
		} {
			ch <- prometheus.MustNewConstMetric(
				c.stepsDesc, prometheus.CounterValue,
				float64(o.value), o.label,
			)
		}
	}

	if c.inFlight != nil {
		ch <- prometheus.MustNewConstMetric(
			c.inFlightDesc, prometheus.GaugeValue,
			float64(c.inFlight.InFlight()),
		)
	}

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
