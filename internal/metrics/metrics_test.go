package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/flowpbx/ivrflow/internal/callflow"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeContacts struct {
	n   int64
	err error
}

func (f fakeContacts) Count(context.Context) (int64, error) { return f.n, f.err }

type fakeSteps struct{ st callflow.StepStats }

func (f fakeSteps) Stats() callflow.StepStats { return f.st }

type fakeInFlight int64

func (f fakeInFlight) InFlight() int64 { return int64(f) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gather registers c and returns metric values keyed by name, plus the
// step counters keyed by outcome label.
func gather(t *testing.T, c *Collector) (map[string]float64, map[string]float64) {
	t.Helper()
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("registering collector: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gathering: %v", err)
	}

	values := make(map[string]float64)
	steps := make(map[string]float64)
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			switch {
			case m.GetGauge() != nil:
				values[fam.GetName()] = m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "outcome" {
						steps[lp.GetValue()] = m.GetCounter().GetValue()
					}
				}
			}
		}
	}
	return values, steps
}

func TestCollectorAllProviders(t *testing.T) {
	c := NewCollector(
		fakeContacts{n: 42},
		fakeSteps{st: callflow.StepStats{Transitioned: 7, NoOp: 3, Failed: 1}},
		fakeInFlight(2),
		time.Now().Add(-time.Minute),
		discardLogger(),
	)

	values, steps := gather(t, c)

	if values["ivrflow_contacts"] != 42 {
		t.Errorf("contacts = %v, want 42", values["ivrflow_contacts"])
	}
	if values["ivrflow_flow_steps_in_flight"] != 2 {
		t.Errorf("in flight = %v, want 2", values["ivrflow_flow_steps_in_flight"])
	}
	if values["ivrflow_uptime_seconds"] < 60 {
		t.Errorf("uptime = %v, want >= 60", values["ivrflow_uptime_seconds"])
	}

	want := map[string]float64{"transitioned": 7, "no_op": 3, "failed": 1}
	for outcome, v := range want {
		if steps[outcome] != v {
			t.Errorf("steps[%s] = %v, want %v", outcome, steps[outcome], v)
		}
	}
}

func TestCollectorNilProviders(t *testing.T) {
	c := NewCollector(nil, nil, nil, time.Now(), discardLogger())

	values, steps := gather(t, c)

	if len(values) != 1 {
		t.Errorf("expected only uptime, got %v", values)
	}
	if _, ok := values["ivrflow_uptime_seconds"]; !ok {
		t.Error("expected uptime metric")
	}
	if len(steps) != 0 {
		t.Errorf("expected no step metrics, got %v", steps)
	}
}

func TestCollectorContactCountError(t *testing.T) {
	c := NewCollector(fakeContacts{err: errors.New("db closed")}, nil, nil, time.Now(), discardLogger())

	values, _ := gather(t, c)

	if _, ok := values["ivrflow_contacts"]; ok {
		t.Error("contacts metric should be skipped when counting fails")
	}
}
