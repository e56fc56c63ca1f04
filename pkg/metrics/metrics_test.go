package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/bft-labs/httpbatch/pkg/httpbatch"
)

// gather returns the metric families of reg keyed by name.
func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func counterValue(f *dto.MetricFamily, labels map[string]string) float64 {
	for _, m := range f.GetMetric() {
		match := true
		for _, lp := range m.GetLabel() {
			if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
				match = false
			}
		}
		if match {
			return m.GetCounter().GetValue()
		}
	}
	return -1
}

func TestCollector_RecordsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New("", reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	c.OnFlush(httpbatch.FlushEvent{Trigger: httpbatch.TriggerSize, Bytes: 100, Events: 4, Attempts: 1, Duration: 10 * time.Millisecond})
	c.OnFlush(httpbatch.FlushEvent{Trigger: httpbatch.TriggerIdle, Bytes: 50, Events: 2, Attempts: 3, Err: errors.New("503")})
	c.OnDrop(httpbatch.DropEvent{Bytes: 1})
	c.OnStateChange(httpbatch.StateChangeEvent{Current: httpbatch.StateRunning})

	families := gather(t, reg)

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"httpbatch_flushes_total", map[string]string{"trigger": "size", "result": "success"}, 1},
		{"httpbatch_flushes_total", map[string]string{"trigger": "idle", "result": "failure"}, 1},
		{"httpbatch_flushed_events_total", nil, 6},
		{"httpbatch_sent_bytes_total", nil, 100},
		{"httpbatch_dropped_events_total", nil, 1},
		{"httpbatch_requests_total", nil, 4},
	}
	for _, tt := range tests {
		f, ok := families[tt.name]
		if !ok {
			t.Errorf("metric %s not exported", tt.name)
			continue
		}
		if got := counterValue(f, tt.labels); got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.name, tt.labels, got, tt.want)
		}
	}

	if got := families["httpbatch_state"].GetMetric()[0].GetGauge().GetValue(); got != float64(httpbatch.StateRunning) {
		t.Errorf("state gauge = %v, want %v", got, float64(httpbatch.StateRunning))
	}
	if got := families["httpbatch_flush_duration_seconds"].GetMetric()[0].GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("duration samples = %d, want 2", got)
	}
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New("dup", reg); err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	if _, err := New("dup", reg); err == nil {
		t.Error("second New() with the same namespace succeeded")
	}
}

func TestRegisterQueueDepth(t *testing.T) {
	cfg := httpbatch.DefaultConfig()
	cfg.URL = "http://localhost:9/ingest"
	h, err := httpbatch.New(cfg)
	if err != nil {
		t.Fatalf("httpbatch.New() error = %v", err)
	}

	reg := prometheus.NewRegistry()
	if err := RegisterQueueDepth("", reg, h); err != nil {
		t.Fatalf("RegisterQueueDepth() error = %v", err)
	}
	families := gather(t, reg)
	if got := families["httpbatch_queued_events"].GetMetric()[0].GetGauge().GetValue(); got != 0 {
		t.Errorf("queued_events = %v, want 0", got)
	}

	if err := RegisterQueueDepth("", reg, nil); err == nil {
		t.Error("RegisterQueueDepth(nil) succeeded")
	}
}
