package perf

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/invoiceapp/invoiceapp/internal/jobs"
)

func TestSweepJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	// Due-status sweeps finish fast and mostly succeed.
	for i := 0; i < 60; i++ {
		tracker := metrics.Track("invoice:due-status-sweep")
		time.Sleep(2 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending due sweep tracker: %v", err)
		}
	}

	// Recurring sweeps are slower but stay within the daily budget.
	for i := 0; i < 15; i++ {
		tracker := metrics.Track("invoice:recurring-sweep")
		time.Sleep(10 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending recurring sweep tracker: %v", err)
		}
	}

	// Inject a couple of failures to ensure alerts would fire.
	for i := 0; i < 3; i++ {
		tracker := metrics.Track("invoice:due-status-sweep")
		time.Sleep(3 * time.Millisecond)
		if err := tracker.End(errors.New("timeout")); err == nil {
			t.Fatal("expected error to propagate")
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "invoiceapp_jobs_total", map[string]string{"job": "invoice:due-status-sweep", "status": "success"})
	failure := metricValue(t, families, "invoiceapp_jobs_total", map[string]string{"job": "invoice:due-status-sweep", "status": "failure"})
	if success+failure == 0 {
		t.Fatal("no due sweep executions recorded")
	}
	ratio := success / (success + failure)
	if ratio < 0.9 {
		t.Fatalf("due sweep success ratio too low: %f", ratio)
	}

	recurringDuration := histogramMean(t, families, "invoiceapp_job_duration_seconds", map[string]string{"job": "invoice:recurring-sweep"})
	if recurringDuration > 2.0 {
		t.Fatalf("recurring sweep duration above budget: %f", recurringDuration)
	}

	dueDuration := histogramMean(t, families, "invoiceapp_job_duration_seconds", map[string]string{"job": "invoice:due-status-sweep"})
	if dueDuration > 0.5 {
		t.Fatalf("due sweep duration above budget: %f", dueDuration)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
