package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestNewTimer tests timer creation
func TestNewTimer(t *testing.T) {
	timer := NewTimer()

	if timer == nil {
		t.Fatal("NewTimer() returned nil")
	}

	if timer.start.IsZero() {
		t.Error("NewTimer() start time is zero")
	}

	// Verify start time is recent (within last second)
	if time.Since(timer.start) > time.Second {
		t.Error("NewTimer() start time is not recent")
	}
}

// TestTimerDuration tests duration measurement
func TestTimerDuration(t *testing.T) {
	timer := NewTimer()

	// Sleep for a known duration
	sleepDuration := 100 * time.Millisecond
	time.Sleep(sleepDuration)

	duration := timer.Duration()

	// Verify duration is at least the sleep duration (allowing small overhead)
	if duration < sleepDuration {
		t.Errorf("Timer.Duration() = %v, want >= %v", duration, sleepDuration)
	}

	// Verify duration is reasonable (less than 2x sleep duration)
	if duration > 2*sleepDuration {
		t.Errorf("Timer.Duration() = %v, want < %v", duration, 2*sleepDuration)
	}
}

// TestTimerObserveDuration_SearchDuration verifies a Timer feeds the
// omg_search_duration_seconds histogram the way the Search RPC handler
// does, end to end through a real collector.
func TestTimerObserveDuration_SearchDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	timer.ObserveDuration(SearchDuration)

	m := &dto.Metric{}
	if err := SearchDuration.Write(m); err != nil {
		t.Fatalf("SearchDuration.Write: %v", err)
	}
	if got := m.Histogram.GetSampleCount(); got == 0 {
		t.Error("SearchDuration recorded zero samples after ObserveDuration")
	}
	if got := m.Histogram.GetSampleSum(); got <= 0 {
		t.Errorf("SearchDuration sample sum = %v, want > 0", got)
	}
}

// TestTimerObserveDurationVec_BackendCallDuration verifies a Timer feeds
// the per-operation omg_backend_call_duration_seconds vec the way
// backend.ExecBackend times each shelled-out command.
func TestTimerObserveDurationVec_BackendCallDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	timer.ObserveDurationVec(BackendCallDuration, "updates")

	m := &dto.Metric{}
	collected, err := BackendCallDuration.GetMetricWithLabelValues("updates")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	if err := collected.(prometheus.Histogram).Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.Histogram.GetSampleCount(); got == 0 {
		t.Error("BackendCallDuration{operation=updates} recorded zero samples")
	}
}

// TestTimerMultipleCalls tests that Duration can be called multiple times
func TestTimerMultipleCalls(t *testing.T) {
	timer := NewTimer()

	time.Sleep(50 * time.Millisecond)
	duration1 := timer.Duration()

	time.Sleep(50 * time.Millisecond)
	duration2 := timer.Duration()

	// Second call should be longer
	if duration2 <= duration1 {
		t.Errorf("Second Duration() call should be longer: first=%v, second=%v", duration1, duration2)
	}

	// Both should be non-zero
	if duration1 == 0 || duration2 == 0 {
		t.Error("Duration() should return non-zero values")
	}
}

// TestTimerZeroDuration tests timer with minimal duration
func TestTimerZeroDuration(t *testing.T) {
	timer := NewTimer()

	// Don't sleep - check duration immediately
	duration := timer.Duration()

	// Duration should be very small but >= 0
	if duration < 0 {
		t.Errorf("Timer.Duration() = %v, want >= 0", duration)
	}

	// Duration should be less than 1 millisecond
	if duration > time.Millisecond {
		t.Errorf("Timer.Duration() = %v, want < 1ms for immediate call", duration)
	}
}

// TestMultipleTimers tests that multiple timers work independently, the
// way concurrent Search and status-refresh calls each hold their own.
func TestMultipleTimers(t *testing.T) {
	searchTimer := NewTimer()
	time.Sleep(50 * time.Millisecond)

	statusTimer := NewTimer()
	time.Sleep(50 * time.Millisecond)

	searchDuration := searchTimer.Duration()
	statusDuration := statusTimer.Duration()

	if searchDuration <= statusDuration {
		t.Errorf("searchTimer should be running longer: search=%v, status=%v", searchDuration, statusDuration)
	}

	searchTimer.ObserveDuration(SearchDuration)
	statusTimer.ObserveDuration(StatusRefreshDuration)

	if searchDuration == 0 || statusDuration == 0 {
		t.Error("both timers should have non-zero durations")
	}
}

// TestTimerConsistency tests that Duration returns consistent increasing values
func TestTimerConsistency(t *testing.T) {
	timer := NewTimer()

	var lastDuration time.Duration
	for i := 0; i < 5; i++ {
		time.Sleep(10 * time.Millisecond)
		duration := timer.Duration()

		if duration <= lastDuration {
			t.Errorf("Duration should be monotonically increasing: iteration %d, last=%v, current=%v", i, lastDuration, duration)
		}

		lastDuration = duration
	}
}
