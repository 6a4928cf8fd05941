package profiler

import (
	"testing"
	"time"
)

func TestTickReturnsFalseBeforeIntervalElapses(t *testing.T) {
	p := &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Hour,
	}
	if p.Tick() {
		t.Fatal("Tick reported stats logged before the update interval elapsed")
	}
	if p.frameCount != 1 {
		t.Fatalf("frameCount = %d, want 1", p.frameCount)
	}
}

func TestTickResetsFrameCountAfterIntervalElapses(t *testing.T) {
	p := &Profiler{
		lastTime:       time.Now().Add(-2 * time.Second),
		updateInterval: time.Second,
	}
	p.frameCount = 42

	if !p.Tick() {
		t.Fatal("Tick reported no stats logged after the update interval elapsed")
	}
	if p.frameCount != 0 {
		t.Fatalf("frameCount = %d after logging tick, want 0", p.frameCount)
	}
	if p.lastTotalAlloc == 0 {
		t.Fatal("lastTotalAlloc was not updated from runtime.MemStats")
	}
}

func TestNewProfilerDefaultsToOneSecondInterval(t *testing.T) {
	p := NewProfiler()
	if p.updateInterval != time.Second {
		t.Fatalf("updateInterval = %v, want 1s", p.updateInterval)
	}
	if p.frameCount != 0 {
		t.Fatalf("frameCount = %d, want 0", p.frameCount)
	}
}
