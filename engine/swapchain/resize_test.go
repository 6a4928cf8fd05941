package swapchain

import (
	"errors"
	"testing"
)

// TestResizeToZeroSkipsFrame is scenario D: a mid-frame resize to a zero-area
// window (minimized) leaves the surface unconfigured and BeginFrame reports
// the skip sentinel rather than panicking or touching the (here absent)
// surface/adapter/device.
func TestResizeToZeroSkipsFrame(t *testing.T) {
	s := &Swapchain{width: 800, height: 600}

	if err := s.Resize(0, 0); err != nil {
		t.Fatalf("Resize(0,0): %v", err)
	}
	if s.Width() != 0 || s.Height() != 0 {
		t.Fatalf("dimensions should record the zero resize, got %dx%d", s.Width(), s.Height())
	}

	view, err := s.BeginFrame()
	if view != nil {
		t.Fatalf("BeginFrame should return a nil view on skip, got %v", view)
	}
	if !errors.Is(err, ErrSkipFrame) {
		t.Fatalf("BeginFrame should report ErrSkipFrame, got %v", err)
	}

	// Present after a skipped BeginFrame must be a safe no-op — current was
	// never set, so there is nothing to release twice.
	s.Present()
}

