package device

import "testing"

// fakeReleasable counts how many times Release was called, so a test can
// assert exactly when a deferred release actually fires.
type fakeReleasable struct {
	releases int
}

func (f *fakeReleasable) Release() { f.releases++ }

// newTestDevice builds a Device with no real wgpu objects — everything the
// deferred-release queue touches is the pendingRelease slice and frameSlot
// counter, neither of which needs an instance/adapter/queue.
func newTestDevice(frameCount int) *Device {
	return &Device{
		frameCount:     frameCount,
		pendingRelease: make([][]Releasable, frameCount),
	}
}

// TestDeferredReleasePerFrameIsolation is testable property 1: a resource
// enqueued for release in frame N is not released before frame N+F, and no
// other resource is freed early either.
func TestDeferredReleasePerFrameIsolation(t *testing.T) {
	const frameCount = 3
	d := newTestDevice(frameCount)

	obj := &fakeReleasable{}
	d.EnqueueRelease(obj)
	if obj.releases != 0 {
		t.Fatalf("EnqueueRelease must not release immediately, got %d releases", obj.releases)
	}

	// Advancing through the other F-1 slots must not touch obj — it was queued
	// against the slot active at enqueue time, not the slots in between.
	for i := 0; i < frameCount-1; i++ {
		d.BeginFrameSlot()
		if obj.releases != 0 {
			t.Fatalf("obj released early at intermediate BeginFrameSlot #%d", i)
		}
	}

	// The Fth BeginFrameSlot call returns to the slot obj was queued against.
	d.BeginFrameSlot()
	if obj.releases != 1 {
		t.Fatalf("expected exactly 1 release once the slot cycles back, got %d", obj.releases)
	}

	// Cycling further must not release it again — it was drained once, not
	// re-queued.
	d.BeginFrameSlot()
	if obj.releases != 1 {
		t.Fatalf("obj released more than once: %d", obj.releases)
	}
}

// TestDeferredReleaseDoesNotTouchOtherSlots enqueues into every slot and checks
// that cycling one slot forward only drains that slot's objects.
func TestDeferredReleaseDoesNotTouchOtherSlots(t *testing.T) {
	const frameCount = 2
	d := newTestDevice(frameCount)

	slot0 := &fakeReleasable{}
	d.EnqueueRelease(slot0) // queued against slot 0, the starting frameSlot

	d.BeginFrameSlot() // advances to slot 1, drains slot 1 (empty)
	slot1 := &fakeReleasable{}
	d.EnqueueRelease(slot1) // queued against slot 1

	if slot0.releases != 0 || slot1.releases != 0 {
		t.Fatalf("neither object should be released yet: slot0=%d slot1=%d", slot0.releases, slot1.releases)
	}

	d.BeginFrameSlot() // advances back to slot 0, drains slot 0
	if slot0.releases != 1 {
		t.Fatalf("slot0 object should be released, got %d", slot0.releases)
	}
	if slot1.releases != 0 {
		t.Fatalf("slot1 object must not be released yet, got %d", slot1.releases)
	}
}

func TestEnqueueReleaseNilIsNoop(t *testing.T) {
	d := newTestDevice(2)
	d.EnqueueRelease(nil)
	d.BeginFrameSlot()
	d.BeginFrameSlot()
}
