package framebuffer

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ignisengine/ignis/engine/device"
	"github.com/ignisengine/ignis/engine/resource"
)

// newHeadlessDevice requests a fallback adapter with no window surface, the
// same pattern used by engine/descriptor and engine/resource's GPU-backed
// tests. Skips rather than fails if no adapter is available.
func newHeadlessDevice(t *testing.T) *device.Device {
	t.Helper()
	d, err := device.New(device.Spec{ForceFallbackAdapter: true, FrameCount: 2})
	if err != nil {
		t.Skipf("no GPU adapter available in this environment: %v", err)
	}
	return d
}

func depthSpec(w, h uint32) *resource.TextureSpec {
	return &resource.TextureSpec{
		Width:  w,
		Height: h,
		Format: wgpu.TextureFormatDepth32Float,
		Usage:  resource.TextureUsageAttachment,
		Layers: 1,
		Mips:   1,
	}
}

// TestFramebufferSharedDepthAttachment is scenario E: two passes sharing one
// depth attachment (a shadow pass owning it, a main pass aliasing it in) — a
// resize on the owner doesn't silently propagate to the alias (the caller
// must re-supply the view), and releasing the aliasing framebuffer never
// double-frees the owner's texture.
func TestFramebufferSharedDepthAttachment(t *testing.T) {
	d := newHeadlessDevice(t)
	defer d.Device().Release()

	owner, err := New(d.Device(), Spec{
		DebugName: "shadow-pass",
		Width:     512,
		Height:    512,
		Depth:     &AttachmentSpec{Name: "depth", OwnedSpec: depthSpec(512, 512)},
	})
	if err != nil {
		t.Fatalf("New(owner): %v", err)
	}
	defer owner.Release()

	initialView := owner.DepthView()
	if initialView == nil {
		t.Fatalf("owner should have a depth view right after construction")
	}

	aliasing, err := New(d.Device(), Spec{
		DebugName: "main-pass",
		Width:     512,
		Height:    512,
		Depth:     &AttachmentSpec{Name: "depth", ExistingView: initialView},
	})
	if err != nil {
		t.Fatalf("New(aliasing): %v", err)
	}

	if aliasing.DepthView() != initialView {
		t.Fatalf("aliasing framebuffer should report the owner's current view")
	}

	if err := owner.Resize(1024, 1024); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	resizedView := owner.DepthView()
	if resizedView == initialView {
		t.Fatalf("owner's depth view should be a new object after Resize")
	}
	if aliasing.DepthView() != initialView {
		t.Fatalf("resize must not silently propagate to an aliasing framebuffer; it still held the stale view")
	}

	if err := aliasing.SetExistingDepthView(resizedView); err != nil {
		t.Fatalf("SetExistingDepthView: %v", err)
	}
	if aliasing.DepthView() != resizedView {
		t.Fatalf("aliasing framebuffer should reflect the re-supplied view")
	}

	// Releasing the aliasing framebuffer must not touch the owner's texture —
	// it never owned the depth attachment.
	aliasing.Release()
	if owner.DepthView() != resizedView {
		t.Fatalf("owner's depth view should survive the aliasing framebuffer's Release")
	}
}

func TestSetExistingDepthViewRejectsOwnedAttachment(t *testing.T) {
	d := newHeadlessDevice(t)
	defer d.Device().Release()

	owner, err := New(d.Device(), Spec{
		DebugName: "shadow-pass",
		Width:     256,
		Height:    256,
		Depth:     &AttachmentSpec{Name: "depth", OwnedSpec: depthSpec(256, 256)},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer owner.Release()

	if err := owner.SetExistingDepthView(nil); err == nil {
		t.Fatalf("SetExistingDepthView on an owned attachment should error")
	}
}
