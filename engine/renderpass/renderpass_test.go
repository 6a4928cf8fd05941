package renderpass

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ignisengine/ignis/engine/descriptor"
	"github.com/ignisengine/ignis/engine/device"
	"github.com/ignisengine/ignis/engine/framebuffer"
	"github.com/ignisengine/ignis/engine/resource"
	"github.com/ignisengine/ignis/engine/shader"
)

func newHeadlessDevice(t *testing.T) *device.Device {
	t.Helper()
	d, err := device.New(device.Spec{ForceFallbackAdapter: true, FrameCount: 2})
	if err != nil {
		t.Skipf("no GPU adapter available in this environment: %v", err)
	}
	return d
}

// TestBeginRenderPassBeforePrepareErrors is a state-machine guard check: a
// pass that never reached StatePrepared must refuse to begin recording
// rather than hand back a half-initialized encoder.
func TestBeginRenderPassBeforePrepareErrors(t *testing.T) {
	rp := &RenderPass{state: StateConstructed}
	if _, err := rp.BeginRenderPass(nil, nil); err == nil {
		t.Fatalf("BeginRenderPass before Prepare should error")
	}

	rp.state = StateBaked
	if _, err := rp.BeginRenderPass(nil, nil); err == nil {
		t.Fatalf("BeginRenderPass in Baked (not yet Prepared) state should error")
	}
}

func colorSpec() *framebuffer.Spec {
	return colorSpecWithLoad(framebuffer.LoadOpClear)
}

func colorSpecWithLoad(load framebuffer.LoadOp) *framebuffer.Spec {
	return &framebuffer.Spec{
		DebugName: "main",
		Width:     64,
		Height:    64,
		Color: []framebuffer.AttachmentSpec{
			{
				Name: "color",
				OwnedSpec: &resource.TextureSpec{
					Width:  64,
					Height: 64,
					Format: wgpu.TextureFormatRGBA8Unorm,
					Usage:  resource.TextureUsageAttachment,
					Layers: 1,
					Mips:   1,
				},
				Load:       load,
				ClearColor: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
	}
}

// TestExplicitClearForcesClearOnLoadAttachment exercises scenario F: a color
// attachment declared with LoadOpLoad (preserve prior contents) is begun once
// with an explicit clear override, which BeginRenderPass turns into
// LoadOpClear for that call, and once without it. The test checks that both
// frames begin, end and submit without error; it does not read the
// attachment back or inspect the LoadOp chosen.
func TestExplicitClearForcesClearOnLoadAttachment(t *testing.T) {
	d := newHeadlessDevice(t)
	defer d.Device().Release()

	rp, err := New(d.Device(), Spec{
		DebugName:   "main",
		Framebuffer: colorSpecWithLoad(framebuffer.LoadOpLoad),
		Descriptor:  emptyDescriptorSpec(),
		ClearColor:  wgpu.Color{R: 0, G: 0, B: 0, A: 1},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rp.Release()

	if err := rp.Bake(); err != nil {
		t.Fatalf("Bake: %v", err)
	}

	// Frame 1: explicit_clear forces LoadOpClear even though the attachment
	// itself declares LoadOpLoad.
	if err := rp.Prepare(0); err != nil {
		t.Fatalf("Prepare(0): %v", err)
	}
	encoder, err := d.CommandEncoder("frame 1")
	if err != nil {
		t.Fatalf("CommandEncoder: %v", err)
	}
	override := wgpu.Color{R: 1, G: 0, B: 0, A: 1}
	if _, err := rp.BeginRenderPass(encoder, &override); err != nil {
		t.Fatalf("BeginRenderPass (explicit clear over Load attachment): %v", err)
	}
	rp.EndRenderPass()
	if err := d.Submit(encoder); err != nil {
		t.Fatalf("Submit frame 1: %v", err)
	}

	// Frame 2: no override — the attachment's own LoadOpLoad applies, and the
	// pass must still begin/end cleanly.
	if err := rp.Prepare(0); err != nil {
		t.Fatalf("Prepare(0) frame 2: %v", err)
	}
	encoder2, err := d.CommandEncoder("frame 2")
	if err != nil {
		t.Fatalf("CommandEncoder: %v", err)
	}
	if _, err := rp.BeginRenderPass(encoder2, nil); err != nil {
		t.Fatalf("BeginRenderPass (no override, preserves contents): %v", err)
	}
	rp.EndRenderPass()
	if err := d.Submit(encoder2); err != nil {
		t.Fatalf("Submit frame 2: %v", err)
	}
}

// TestExplicitClearOverridesAcceptedEachFrame is a lighter pass-level check: a
// pass drawn first with its default clear color, then again with an
// explicit_clear override, must both begin/end/submit cleanly — the override
// is accepted per call without leaving the pass in a broken state for the
// next frame.
func TestExplicitClearOverridesAcceptedEachFrame(t *testing.T) {
	d := newHeadlessDevice(t)
	defer d.Device().Release()

	rp, err := New(d.Device(), Spec{
		DebugName:   "main",
		Framebuffer: colorSpec(),
		Descriptor:  emptyDescriptorSpec(),
		ClearColor:  wgpu.Color{R: 0, G: 0, B: 0, A: 1},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rp.Release()

	if err := rp.Bake(); err != nil {
		t.Fatalf("Bake: %v", err)
	}

	// Frame 1: default clear color.
	if err := rp.Prepare(0); err != nil {
		t.Fatalf("Prepare(0): %v", err)
	}
	encoder, err := d.CommandEncoder("frame 1")
	if err != nil {
		t.Fatalf("CommandEncoder: %v", err)
	}
	if _, err := rp.BeginRenderPass(encoder, nil); err != nil {
		t.Fatalf("BeginRenderPass (default clear): %v", err)
	}
	rp.EndRenderPass()
	if err := d.Submit(encoder); err != nil {
		t.Fatalf("Submit frame 1: %v", err)
	}

	// Frame 2: explicit override, same pass, same slot re-prepared.
	if err := rp.Prepare(0); err != nil {
		t.Fatalf("Prepare(0) frame 2: %v", err)
	}
	encoder2, err := d.CommandEncoder("frame 2")
	if err != nil {
		t.Fatalf("CommandEncoder: %v", err)
	}
	override := wgpu.Color{R: 1, G: 0, B: 0, A: 1}
	if _, err := rp.BeginRenderPass(encoder2, &override); err != nil {
		t.Fatalf("BeginRenderPass (explicit clear): %v", err)
	}
	rp.EndRenderPass()
	if err := d.Submit(encoder2); err != nil {
		t.Fatalf("Submit frame 2: %v", err)
	}
}

// emptyDescriptorSpec builds a descriptor.Spec that owns no sets at all (an
// empty range) — this pass draws with no per-pass bindings, only the
// attachment lifecycle is under test here.
func emptyDescriptorSpec() descriptor.Spec {
	return descriptor.Spec{Shader: &shader.ReflectionResult{}, StartingSet: 0, EndingSet: -1}
}
