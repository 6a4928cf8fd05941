// Package renderpass implements the RenderPass/ComputePass facade: a state machine
// that owns a Framebuffer, a descriptor.Manager for its render-pass-local descriptor
// sets (0-2 by convention), and the pipelines drawn within it. Vulkan's render pass
// requires a compatible-layout object created ahead of any framebuffer; wgpu instead
// builds an equivalent wgpu.RenderPassDescriptor fresh from the Framebuffer's current
// views every BeginRenderPass call, so there is no separate "create the pass object"
// step — Bake only validates and bakes the descriptor manager.
package renderpass

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ignisengine/ignis/engine/descriptor"
	"github.com/ignisengine/ignis/engine/framebuffer"
)

// State is the RenderPass lifecycle: Constructed (inputs being set) -> Baked (bind
// groups created) -> Prepared (ready/re-validated each frame, cycling back to Prepared
// every subsequent frame rather than returning to Constructed).
type State int

const (
	StateConstructed State = iota
	StateBaked
	StatePrepared
)

// Spec configures a RenderPass's framebuffer and descriptor ownership range.
type Spec struct {
	DebugName   string
	Framebuffer *framebuffer.Spec
	Descriptor  descriptor.Spec // StartingSet/EndingSet typically 0-2
	ClearColor  wgpu.Color
	ClearDepth  float32
	DebugLabel  string
}

// RenderPass owns a Framebuffer and the descriptor.Manager for the sets it declares
// (by convention, sets 0-2; set 3 belongs to whatever Material draws within the pass).
type RenderPass struct {
	device *wgpu.Device
	spec   Spec

	framebuffer *framebuffer.Framebuffer
	descriptors *descriptor.Manager

	state State

	activeEncoder *wgpu.CommandEncoder
	activePass    *wgpu.RenderPassEncoder
}

// New constructs the framebuffer and descriptor manager. The pass starts in
// StateConstructed — SetInput/Bake must run before BeginRenderPass.
func New(device *wgpu.Device, spec Spec) (*RenderPass, error) {
	fb, err := framebuffer.New(device, *spec.Framebuffer)
	if err != nil {
		return nil, fmt.Errorf("renderpass %q: %w", spec.DebugName, err)
	}
	spec.Descriptor.DebugName = spec.DebugName
	mgr := descriptor.NewManager(spec.Descriptor)
	return &RenderPass{device: device, spec: spec, framebuffer: fb, descriptors: mgr, state: StateConstructed}, nil
}

// SetInput forwards to the owned descriptor.Manager.
func (rp *RenderPass) SetInput(name string, input descriptor.Input) {
	rp.descriptors.SetInput(name, input)
}

// Framebuffer returns the pass's framebuffer for attachment aliasing (e.g. re-supplying
// the swapchain view each frame).
func (rp *RenderPass) Framebuffer() *framebuffer.Framebuffer { return rp.framebuffer }

// Descriptors returns the pass's descriptor manager, for DescriptorSets(slot) lookups
// when binding this pass's sets alongside a Material's.
func (rp *RenderPass) Descriptors() *descriptor.Manager { return rp.descriptors }

// Bake validates and bakes the descriptor manager, transitioning Constructed -> Baked.
func (rp *RenderPass) Bake() error {
	if rp.state != StateConstructed {
		return fmt.Errorf("renderpass %q: Bake called in state %d, want Constructed", rp.spec.DebugName, rp.state)
	}
	if err := rp.descriptors.Bake(rp.device); err != nil {
		return err
	}
	rp.state = StateBaked
	return nil
}

// Prepare re-validates per-frame-slot descriptor state, transitioning Baked/Prepared ->
// Prepared. Call once per frame before BeginRenderPass.
func (rp *RenderPass) Prepare(slot int) error {
	if rp.state != StateBaked && rp.state != StatePrepared {
		return fmt.Errorf("renderpass %q: Prepare called in state %d, want Baked or Prepared", rp.spec.DebugName, rp.state)
	}
	if err := rp.descriptors.Prepare(rp.device, slot); err != nil {
		return err
	}
	rp.state = StatePrepared
	return nil
}

// BeginRenderPass builds the wgpu.RenderPassDescriptor from the framebuffer's current
// attachment views and begins recording into encoder. explicitClear, when non-nil,
// overrides the pass's default clear color for this call only.
func (rp *RenderPass) BeginRenderPass(encoder *wgpu.CommandEncoder, explicitClear *wgpu.Color) (*wgpu.RenderPassEncoder, error) {
	if rp.state != StatePrepared {
		return nil, errors.New("renderpass: BeginRenderPass called before Prepare")
	}

	colorAttachments := make([]wgpu.RenderPassColorAttachment, 0, len(rp.spec.Framebuffer.Color))
	clear := rp.spec.ClearColor
	if explicitClear != nil {
		clear = *explicitClear
	}
	for i, att := range rp.spec.Framebuffer.Color {
		view := rp.framebuffer.ColorView(i)
		if view == nil {
			return nil, fmt.Errorf("renderpass %q: color attachment %q has no view bound", rp.spec.DebugName, att.Name)
		}
		// explicitClear forces this call's LoadOp to Clear regardless of the
		// attachment's own declared load policy — the spec's CmdClearAttachments
		// substitute (§4.8 step 4, scenario F): a pass that otherwise preserves
		// prior contents (LoadOpLoad) can still be forced to clear for one frame
		// without changing what subsequent frames without the override do.
		loadOp := att.Load.wgpu()
		if explicitClear != nil {
			loadOp = wgpu.LoadOpClear
		}
		colorAttachments = append(colorAttachments, wgpu.RenderPassColorAttachment{
			View:       view,
			LoadOp:     loadOp,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: clear,
		})
	}

	var depthAttachment *wgpu.RenderPassDepthStencilAttachment
	if rp.spec.Framebuffer.Depth != nil {
		view := rp.framebuffer.DepthView()
		if view == nil {
			return nil, fmt.Errorf("renderpass %q: depth attachment has no view bound", rp.spec.DebugName)
		}
		depthLoadOp := rp.spec.Framebuffer.Depth.Load.wgpu()
		if explicitClear != nil {
			depthLoadOp = wgpu.LoadOpClear
		}
		depthAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            view,
			DepthLoadOp:     depthLoadOp,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: rp.spec.ClearDepth,
		}
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label:                  rp.spec.DebugLabel,
		ColorAttachments:       colorAttachments,
		DepthStencilAttachment: depthAttachment,
	})
	pass.SetViewport(0, 0, float32(rp.framebuffer.Width()), float32(rp.framebuffer.Height()), 0, 1)
	pass.SetScissorRect(0, 0, rp.framebuffer.Width(), rp.framebuffer.Height())

	// wgpu's debug group takes a label only, no marker color parameter.
	if rp.spec.DebugLabel != "" {
		pass.PushDebugGroup(rp.spec.DebugLabel)
	}

	rp.activeEncoder = encoder
	rp.activePass = pass
	return pass, nil
}

// EndRenderPass pops the debug label pushed by BeginRenderPass (if any) and ends the
// active render pass encoder.
func (rp *RenderPass) EndRenderPass() {
	if rp.activePass == nil {
		return
	}
	if rp.spec.DebugLabel != "" {
		rp.activePass.PopDebugGroup()
	}
	rp.activePass.End()
	rp.activePass = nil
	rp.activeEncoder = nil
}

// Resize propagates a new size to the framebuffer.
func (rp *RenderPass) Resize(width, height uint32) error {
	return rp.framebuffer.Resize(width, height)
}

// Release releases the descriptor manager and framebuffer.
func (rp *RenderPass) Release() {
	rp.descriptors.Release()
	rp.framebuffer.Release()
}
