// Package framebuffer declares the attachments a RenderPass or ComputePass targets:
// either an owned texture created and resized by the framebuffer itself, or an
// existing image aliased in from elsewhere (most commonly the swapchain's current
// view). This mirrors a Vulkan VkFramebuffer's attachment list without Vulkan's
// compatible-render-pass registration step — wgpu derives attachment compatibility
// from the RenderPassDescriptor built at BeginRenderPass time instead.
package framebuffer

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ignisengine/ignis/engine/resource"
)

// LoadOp selects how an attachment's previous contents are treated at pass start.
type LoadOp int

const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
)

func (o LoadOp) wgpu() wgpu.LoadOp {
	if o == LoadOpLoad {
		return wgpu.LoadOpLoad
	}
	return wgpu.LoadOpClear
}

// AttachmentSpec declares one color or depth-stencil attachment. Exactly one of
// OwnedSpec or ExistingView must be set: OwnedSpec has the framebuffer create and own
// a resource.Texture (resized alongside the framebuffer), ExistingView aliases a view
// owned elsewhere (the swapchain's current frame, or another pass's output).
type AttachmentSpec struct {
	Name string

	OwnedSpec    *resource.TextureSpec
	ExistingView *wgpu.TextureView // aliasing — not resized by this framebuffer

	Load       LoadOp
	ClearColor wgpu.Color
	ClearDepth float32

	// ResolveOf must be non-empty on an owned attachment with Samples > 1. Only its
	// presence is checked: the name is not looked up, and no resolve target is set
	// from it, so a multisampled attachment is never resolved.
	ResolveOf string
}

// Spec fully describes a framebuffer's attachment set and dimensions.
type Spec struct {
	DebugName   string
	Width       uint32
	Height      uint32
	SampleCount uint32

	Color []AttachmentSpec
	Depth *AttachmentSpec
}

// Framebuffer holds the resolved attachment textures/views for one render target set.
// Attachments built from OwnedSpec resize with the framebuffer; aliased attachments are
// re-supplied by the caller each frame via SetExistingView before BeginRenderPass.
type Framebuffer struct {
	spec Spec

	device *wgpu.Device

	colorOwned    []*resource.Texture // nil entry for an aliased attachment
	colorExisting []*wgpu.TextureView

	depthOwned    *resource.Texture
	depthExisting *wgpu.TextureView
}

// New builds every owned attachment at spec's size. Owned color attachments with
// Samples > 1 are rejected unless ResolveOf is set (no resolve is performed) — Vulkan
// forbids sampling a multisampled attachment directly, and wgpu enforces the same rule
// through its pipeline's MultisampleState matching the attachment's sample count.
func New(device *wgpu.Device, spec Spec) (*Framebuffer, error) {
	fb := &Framebuffer{
		spec:          spec,
		device:        device,
		colorOwned:    make([]*resource.Texture, len(spec.Color)),
		colorExisting: make([]*wgpu.TextureView, len(spec.Color)),
	}

	for i, att := range spec.Color {
		if att.OwnedSpec == nil && att.ExistingView == nil {
			return nil, fmt.Errorf("framebuffer %q: color attachment %q declares neither OwnedSpec nor ExistingView", spec.DebugName, att.Name)
		}
		if att.OwnedSpec != nil {
			if att.OwnedSpec.Samples > 1 && att.ResolveOf == "" {
				return nil, fmt.Errorf("framebuffer %q: color attachment %q: samples>1 requires a non-swapchain resolve target", spec.DebugName, att.Name)
			}
			tex, err := resource.NewTexture2D(device, spec.DebugName+" "+att.Name, *att.OwnedSpec)
			if err != nil {
				return nil, fmt.Errorf("framebuffer %q: create color attachment %q: %w", spec.DebugName, att.Name, err)
			}
			fb.colorOwned[i] = tex
		} else {
			fb.colorExisting[i] = att.ExistingView
		}
	}

	if spec.Depth != nil {
		if spec.Depth.OwnedSpec == nil && spec.Depth.ExistingView == nil {
			return nil, fmt.Errorf("framebuffer %q: depth attachment declares neither OwnedSpec nor ExistingView", spec.DebugName)
		}
		if spec.Depth.OwnedSpec != nil {
			tex, err := resource.NewTexture2D(device, spec.DebugName+" depth", *spec.Depth.OwnedSpec)
			if err != nil {
				return nil, fmt.Errorf("framebuffer %q: create depth attachment: %w", spec.DebugName, err)
			}
			fb.depthOwned = tex
		} else {
			fb.depthExisting = spec.Depth.ExistingView
		}
	}

	return fb, nil
}

// SetExistingView re-supplies the current view for an aliased color attachment (by
// index) ahead of the next BeginRenderPass — used every frame for a swapchain-backed
// attachment, whose underlying wgpu.Texture changes each acquire.
func (fb *Framebuffer) SetExistingView(index int, view *wgpu.TextureView) error {
	if index < 0 || index >= len(fb.colorExisting) {
		return fmt.Errorf("framebuffer %q: color attachment index %d out of range", fb.spec.DebugName, index)
	}
	if fb.colorOwned[index] != nil {
		return fmt.Errorf("framebuffer %q: color attachment %d is owned, not aliased", fb.spec.DebugName, index)
	}
	fb.colorExisting[index] = view
	return nil
}

// SetExistingDepthView re-supplies the current view for an aliased depth attachment.
func (fb *Framebuffer) SetExistingDepthView(view *wgpu.TextureView) error {
	if fb.spec.Depth == nil || fb.depthOwned != nil {
		return errors.New("framebuffer: depth attachment is not aliased")
	}
	fb.depthExisting = view
	return nil
}

// ColorView returns the current view for color attachment index, whether owned or
// aliased.
func (fb *Framebuffer) ColorView(index int) *wgpu.TextureView {
	if index < 0 || index >= len(fb.colorOwned) {
		return nil
	}
	if fb.colorOwned[index] != nil {
		return fb.colorOwned[index].View()
	}
	return fb.colorExisting[index]
}

// DepthView returns the current depth-stencil view, whether owned or aliased.
func (fb *Framebuffer) DepthView() *wgpu.TextureView {
	if fb.depthOwned != nil {
		return fb.depthOwned.View()
	}
	return fb.depthExisting
}

func (fb *Framebuffer) Width() uint32  { return fb.spec.Width }
func (fb *Framebuffer) Height() uint32 { return fb.spec.Height }

// Resize propagates a new size to every owned attachment. Aliased attachments are left
// untouched — their owner (the swapchain, or another framebuffer) resizes them.
func (fb *Framebuffer) Resize(width, height uint32) error {
	fb.spec.Width, fb.spec.Height = width, height
	for _, tex := range fb.colorOwned {
		if tex == nil {
			continue
		}
		if err := tex.Resize(fb.device, width, height); err != nil {
			return fmt.Errorf("framebuffer %q: resize color attachment: %w", fb.spec.DebugName, err)
		}
	}
	if fb.depthOwned != nil {
		if err := fb.depthOwned.Resize(fb.device, width, height); err != nil {
			return fmt.Errorf("framebuffer %q: resize depth attachment: %w", fb.spec.DebugName, err)
		}
	}
	return nil
}

// Release releases every owned attachment. Aliased views are left alone — their owner
// releases them.
func (fb *Framebuffer) Release() {
	for i, tex := range fb.colorOwned {
		if tex != nil {
			tex.Release()
			fb.colorOwned[i] = nil
		}
	}
	if fb.depthOwned != nil {
		fb.depthOwned.Release()
		fb.depthOwned = nil
	}
}
