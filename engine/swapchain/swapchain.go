// Package swapchain configures a wgpu.Surface and acquires/presents its frames. It
// plays the role of a Vulkan VkSwapchainKHR, with one structural difference: wgpu
// couples acquire and present to the surface itself rather than to a separate set of
// per-image semaphores/fences, so frame pacing here is expressed through the Device's
// frame-slot counter (see engine/device) instead of explicit sync primitives.
package swapchain

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// PresentMode selects how frames are paced to the display.
type PresentMode int

const (
	PresentModeUncapped PresentMode = iota
	PresentModeVSync
	PresentModeTripleBuffered
)

func (m PresentMode) wgpu() wgpu.PresentMode {
	switch m {
	case PresentModeVSync:
		return wgpu.PresentModeFifo
	case PresentModeTripleBuffered:
		return wgpu.PresentModeMailbox
	default:
		return wgpu.PresentModeImmediate
	}
}

// Swapchain wraps the configured surface for one window. Resize recreates the
// underlying configuration in place.
type Swapchain struct {
	device  *wgpu.Device
	adapter *wgpu.Adapter
	surface *wgpu.Surface

	format      wgpu.TextureFormat
	alphaMode   wgpu.CompositeAlphaMode
	presentMode wgpu.PresentMode

	width, height uint32

	current *wgpu.Texture
}

// New queries the surface's supported formats/alpha modes and configures it at the
// given size and present mode.
func New(device *wgpu.Device, adapter *wgpu.Adapter, surface *wgpu.Surface, width, height uint32, mode PresentMode) (*Swapchain, error) {
	s := &Swapchain{
		device:      device,
		adapter:     adapter,
		surface:     surface,
		presentMode: mode.wgpu(),
	}
	if err := s.configure(width, height); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Swapchain) configure(width, height uint32) error {
	if width == 0 || height == 0 {
		// A minimized or zero-area window: record dimensions but skip Configure.
		// BeginFrame reports this as a skip-frame sentinel rather than an error.
		s.width, s.height = width, height
		return nil
	}

	capabilities := s.surface.GetCapabilities(s.adapter)
	if len(capabilities.Formats) == 0 {
		return errors.New("swapchain: surface reports no supported formats")
	}
	s.format = capabilities.Formats[0]
	s.alphaMode = capabilities.AlphaModes[0]

	s.surface.Configure(s.adapter, s.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      s.format,
		Width:       width,
		Height:      height,
		PresentMode: s.presentMode,
		AlphaMode:   s.alphaMode,
	})
	s.width, s.height = width, height
	return nil
}

// Resize reconfigures the surface at a new size. A zero width or height is valid — the
// surface is left unconfigured and BeginFrame reports ErrSkipFrame until a non-zero
// resize arrives, matching the window-minimized edge case.
func (s *Swapchain) Resize(width, height uint32) error {
	return s.configure(width, height)
}

// Format returns the surface's negotiated color format. Framebuffer attachments that
// alias the swapchain image use this to build a compatible render pass descriptor.
func (s *Swapchain) Format() wgpu.TextureFormat { return s.format }

func (s *Swapchain) Width() uint32  { return s.width }
func (s *Swapchain) Height() uint32 { return s.height }

// SetPresentMode changes the present mode; it takes effect on the next Resize/configure.
func (s *Swapchain) SetPresentMode(mode PresentMode) {
	s.presentMode = mode.wgpu()
}

// ErrSkipFrame is returned by BeginFrame when the surface is unconfigured (zero-area
// resize pending) or when the current surface texture comes back suboptimal/lost —
// the caller should skip rendering this frame rather than treat it as fatal.
var ErrSkipFrame = errors.New("swapchain: frame skipped")

// BeginFrame acquires the current surface texture and its default view. The returned
// view is valid until Present releases it.
func (s *Swapchain) BeginFrame() (*wgpu.TextureView, error) {
	if s.width == 0 || s.height == 0 {
		return nil, ErrSkipFrame
	}

	surfaceTexture, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("%w: acquire surface texture: %v", ErrSkipFrame, err)
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, fmt.Errorf("swapchain: create surface view: %w", err)
	}

	s.current = surfaceTexture
	return view, nil
}

// Present presents the acquired surface texture and releases it. Must be called once
// per successful BeginFrame, after the frame's command buffer has been submitted.
func (s *Swapchain) Present() {
	if s.current == nil {
		return
	}
	s.surface.Present()
	s.current.Release()
	s.current = nil
}

// Release releases the acquired surface texture, if any, and the underlying surface.
func (s *Swapchain) Release() {
	if s.current != nil {
		s.current.Release()
		s.current = nil
	}
	s.surface.Release()
}
