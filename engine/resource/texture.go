package resource

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ignisengine/ignis/common"
)

// TextureUsage classifies how a texture will be bound, mirroring the spec's
// {Texture, Attachment, Storage} usage categories.
type TextureUsage int

const (
	TextureUsageSampled TextureUsage = iota
	TextureUsageAttachment
	TextureUsageStorage
)

// TextureSpec describes a Texture2D or TextureCube before GPU resources exist. Invalidate
// (re)creates the image, view, and sampler from this spec; Resize preserves it and
// re-invalidates, matching the spec's framebuffer-resize propagation contract.
type TextureSpec struct {
	Width, Height uint32
	Format        wgpu.TextureFormat
	Usage         TextureUsage
	Samples       uint32
	Layers        uint32 // 1 for Texture2D, 6 for TextureCube
	Mips          uint32 // 0 means auto (full mip chain)
	Wrap          wgpu.AddressMode
	Filter        wgpu.FilterMode
	CreateSampler bool
}

// Texture is a GPU image plus its default view and (optionally) sampler.
type Texture struct {
	label   string
	spec    TextureSpec
	texture *wgpu.Texture
	view    *wgpu.TextureView
	sampler *wgpu.Sampler
}

// NewTexture2D creates a single-layer texture from spec.
func NewTexture2D(device *wgpu.Device, label string, spec TextureSpec) (*Texture, error) {
	spec.Layers = 1
	t := &Texture{label: label, spec: spec}
	if err := t.Invalidate(device); err != nil {
		return nil, err
	}
	return t, nil
}

// NewTextureCube creates a 6-layer cube texture from spec.
func NewTextureCube(device *wgpu.Device, label string, spec TextureSpec) (*Texture, error) {
	spec.Layers = 6
	t := &Texture{label: label, spec: spec}
	if err := t.Invalidate(device); err != nil {
		return nil, err
	}
	return t, nil
}

func mipCount(spec TextureSpec) uint32 {
	if spec.Mips > 0 {
		return spec.Mips
	}
	levels := uint32(1)
	w, h := spec.Width, spec.Height
	for w > 1 || h > 1 {
		w /= 2
		h /= 2
		levels++
	}
	return levels
}

func textureUsageFlags(u TextureUsage) wgpu.TextureUsage {
	switch u {
	case TextureUsageAttachment:
		return wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding
	case TextureUsageStorage:
		return wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding
	default:
		return wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	}
}

// Invalidate (re)creates the underlying GPU image, view, and sampler from the current
// spec. Any previously held GPU objects are released first.
func (t *Texture) Invalidate(device *wgpu.Device) error {
	t.releaseGPU()

	dimension := wgpu.TextureDimension2D
	mips := mipCount(t.spec)

	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label: t.label,
		Size: wgpu.Extent3D{
			Width:              t.spec.Width,
			Height:             t.spec.Height,
			DepthOrArrayLayers: max32(1, t.spec.Layers),
		},
		MipLevelCount: mips,
		SampleCount:   max32(1, t.spec.Samples),
		Dimension:     dimension,
		Format:        t.spec.Format,
		Usage:         textureUsageFlags(t.spec.Usage),
	})
	if err != nil {
		return fmt.Errorf("resource: create texture %q: %w", t.label, err)
	}
	t.texture = tex

	viewDim := wgpu.TextureViewDimension2D
	if t.spec.Layers == 6 {
		viewDim = wgpu.TextureViewDimensionCube
	}
	view, err := tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           t.label + " View",
		Dimension:       viewDim,
		MipLevelCount:   mips,
		ArrayLayerCount: max32(1, t.spec.Layers),
	})
	if err != nil {
		return fmt.Errorf("resource: create texture view %q: %w", t.label, err)
	}
	t.view = view

	if t.spec.CreateSampler {
		samp, err := device.CreateSampler(&wgpu.SamplerDescriptor{
			Label:         t.label + " Sampler",
			AddressModeU:  common.Coalesce(t.spec.Wrap, wgpu.AddressModeRepeat),
			AddressModeV:  common.Coalesce(t.spec.Wrap, wgpu.AddressModeRepeat),
			AddressModeW:  common.Coalesce(t.spec.Wrap, wgpu.AddressModeRepeat),
			MagFilter:     common.Coalesce(t.spec.Filter, wgpu.FilterModeLinear),
			MinFilter:     common.Coalesce(t.spec.Filter, wgpu.FilterModeLinear),
			MipmapFilter:  wgpu.MipmapFilterModeLinear,
			LodMinClamp:   0,
			LodMaxClamp:   float32(mips),
			MaxAnisotropy: 1,
		})
		if err != nil {
			return fmt.Errorf("resource: create sampler %q: %w", t.label, err)
		}
		t.sampler = samp
	}

	return nil
}

// Resize preserves the spec's format/usage/layers and re-creates the image at a new
// width/height, propagating only to this texture's own GPU resources.
func (t *Texture) Resize(device *wgpu.Device, width, height uint32) error {
	t.spec.Width = width
	t.spec.Height = height
	return t.Invalidate(device)
}

// GenerateMips issues a chain of blits, one per mip level: each level is produced by a
// render pass that samples the previous level through a linear filter and writes the
// next one, standing in for the spec's chain-of-blits-with-per-level-barrier (wgpu has
// no CmdBlitImage or explicit barrier API — the render pass boundary between one
// level's write and the next level's read provides the equivalent synchronization).
func (t *Texture) GenerateMips(device *wgpu.Device, queue *wgpu.Queue) error {
	levels := mipCount(t.spec)
	if levels <= 1 {
		return nil
	}
	if t.texture == nil {
		return fmt.Errorf("resource: GenerateMips on uninitialized texture %q", t.label)
	}

	blitter, err := getMipBlitter(device, t.spec.Format)
	if err != nil {
		return fmt.Errorf("resource: GenerateMips %q: %w", t.label, err)
	}
	sampler, err := getMipSampler(device)
	if err != nil {
		return fmt.Errorf("resource: GenerateMips %q: %w", t.label, err)
	}
	layers := max32(1, t.spec.Layers)

	// Each array layer (for a TextureCube, each of its 6 faces) is blitted through its
	// own single-layer 2D view — the blit shader's texture_2d<f32> binding samples one
	// layer at a time, it never binds the array/cube view directly.
	for level := uint32(1); level < levels; level++ {
		for layer := uint32(0); layer < layers; layer++ {
			if err := t.blitMipLevel(device, queue, blitter, sampler, level, layer); err != nil {
				return fmt.Errorf("resource: GenerateMips %q: mip %d layer %d: %w", t.label, level, layer, err)
			}
		}
	}
	return nil
}

// blitMipLevel renders level-1 (source, sampled) into level (destination, attached)
// for one array layer of the texture, then submits and releases every transient GPU
// object it created.
func (t *Texture) blitMipLevel(device *wgpu.Device, queue *wgpu.Queue, blitter *mipBlitter, sampler *wgpu.Sampler, level, layer uint32) error {
	srcView, err := t.texture.CreateView(&wgpu.TextureViewDescriptor{
		Label:           fmt.Sprintf("%s mip %d layer %d src view", t.label, level, layer),
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    level - 1,
		MipLevelCount:   1,
		BaseArrayLayer:  layer,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return fmt.Errorf("create source view: %w", err)
	}
	defer srcView.Release()

	dstView, err := t.texture.CreateView(&wgpu.TextureViewDescriptor{
		Label:           fmt.Sprintf("%s mip %d layer %d dst view", t.label, level, layer),
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    level,
		MipLevelCount:   1,
		BaseArrayLayer:  layer,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return fmt.Errorf("create dest view: %w", err)
	}
	defer dstView.Release()

	bindGroup, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  fmt.Sprintf("%s mip %d blit bind group", t.label, level),
		Layout: blitter.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: srcView},
			{Binding: 1, Sampler: sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	defer bindGroup.Release()

	encoder, err := device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{
		Label: fmt.Sprintf("%s mip %d blit", t.label, level),
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: fmt.Sprintf("%s mip %d blit pass", t.label, level),
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    dstView,
			LoadOp:  wgpu.LoadOpClear,
			StoreOp: wgpu.StoreOpStore,
		}},
	})
	pass.SetPipeline(blitter.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()

	buf, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return fmt.Errorf("finish command buffer: %w", err)
	}
	queue.Submit(buf)
	buf.Release()
	encoder.Release()
	return nil
}

func (t *Texture) Label() string             { return t.label }
func (t *Texture) Handle() *wgpu.Texture     { return t.texture }
func (t *Texture) View() *wgpu.TextureView   { return t.view }
func (t *Texture) Sampler() *wgpu.Sampler    { return t.sampler }
func (t *Texture) Spec() TextureSpec         { return t.spec }

func (t *Texture) releaseGPU() {
	if t.sampler != nil {
		t.sampler.Release()
		t.sampler = nil
	}
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

// Release releases every GPU object owned by this texture.
func (t *Texture) Release() {
	if t == nil {
		return
	}
	t.releaseGPU()
}

// ImageView is a named view over a mip/layer subrange of an existing texture, used for
// per-mip storage-image bindings such as a bloom downsample chain.
type ImageView struct {
	label string
	view  *wgpu.TextureView
}

// NewImageView creates a view over [baseMip, baseMip+mipCount) and [baseLayer, baseLayer+layerCount).
func NewImageView(texture *Texture, label string, baseMip, mipCount, baseLayer, layerCount uint32) (*ImageView, error) {
	if texture.Handle() == nil {
		return nil, fmt.Errorf("resource: NewImageView on uninitialized texture %q", texture.Label())
	}
	view, err := texture.Handle().CreateView(&wgpu.TextureViewDescriptor{
		Label:           label,
		BaseMipLevel:    baseMip,
		MipLevelCount:   mipCount,
		BaseArrayLayer:  baseLayer,
		ArrayLayerCount: layerCount,
	})
	if err != nil {
		return nil, fmt.Errorf("resource: create image view %q: %w", label, err)
	}
	return &ImageView{label: label, view: view}, nil
}

func (v *ImageView) Handle() *wgpu.TextureView { return v.view }

func (v *ImageView) Release() {
	if v == nil || v.view == nil {
		return
	}
	v.view.Release()
	v.view = nil
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
