// Package descriptor implements DescriptorSetManager: given a shader's reflected
// binding declarations and a set range, it resolves named resource inputs into GPU
// bind groups, validates type/dimension compatibility, and keeps per-frame-slot copies
// current as the underlying resources change.
package descriptor

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ignisengine/ignis/engine/resource"
)

// ResourceType identifies the kind of resource bound to a declared input, matching the
// spec's DescriptorResourceType enumeration. A *Set variant selects its underlying
// buffer by the current frame slot at Prepare time.
type ResourceType int

const (
	ResourceTypeUniformBuffer ResourceType = iota
	ResourceTypeUniformBufferSet
	ResourceTypeStorageBuffer
	ResourceTypeStorageBufferSet
	ResourceTypeTexture2D
	ResourceTypeTextureCube
	ResourceTypeImageView
	ResourceTypeStorageImage
	// resourceTypeSampler is not part of the spec's DescriptorResourceType table; it
	// exists because wgpu splits a Vulkan combined-image-sampler into two independent
	// bindings. A texture input written against a paired sampler binding auto-supplies
	// the texture's own sampler; this type covers the (rarer) case of an explicitly
	// shared sampler bound on its own.
	resourceTypeSampler
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeUniformBuffer:
		return "UniformBuffer"
	case ResourceTypeUniformBufferSet:
		return "UniformBufferSet"
	case ResourceTypeStorageBuffer:
		return "StorageBuffer"
	case ResourceTypeStorageBufferSet:
		return "StorageBufferSet"
	case ResourceTypeTexture2D:
		return "Texture2D"
	case ResourceTypeTextureCube:
		return "TextureCube"
	case ResourceTypeImageView:
		return "ImageView"
	case ResourceTypeStorageImage:
		return "StorageImage"
	case resourceTypeSampler:
		return "Sampler"
	default:
		return "Unknown"
	}
}

// Input is a named resource bound by SetInput, resolved against the shader's declared
// bindings at Bake and re-checked for identity changes at Prepare.
type Input interface {
	resourceType() ResourceType
	// resolve returns the wgpu bind group entry contents for the given frame slot (Binding
	// left unset — the manager fills it in) and whether the underlying handle is
	// presently non-null.
	resolve(slot int) (wgpu.BindGroupEntry, bool)
	// identity returns a comparable value for the concrete GPU handle at the given slot.
	identity(slot int) any
}

type bufferInput struct {
	rt  ResourceType
	buf *resource.Buffer
}

// NewUniformBufferInput binds a single uniform buffer, shared across every frame slot.
func NewUniformBufferInput(buf *resource.Buffer) Input {
	return &bufferInput{rt: ResourceTypeUniformBuffer, buf: buf}
}

// NewStorageBufferInput binds a single storage buffer, shared across every frame slot.
func NewStorageBufferInput(buf *resource.Buffer) Input {
	return &bufferInput{rt: ResourceTypeStorageBuffer, buf: buf}
}

func (i *bufferInput) resourceType() ResourceType { return i.rt }

func (i *bufferInput) resolve(int) (wgpu.BindGroupEntry, bool) {
	if i.buf == nil || i.buf.Handle() == nil {
		return wgpu.BindGroupEntry{}, false
	}
	return wgpu.BindGroupEntry{Buffer: i.buf.Handle(), Offset: 0, Size: wgpu.WholeSize}, true
}

func (i *bufferInput) identity(int) any { return i.buf.Handle() }

type bufferSetInput struct {
	rt  ResourceType
	set *resource.BufferSet
}

// NewUniformBufferSetInput binds a per-frame-slot uniform buffer set; the manager
// dereferences slot's copy at Bake and Prepare time.
func NewUniformBufferSetInput(set *resource.BufferSet) Input {
	return &bufferSetInput{rt: ResourceTypeUniformBufferSet, set: set}
}

// NewStorageBufferSetInput binds a per-frame-slot storage buffer set.
func NewStorageBufferSetInput(set *resource.BufferSet) Input {
	return &bufferSetInput{rt: ResourceTypeStorageBufferSet, set: set}
}

func (i *bufferSetInput) resourceType() ResourceType { return i.rt }

func (i *bufferSetInput) resolve(slot int) (wgpu.BindGroupEntry, bool) {
	buf := i.set.At(slot)
	if buf == nil || buf.Handle() == nil {
		return wgpu.BindGroupEntry{}, false
	}
	return wgpu.BindGroupEntry{Buffer: buf.Handle(), Offset: 0, Size: wgpu.WholeSize}, true
}

func (i *bufferSetInput) identity(slot int) any {
	buf := i.set.At(slot)
	if buf == nil {
		return nil
	}
	return buf.Handle()
}

type textureInput struct {
	rt  ResourceType
	tex *resource.Texture
}

// NewTexture2DInput binds a 2D texture's default view (and, for a paired sampler
// binding, its sampler).
func NewTexture2DInput(tex *resource.Texture) Input {
	return &textureInput{rt: ResourceTypeTexture2D, tex: tex}
}

// NewTextureCubeInput binds a cube texture's default view.
func NewTextureCubeInput(tex *resource.Texture) Input {
	return &textureInput{rt: ResourceTypeTextureCube, tex: tex}
}

// NewStorageImageInput binds a texture for a storage-image binding (GENERAL layout
// equivalent — no sampler).
func NewStorageImageInput(tex *resource.Texture) Input {
	return &textureInput{rt: ResourceTypeStorageImage, tex: tex}
}

func (i *textureInput) resourceType() ResourceType { return i.rt }

func (i *textureInput) resolve(int) (wgpu.BindGroupEntry, bool) {
	if i.tex == nil || i.tex.View() == nil {
		return wgpu.BindGroupEntry{}, false
	}
	return wgpu.BindGroupEntry{TextureView: i.tex.View()}, true
}

func (i *textureInput) identity(int) any {
	if i.tex == nil {
		return nil
	}
	return i.tex.View()
}

// pairedSampler returns an Input for this texture's own sampler, used to auto-satisfy
// a sampler binding whose variable name has a texture input set under it.
func (i *textureInput) pairedSampler() Input {
	return &samplerInput{tex: i.tex}
}

type samplerInput struct {
	tex *resource.Texture
	sampler *wgpu.Sampler
}

// NewSamplerInput binds an explicit, standalone sampler (not derived from a texture).
func NewSamplerInput(sampler *wgpu.Sampler) Input {
	return &samplerInput{sampler: sampler}
}

func (i *samplerInput) resourceType() ResourceType { return resourceTypeSampler }

func (i *samplerInput) resolve(int) (wgpu.BindGroupEntry, bool) {
	samp := i.sampler
	if samp == nil && i.tex != nil {
		samp = i.tex.Sampler()
	}
	if samp == nil {
		return wgpu.BindGroupEntry{}, false
	}
	return wgpu.BindGroupEntry{Sampler: samp}, true
}

func (i *samplerInput) identity(int) any {
	if i.sampler != nil {
		return i.sampler
	}
	if i.tex != nil {
		return i.tex.Sampler()
	}
	return nil
}

type imageViewInput struct {
	view *resource.ImageView
}

// NewImageViewInput binds a named mip/layer subrange view of an existing texture.
func NewImageViewInput(view *resource.ImageView) Input {
	return &imageViewInput{view: view}
}

func (i *imageViewInput) resourceType() ResourceType { return ResourceTypeImageView }

func (i *imageViewInput) resolve(int) (wgpu.BindGroupEntry, bool) {
	if i.view == nil || i.view.Handle() == nil {
		return wgpu.BindGroupEntry{}, false
	}
	return wgpu.BindGroupEntry{TextureView: i.view.Handle()}, true
}

func (i *imageViewInput) identity(int) any {
	if i.view == nil {
		return nil
	}
	return i.view.Handle()
}

// arrayInput binds count>1 texture-array bindings. Each element's image-info must be
// kept alive until the enclosing BindGroup is created; the manager holds the whole
// slice until CreateBindGroup returns, satisfying the spec's scratch-storage lifetime
// requirement without needing a separate scratch allocation (wgpu's descriptor already
// owns a []wgpu.BindGroupEntry we build fresh per bake/prepare).
type arrayInput struct {
	rt       ResourceType
	elements []Input
}

// NewTextureArrayInput binds a fixed-size array of texture inputs to one declared
// binding with descriptor_count == len(elements).
func NewTextureArrayInput(rt ResourceType, elements []Input) Input {
	return &arrayInput{rt: rt, elements: elements}
}

func (i *arrayInput) resourceType() ResourceType { return i.rt }

// resolve is unused directly for array inputs — the manager special-cases them via
// elements() since a single wgpu.BindGroupEntry cannot carry more than one resource
// when the layout entry's Count is 1 (wgpu models texture arrays as separate bindings,
// one per array element, rather than Vulkan's single-binding descriptorCount).
func (i *arrayInput) resolve(int) (wgpu.BindGroupEntry, bool) { return wgpu.BindGroupEntry{}, false }

func (i *arrayInput) identity(int) any { return nil }

func (i *arrayInput) elements() []Input { return i.elements }
