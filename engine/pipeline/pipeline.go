// Package pipeline builds graphics and compute pipelines from a PipelineSpec. A
// pipeline is immutable after construction except for an explicit Invalidate, which
// destroys and recreates it from the same spec — used when its shader reloads.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ignisengine/ignis/engine/shader"
)

// BlendMode is one of the four blend presets the spec allows per color attachment.
type BlendMode int

const (
	BlendModeOneZero BlendMode = iota
	BlendModeSrcAlphaOneMinusSrcAlpha
	BlendModeAdditive
	BlendModeZeroSrcColor
)

func (m BlendMode) state() *wgpu.BlendState {
	switch m {
	case BlendModeSrcAlphaOneMinusSrcAlpha:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorSrcAlpha, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
			Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
		}
	case BlendModeAdditive:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
			Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
		}
	case BlendModeZeroSrcColor:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorZero, DstFactor: wgpu.BlendFactorSrcColor, Operation: wgpu.BlendOperationAdd},
			Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorZero, DstFactor: wgpu.BlendFactorSrcColor, Operation: wgpu.BlendOperationAdd},
		}
	default: // BlendModeOneZero
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorZero, Operation: wgpu.BlendOperationAdd},
			Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorZero, Operation: wgpu.BlendOperationAdd},
		}
	}
}

// AttachmentBlend configures blending for one color attachment. When Enabled but Mode
// is left at its zero value, the framebuffer's global blend mode applies instead.
type AttachmentBlend struct {
	Enabled bool
	Mode    BlendMode
}

// Spec fully describes a pipeline before any GPU object exists. Rebaking from the same
// Spec (via Invalidate) must reproduce an identical pipeline.
type Spec struct {
	Key string

	VertexShader, FragmentShader, ComputeShader *shader.Shader
	Reflection                                  *shader.ReflectionResult

	VertexLayout   []wgpu.VertexBufferLayout // bound at binding 0
	InstanceLayout []wgpu.VertexBufferLayout // bound at binding 1, optional

	Topology  wgpu.PrimitiveTopology
	Wireframe bool
	CullMode  wgpu.CullMode
	FrontFace wgpu.FrontFace

	DepthTest, DepthWrite bool
	DepthCompare          wgpu.CompareFunction
	DepthFormat           wgpu.TextureFormat

	ColorFormats    []wgpu.TextureFormat
	ColorBlend      []AttachmentBlend
	GlobalBlendMode BlendMode

	SampleCount uint32

	// SkipDependencyRegistration opts a pipeline out of automatic shader-reload
	// invalidation. Left false (the default), the pipeline registers itself with
	// Registry so Shader reload invalidates it automatically.
	SkipDependencyRegistration bool

	// PushConstantSize, when >0, reserves a uniform buffer binding standing in for a
	// Vulkan push-constant range (wgpu has none — see engine/shader.PushConstantRange).
	PushConstantSize uint32
}

// dynamicLineWidth reports whether this spec's topology requires a dynamic line width
// state, per the rule: true iff the primitive topology is line-shaped or wireframe mode
// is requested. wgpu's stable API has no line-width control, and nothing in this module
// calls dynamicLineWidth: the classification is not applied to pipeline or pass state.
func (s Spec) dynamicLineWidth() bool {
	return s.Wireframe || s.Topology == wgpu.PrimitiveTopologyLineList || s.Topology == wgpu.PrimitiveTopologyLineStrip
}

// Pipeline is a built graphics or compute pipeline.
type Pipeline struct {
	device   *wgpu.Device
	registry *shader.Registry
	spec     Spec

	renderPipeline  *wgpu.RenderPipeline
	computePipeline *wgpu.ComputePipeline

	pushConstantSet       int
	pushConstantBuffer    *wgpu.Buffer
	pushConstantLayout    *wgpu.BindGroupLayout
	pushConstantBindGroup *wgpu.BindGroup
}

// NewGraphics builds a graphics pipeline from spec exactly once.
func NewGraphics(device *wgpu.Device, registry *shader.Registry, spec Spec) (*Pipeline, error) {
	if spec.VertexShader == nil || spec.FragmentShader == nil {
		return nil, errors.New("pipeline: graphics pipeline requires both a vertex and fragment shader")
	}
	p := &Pipeline{device: device, registry: registry, spec: spec}
	if err := p.buildGraphics(); err != nil {
		return nil, err
	}
	p.registerDependency()
	return p, nil
}

// NewCompute builds a compute pipeline from spec exactly once.
func NewCompute(device *wgpu.Device, registry *shader.Registry, spec Spec) (*Pipeline, error) {
	if spec.ComputeShader == nil {
		return nil, errors.New("pipeline: compute pipeline requires a compute shader")
	}
	p := &Pipeline{device: device, registry: registry, spec: spec}
	if err := p.buildCompute(); err != nil {
		return nil, err
	}
	p.registerDependency()
	return p, nil
}

func (p *Pipeline) registerDependency() {
	if p.registry == nil || p.spec.SkipDependencyRegistration {
		return
	}
	if p.spec.VertexShader != nil {
		p.registry.AddDependent(p.spec.VertexShader.Key(), p)
	}
	if p.spec.FragmentShader != nil {
		p.registry.AddDependent(p.spec.FragmentShader.Key(), p)
	}
	if p.spec.ComputeShader != nil {
		p.registry.AddDependent(p.spec.ComputeShader.Key(), p)
	}
}

// Key returns the pipeline's unique identifier.
func (p *Pipeline) Key() string { return p.spec.Key }

// RenderPipeline returns the underlying graphics pipeline, or nil for a compute pipeline.
func (p *Pipeline) RenderPipeline() *wgpu.RenderPipeline { return p.renderPipeline }

// ComputePipeline returns the underlying compute pipeline, or nil for a graphics pipeline.
func (p *Pipeline) ComputePipeline() *wgpu.ComputePipeline { return p.computePipeline }

// PushConstantSet returns the bind group set index the push-constant substitute
// occupies, or -1 if Spec.PushConstantSize was zero. A draw call binds
// PushConstantBindGroup() at this set index after the RenderPass's and Material's
// own sets.
func (p *Pipeline) PushConstantSet() int {
	if p.pushConstantBuffer == nil {
		return -1
	}
	return p.pushConstantSet
}

// PushConstantBindGroup returns the bind group wrapping the reserved push-constant
// uniform buffer, or nil if Spec.PushConstantSize was zero.
func (p *Pipeline) PushConstantBindGroup() *wgpu.BindGroup { return p.pushConstantBindGroup }

// WritePushConstants uploads data to the pipeline's reserved push-constant buffer.
// data must be no longer than Spec.PushConstantSize. Call immediately before the
// draw call it's meant for — the buffer is shared across every draw using this
// pipeline, so there is no per-draw isolation the way a real push-constant range
// gets from being embedded directly in the command buffer.
func (p *Pipeline) WritePushConstants(queue *wgpu.Queue, data []byte) error {
	if p.pushConstantBuffer == nil {
		return fmt.Errorf("pipeline %q: WritePushConstants called but Spec.PushConstantSize is 0", p.spec.Key)
	}
	if uint32(len(data)) > p.spec.PushConstantSize {
		return fmt.Errorf("pipeline %q: push constant data of %d bytes exceeds reserved size %d", p.spec.Key, len(data), p.spec.PushConstantSize)
	}
	queue.WriteBuffer(p.pushConstantBuffer, 0, data)
	return nil
}

// Invalidate destroys and recreates the pipeline from its original Spec, re-querying
// descriptor set layouts from the (possibly reloaded) shader's reflection. It satisfies
// shader.Dependent so Registry.Reload can invoke it directly.
func (p *Pipeline) Invalidate() error {
	if err := p.refreshShaders(); err != nil {
		return err
	}
	p.releasePushConstants()
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
		return p.buildGraphics()
	}
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
		return p.buildCompute()
	}
	return fmt.Errorf("pipeline %q: Invalidate called before first build", p.spec.Key)
}

// refreshShaders re-fetches each of the spec's shader pointers from the registry by
// key. Registry.Reload swaps in a new *shader.Shader under the same key but never
// touches a pipeline's retained Spec, so without this step Invalidate would rebuild
// from the stale pre-reload source. When any shader actually changed, the reflection
// result is recomputed too, since a reload can change binding declarations and not
// just the source body.
func (p *Pipeline) refreshShaders() error {
	if p.registry == nil {
		return nil
	}

	changed := false
	refetch := func(s *shader.Shader) *shader.Shader {
		if s == nil {
			return nil
		}
		if reloaded := p.registry.Get(s.Key()); reloaded != nil && reloaded != s {
			changed = true
			return reloaded
		}
		return s
	}

	p.spec.VertexShader = refetch(p.spec.VertexShader)
	p.spec.FragmentShader = refetch(p.spec.FragmentShader)
	p.spec.ComputeShader = refetch(p.spec.ComputeShader)
	if !changed {
		return nil
	}

	var stages []*shader.Shader
	if p.spec.ComputeShader != nil {
		stages = []*shader.Shader{p.spec.ComputeShader}
	} else {
		stages = []*shader.Shader{p.spec.VertexShader, p.spec.FragmentShader}
	}
	reflection, err := shader.Reflect(stages...)
	if err != nil {
		return fmt.Errorf("pipeline %q: re-reflect after shader reload: %w", p.spec.Key, err)
	}
	p.spec.Reflection = reflection
	return nil
}

func (p *Pipeline) releasePushConstants() {
	if p.pushConstantBindGroup != nil {
		p.pushConstantBindGroup.Release()
		p.pushConstantBindGroup = nil
	}
	if p.pushConstantLayout != nil {
		p.pushConstantLayout.Release()
		p.pushConstantLayout = nil
	}
	if p.pushConstantBuffer != nil {
		p.pushConstantBuffer.Release()
		p.pushConstantBuffer = nil
	}
}

// Release destroys the underlying GPU pipeline object without rebuilding it.
func (p *Pipeline) Release() {
	p.releasePushConstants()
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
	}
}
