// Package material implements Material: a Set-3 descriptor.Manager bound to a
// pipeline, holding the surface properties (base color, metallic, roughness) and
// texture inputs a fragment shader samples. A RenderPass owns sets 0-2; a Material
// owns set 3 by convention, so swapping materials mid-pass never touches the
// pass-level camera/lighting bindings.
package material

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ignisengine/ignis/engine/descriptor"
	"github.com/ignisengine/ignis/engine/resource"
	"github.com/ignisengine/ignis/engine/shader"
)

// GPUParams is the uniform struct a Material's fragment shader declares at the
// binding named "material". Layout: 24 bytes packed into a 32-byte upload (base
// color vec4, then metallic/roughness scalars, std140-padded to a 16-byte stride).
type GPUParams struct {
	BaseColor [4]float32
	Metallic  float32
	Roughness float32
}

// Marshal serializes GPUParams into the byte layout the uniform buffer expects.
func (g *GPUParams) Marshal() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.BaseColor[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.BaseColor[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.BaseColor[2]))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(g.BaseColor[3]))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.Metallic))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(g.Roughness))
	return buf
}

// Spec describes a material at construction time. The texture fields may be left
// nil: the material's descriptor.Spec.DefaultResources lets Bake accept the unset
// binding, but no fallback texture is bound in its place, so the material's set
// has no bind group until a texture input is set.
type Spec struct {
	Name        string
	PipelineKey string

	BaseColor [4]float32
	Metallic  float32
	Roughness float32

	DiffuseTexture           *resource.Texture
	NormalTexture            *resource.Texture
	MetallicRoughnessTexture *resource.Texture

	// Shader is the reflection result the material's fragment shader produced;
	// set 3's declarations are read from it, same as any other descriptor.Manager.
	Shader     *shader.ReflectionResult
	FrameCount int

	// FragmentShader and Registry, when both set, register this Material as a
	// shader.Dependent so Registry.Reload invalidates it automatically alongside
	// any Pipeline built from the same fragment shader (spec.md §4.9 scenario C:
	// reload must rebuild every dependent material exactly once).
	FragmentShader *shader.Shader
	Registry       *shader.Registry
}

// Material owns set 3's descriptor.Manager and the uniform buffer backing its GPU
// parameters, plus the pipeline key draw calls look up to bind this material.
type Material struct {
	mu sync.Mutex

	spec   Spec
	params GPUParams

	device      *wgpu.Device
	uniform     *resource.Buffer
	descriptors *descriptor.Manager

	pipelineKey string
	baked       bool
}

// New creates the material's set-3 descriptor manager and uniform buffer, binds the
// GPU parameters and any supplied textures, and uploads the initial parameter
// values. Callers must still call Bake before the material can be drawn with.
func New(device *wgpu.Device, queue *wgpu.Queue, spec Spec) (*Material, error) {
	if spec.Metallic == 0 && spec.Roughness == 0 {
		spec.Roughness = 1
	}
	if spec.BaseColor == ([4]float32{}) {
		spec.BaseColor = [4]float32{1, 1, 1, 1}
	}

	uniform, err := resource.NewUniformBuffer(device, spec.Name+" params", 32)
	if err != nil {
		return nil, err
	}

	descSpec := descriptor.Spec{
		Shader:           spec.Shader,
		StartingSet:      3,
		EndingSet:        3,
		DefaultResources: true,
		DebugName:        spec.Name,
		FrameCount:       spec.FrameCount,
	}
	mgr := descriptor.NewManager(descSpec)
	mgr.SetInput("material", descriptor.NewUniformBufferInput(uniform))
	if spec.DiffuseTexture != nil {
		mgr.SetInput("diffuseTexture", descriptor.NewTexture2DInput(spec.DiffuseTexture))
	}
	if spec.NormalTexture != nil {
		mgr.SetInput("normalTexture", descriptor.NewTexture2DInput(spec.NormalTexture))
	}
	if spec.MetallicRoughnessTexture != nil {
		mgr.SetInput("metallicRoughnessTexture", descriptor.NewTexture2DInput(spec.MetallicRoughnessTexture))
	}

	m := &Material{
		spec:        spec,
		params:      GPUParams{BaseColor: spec.BaseColor, Metallic: spec.Metallic, Roughness: spec.Roughness},
		device:      device,
		uniform:     uniform,
		descriptors: mgr,
		pipelineKey: spec.PipelineKey,
	}
	m.uniform.SetData(queue, m.params.Marshal(), 0)

	if spec.FragmentShader != nil && spec.Registry != nil {
		spec.Registry.AddDependent(spec.FragmentShader.Key(), m)
	}

	return m, nil
}

func (m *Material) Name() string       { return m.spec.Name }
func (m *Material) PipelineKey() string { return m.pipelineKey }
func (m *Material) BaseColor() [4]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params.BaseColor
}
func (m *Material) Metallic() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params.Metallic
}
func (m *Material) Roughness() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params.Roughness
}

// SetPipelineKey rebinds the pipeline a draw call looks this material's descriptor
// sets up against, without rebuilding any GPU resource.
func (m *Material) SetPipelineKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipelineKey = key
}

// SetSurfaceParams updates base color/metallic/roughness and uploads the new values
// to the uniform buffer. Safe to call every frame; the write is a plain WriteBuffer,
// not a bind group rebuild.
func (m *Material) SetSurfaceParams(queue *wgpu.Queue, baseColor [4]float32, metallic, roughness float32) {
	m.mu.Lock()
	m.params = GPUParams{BaseColor: baseColor, Metallic: metallic, Roughness: roughness}
	data := m.params.Marshal()
	m.mu.Unlock()
	m.uniform.SetData(queue, data, 0)
}

// Descriptors returns the material's set-3 manager, for DescriptorSets(slot) lookups
// alongside the RenderPass's sets 0-2 at draw time.
func (m *Material) Descriptors() *descriptor.Manager { return m.descriptors }

// Bake bakes the material's descriptor manager. Call once after construction.
func (m *Material) Bake(device *wgpu.Device) error {
	if err := m.descriptors.Bake(device); err != nil {
		return err
	}
	m.baked = true
	return nil
}

// Prepare re-validates the material's bind groups for the given frame slot. Call once
// per frame, after the owning RenderPass's own Prepare.
func (m *Material) Prepare(device *wgpu.Device, slot int) error {
	return m.descriptors.Prepare(device, slot)
}

// Invalidate satisfies shader.Dependent. On fragment-shader reload it re-fetches the
// reloaded shader and recomputes set 3's reflection before releasing the material's
// baked bind groups and rebaking them against the same input resources
// (m.descriptors.inputs is untouched by Release/Rebind) — the spec's "material rebuild
// preserving existing input resources" requirement. Registry.Reload swaps the *Shader
// under its key but never touches this Material's retained Spec, so without the
// re-fetch Invalidate would rebake against the pre-reload binding layout, same as the
// bug Pipeline.refreshShaders fixes on the pipeline side.
func (m *Material) Invalidate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return fmt.Errorf("material %q: Invalidate called before construction completed", m.spec.Name)
	}

	if m.spec.FragmentShader != nil && m.spec.Registry != nil {
		if reloaded := m.spec.Registry.Get(m.spec.FragmentShader.Key()); reloaded != nil && reloaded != m.spec.FragmentShader {
			reflection, err := shader.Reflect(reloaded)
			if err != nil {
				return fmt.Errorf("material %q: re-reflect after shader reload: %w", m.spec.Name, err)
			}
			m.spec.FragmentShader = reloaded
			m.spec.Shader = reflection
			m.descriptors.Rebind(reflection)
		}
	}

	m.descriptors.Release()
	m.baked = false
	if err := m.descriptors.Bake(m.device); err != nil {
		return err
	}
	m.baked = true
	return nil
}

// Release releases the material's descriptor manager and uniform buffer.
func (m *Material) Release() {
	m.descriptors.Release()
	m.uniform.Release()
}
