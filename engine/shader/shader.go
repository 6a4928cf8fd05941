// Package shader reflects WGSL source into the resource declarations a
// DescriptorSetManager and Pipeline need: per-group bind group layout entries,
// vertex input layouts, workgroup sizes, and a folded pool-size table. Vulkan's
// SPIR-V bytecode reflection is replaced here by direct WGSL source parsing —
// the same data model (sets, bindings, descriptor types, stage flags) comes out
// the other end.
package shader

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies which programmable stage a Shader occupies.
type ShaderType int

const (
	ShaderTypeVertex ShaderType = iota
	ShaderTypeFragment
	ShaderTypeCompute
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	case ShaderTypeCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// Shader is a single compiled stage. It carries the raw WGSL source plus
// everything reflection extracted from it: entry point name, vertex input
// layout (vertex stage only), workgroup size (compute stage only), and the
// per-group binding declarations consumed by Reflect.
type Shader struct {
	key        string
	stageType  ShaderType
	source     string
	entryPoint string

	vertexLayouts map[int][]wgpu.VertexBufferLayout
	workgroupSize [3]uint32
	module        *wgpu.ShaderModuleDescriptor

	bindings map[int][]wgpu.BindGroupLayoutEntry
	varNames map[int]map[int]string
}

// New parses source as a single shader stage and reflects its resource bindings.
func New(key string, stageType ShaderType, source string) *Shader {
	s := &Shader{
		key:       key,
		stageType: stageType,
		source:    source,
		module: &wgpu.ShaderModuleDescriptor{
			Label: key,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
				Code: source,
			},
		},
	}

	s.entryPoint = parseEntryPoint(source, stageType)
	if stageType == ShaderTypeVertex {
		s.vertexLayouts = parseVertexLayouts(source)
	}
	if stageType == ShaderTypeCompute {
		s.workgroupSize = parseWorkgroupSize(source)
	}

	descriptors, varNames := parseBindGroupLayouts(source, stageVisibility(stageType))
	s.bindings = make(map[int][]wgpu.BindGroupLayoutEntry, len(descriptors))
	for group, descriptor := range descriptors {
		s.bindings[group] = descriptor.Entries
	}
	s.varNames = varNames

	return s
}

func stageVisibility(t ShaderType) wgpu.ShaderStage {
	switch t {
	case ShaderTypeVertex:
		return wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		return wgpu.ShaderStageFragment
	case ShaderTypeCompute:
		return wgpu.ShaderStageCompute
	default:
		return wgpu.ShaderStageNone
	}
}

// Key returns the shader's unique identifier, used for caching and dependency tracking.
func (s *Shader) Key() string { return s.key }

// Type returns the stage this shader occupies.
func (s *Shader) Type() ShaderType { return s.stageType }

// Source returns the WGSL source for this stage.
func (s *Shader) Source() string { return s.source }

// EntryPoint returns the @vertex/@fragment/@compute function name found in source.
func (s *Shader) EntryPoint() string { return s.entryPoint }

// Module returns the wgpu shader module descriptor built from this stage's source.
func (s *Shader) Module() *wgpu.ShaderModuleDescriptor { return s.module }

// WorkgroupSize returns the @workgroup_size dimensions for a compute stage (unspecified
// dimensions default to 1), and [0,0,0] for any other stage.
func (s *Shader) WorkgroupSize() [3]uint32 { return s.workgroupSize }

// VertexLayout returns the vertex buffer layout registered at the given binding index.
func (s *Shader) VertexLayout(binding int) []wgpu.VertexBufferLayout {
	return s.vertexLayouts[binding]
}

// VertexLayouts returns all vertex buffer layouts parsed from a vertex stage, keyed
// by sequential binding index (0 = per-vertex, 1 = per-instance, by convention).
func (s *Shader) VertexLayouts() map[int][]wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

// BindingName returns the WGSL variable name declared at (group, binding), or "" if absent.
func (s *Shader) BindingName(group, binding int) string {
	if s.varNames[group] == nil {
		return ""
	}
	return s.varNames[group][binding]
}

func (s *Shader) validate() error {
	if s.entryPoint == "" {
		return fmt.Errorf("shader %q: no %s entry point found in source", s.key, s.stageType)
	}
	return nil
}
