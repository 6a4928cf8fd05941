package shader

import (
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
)

// PushConstantRange mirrors a Vulkan push-constant range. wgpu has no native
// push-constant range in its stable API; a pipeline that declares one instead
// reserves a small per-pass uniform buffer at ReservedBinding (see engine/pipeline).
// This type keeps the spec's data model intact at the reflection boundary even
// though nothing in the wgpu backend consumes it as a literal range.
type PushConstantRange struct {
	Stage  wgpu.ShaderStage
	Offset uint32
	Size   uint32

	// ReservedBinding is the binding index of the substitute uniform buffer a pipeline
	// reserves to stand in for this range. WGSL has no push_constant address space, so
	// nothing here is parsed from source; a Pipeline that wants push-constant-equivalent
	// data declares an explicit uniform binding and records the range itself.
	ReservedBinding int
}

// Set is one descriptor set's folded binding declarations: one shader may declare a
// binding in the vertex stage and another may declare the same (group,binding) in the
// fragment stage; Reflect combines these into a single entry with combined stage flags.
type Set struct {
	Index    int
	Layout   wgpu.BindGroupLayoutDescriptor
	VarNames map[int]string
}

// ReflectionResult is the output of Reflect: the folded descriptor set declarations
// across every stage passed in, their pool sizes, and (once CreateLayouts is called)
// the GPU bind group layout handles shared across every pipeline built from these stages.
type ReflectionResult struct {
	Sets               []Set
	PushConstantRanges []PushConstantRange
	PoolSizes          map[wgpu.BufferBindingType]int

	layouts map[int]*wgpu.BindGroupLayout
}

// Reflect folds the resource declarations of one or more compiled shader stages into a
// single descriptor-set-indexed view. A uniform buffer declared in both the vertex and
// fragment stage of a pipeline produces one Set entry with Visibility carrying both flags.
func Reflect(stages ...*Shader) (*ReflectionResult, error) {
	for _, s := range stages {
		if err := s.validate(); err != nil {
			return nil, err
		}
	}

	merged := make(map[int]map[uint32]*wgpu.BindGroupLayoutEntry)
	varNames := make(map[int]map[int]string)

	for _, s := range stages {
		for group, entries := range s.bindings {
			if merged[group] == nil {
				merged[group] = make(map[uint32]*wgpu.BindGroupLayoutEntry)
			}
			for _, entry := range entries {
				entry := entry
				if existing, ok := merged[group][entry.Binding]; ok {
					existing.Visibility |= entry.Visibility
					continue
				}
				merged[group][entry.Binding] = &entry
			}
		}
		for group, names := range s.varNames {
			if varNames[group] == nil {
				varNames[group] = make(map[int]string)
			}
			for binding, name := range names {
				varNames[group][binding] = name
			}
		}
	}

	groupIndices := make([]int, 0, len(merged))
	for g := range merged {
		groupIndices = append(groupIndices, g)
	}
	sort.Ints(groupIndices)

	result := &ReflectionResult{
		PoolSizes: make(map[wgpu.BufferBindingType]int),
		layouts:   make(map[int]*wgpu.BindGroupLayout),
	}

	for _, g := range groupIndices {
		entryMap := merged[g]
		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
		for _, e := range entryMap {
			entries = append(entries, *e)
			if e.Buffer.Type != wgpu.BufferBindingTypeUndefined {
				result.PoolSizes[e.Buffer.Type]++
			}
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Binding < entries[j].Binding })

		result.Sets = append(result.Sets, Set{
			Index: g,
			Layout: wgpu.BindGroupLayoutDescriptor{
				Label:   "",
				Entries: entries,
			},
			VarNames: varNames[g],
		})
	}

	return result, nil
}

// CreateLayouts creates (or returns the cached) GPU bind group layout for every set in
// the reflection result. Layouts are created once per shader combination and shared
// across every pipeline and descriptor manager built from it, per the spec's lifecycle
// rule that descriptor set layouts are owned by the shader, not by individual pipelines.
func (r *ReflectionResult) CreateLayouts(device *wgpu.Device) (map[int]*wgpu.BindGroupLayout, error) {
	for _, set := range r.Sets {
		if _, ok := r.layouts[set.Index]; ok {
			continue
		}
		layout, err := device.CreateBindGroupLayout(&set.Layout)
		if err != nil {
			return nil, err
		}
		r.layouts[set.Index] = layout
	}
	return r.layouts, nil
}

// Layout returns the cached GPU bind group layout for a set index, or nil if
// CreateLayouts has not been called yet.
func (r *ReflectionResult) Layout(set int) *wgpu.BindGroupLayout {
	return r.layouts[set]
}

// Set returns the folded binding declarations for a set index, or false if the
// reflected stages declared nothing at that index.
func (r *ReflectionResult) Set(index int) (Set, bool) {
	for _, s := range r.Sets {
		if s.Index == index {
			return s, true
		}
	}
	return Set{}, false
}

// Release releases every GPU bind group layout created by CreateLayouts.
func (r *ReflectionResult) Release() {
	for i, l := range r.layouts {
		if l != nil {
			l.Release()
		}
		delete(r.layouts, i)
	}
}
