package descriptor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ignisengine/ignis/engine/shader"
)

// ValidationError is returned by Validate (and, for bake-time checks that can only be
// discovered once, by Bake) instead of panicking — resource wiring mistakes are data,
// never a program-logic fault.
type ValidationError struct {
	DebugName string
	Set       int
	Binding   int
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("descriptor %q: set %d binding %d: %s", e.DebugName, e.Set, e.Binding, e.Reason)
}

// Spec configures a Manager's ownership range and behavior, matching
// DescriptorSetManagerSpec from the data model.
type Spec struct {
	Shader *shader.ReflectionResult
	// StartingSet and EndingSet bound the inclusive range of descriptor sets this
	// manager owns. Per convention sets 0-2 belong to a RenderPass, set 3 to a Material.
	StartingSet, EndingSet int
	// DefaultResources, when true, lets Validate and Bake accept a sampled-texture or
	// sampler binding that has no input set. No fallback resource is bound in its
	// place: that set's bind group stays nil for every slot until SetInput supplies
	// the input and the next Prepare for the slot builds it.
	DefaultResources bool
	DebugName        string
	// FrameCount is the number of frame-in-flight slots to bake descriptor sets for.
	FrameCount int
}

type declaration struct {
	binding int
	varName string
	entry   wgpu.BindGroupLayoutEntry
}

// Manager is the DescriptorSetManager: it resolves named inputs against a shader's
// reflected bindings in [StartingSet, EndingSet], validates compatibility, bakes one
// wgpu.BindGroup per (set, frame slot), and keeps them current at Prepare time.
type Manager struct {
	mu sync.Mutex

	spec Spec

	declarations map[int][]declaration // set -> ordered declarations
	inputs       map[string]Input      // binding var name -> bound input

	sets map[int][]*wgpu.BindGroup // set -> per-slot bind group

	// resourceHandles[slot][set][binding] records the identity resolved at the last
	// successful bake/prepare for that slot, used to detect later invalidation.
	resourceHandles map[int]map[int]map[int]any

	// invalidated[set][binding] marks a pending write discovered by Prepare (or
	// deferred at Bake because the resolved handle was null at that time).
	invalidated map[int]map[int]bool

	baked bool
}

// NewManager builds a Manager over the shader's declarations in [spec.StartingSet,
// spec.EndingSet]. Declarations for any set outside that range are ignored — they
// belong to a different manager (the RenderPass's or another Material's).
func NewManager(spec Spec) *Manager {
	m := &Manager{
		spec:            spec,
		inputs:          make(map[string]Input),
		sets:            make(map[int][]*wgpu.BindGroup),
		resourceHandles: make(map[int]map[int]map[int]any),
		invalidated:     make(map[int]map[int]bool),
	}
	m.declarations = buildDeclarations(spec.Shader, spec.StartingSet, spec.EndingSet)
	return m
}

func buildDeclarations(reflection *shader.ReflectionResult, startingSet, endingSet int) map[int][]declaration {
	out := make(map[int][]declaration)
	for set := startingSet; set <= endingSet; set++ {
		reflected, ok := reflection.Set(set)
		if !ok {
			continue
		}
		decls := make([]declaration, 0, len(reflected.Layout.Entries))
		for _, entry := range reflected.Layout.Entries {
			decls = append(decls, declaration{
				binding: int(entry.Binding),
				varName: reflected.VarNames[int(entry.Binding)],
				entry:   entry,
			})
		}
		sort.Slice(decls, func(i, j int) bool { return decls[i].binding < decls[j].binding })
		out[set] = decls
	}
	return out
}

// Rebind replaces the manager's shader reflection result and recomputes its
// declarations from the new layout, for a Dependent whose shader reloaded with
// possibly different bindings. Previously bound inputs (keyed by WGSL variable name)
// carry over unchanged; the caller must still Release and Bake to rebuild bind groups
// against the refreshed layout.
func (m *Manager) Rebind(reflection *shader.ReflectionResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spec.Shader = reflection
	m.declarations = buildDeclarations(reflection, m.spec.StartingSet, m.spec.EndingSet)
}

// SetInput binds name (the WGSL variable name from reflection) to input. Overwrites
// any prior binding for the same name.
func (m *Manager) SetInput(name string, input Input) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs[name] = input
}

// Validate checks every declared binding in range has a compatible, non-null (at slot
// 0) input. It never panics; all failures surface as a *ValidationError.
func (m *Manager) Validate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validateLocked()
}

func (m *Manager) validateLocked() error {
	for set := m.spec.StartingSet; set <= m.spec.EndingSet; set++ {
		for _, decl := range m.declarations[set] {
			input, ok := m.inputs[decl.varName]
			if !ok {
				if m.spec.DefaultResources && isSampledTextureOrSampler(decl.entry) {
					continue
				}
				return &ValidationError{DebugName: m.spec.DebugName, Set: set, Binding: decl.binding, Reason: "no input set for declared binding"}
			}
			if err := m.checkCompatible(set, decl, input); err != nil {
				return err
			}
			if _, ok := input.resolve(0); !ok {
				if arr, isArr := input.(*arrayInput); isArr {
					allNull := true
					for _, e := range arr.elements() {
						if _, ok := e.resolve(0); ok {
							allNull = false
							break
						}
					}
					if allNull && len(arr.elements()) > 0 {
						return &ValidationError{DebugName: m.spec.DebugName, Set: set, Binding: decl.binding, Reason: "array input slot 0 is entirely null"}
					}
					continue
				}
				return &ValidationError{DebugName: m.spec.DebugName, Set: set, Binding: decl.binding, Reason: "input slot 0 is null"}
			}
		}
	}
	return nil
}

func isSampledTextureOrSampler(entry wgpu.BindGroupLayoutEntry) bool {
	return entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined || entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined
}

func (m *Manager) checkCompatible(set int, decl declaration, input Input) error {
	rt := input.resourceType()
	entry := decl.entry

	switch {
	case entry.Buffer.Type == wgpu.BufferBindingTypeUniform:
		if rt != ResourceTypeUniformBuffer && rt != ResourceTypeUniformBufferSet {
			return &ValidationError{DebugName: m.spec.DebugName, Set: set, Binding: decl.binding, Reason: fmt.Sprintf("binding declares UniformBuffer, got %s", rt)}
		}
	case entry.Buffer.Type == wgpu.BufferBindingTypeStorage || entry.Buffer.Type == wgpu.BufferBindingTypeReadOnlyStorage:
		if rt != ResourceTypeStorageBuffer && rt != ResourceTypeStorageBufferSet {
			return &ValidationError{DebugName: m.spec.DebugName, Set: set, Binding: decl.binding, Reason: fmt.Sprintf("binding declares StorageBuffer, got %s", rt)}
		}
	case entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
		if rt != resourceTypeSampler && rt != ResourceTypeTexture2D && rt != ResourceTypeTextureCube {
			return &ValidationError{DebugName: m.spec.DebugName, Set: set, Binding: decl.binding, Reason: fmt.Sprintf("binding declares Sampler, got %s", rt)}
		}
	case entry.StorageTexture.Access != wgpu.StorageTextureAccessUndefined:
		if rt != ResourceTypeStorageImage && rt != ResourceTypeTextureCube {
			return &ValidationError{DebugName: m.spec.DebugName, Set: set, Binding: decl.binding, Reason: fmt.Sprintf("binding declares StorageImage, got %s", rt)}
		}
	case entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
		if rt != ResourceTypeTexture2D && rt != ResourceTypeTextureCube && rt != ResourceTypeStorageImage {
			return &ValidationError{DebugName: m.spec.DebugName, Set: set, Binding: decl.binding, Reason: fmt.Sprintf("binding declares SampledImage, got %s", rt)}
		}
		wantCube := entry.Texture.ViewDimension == wgpu.TextureViewDimensionCube || entry.Texture.ViewDimension == wgpu.TextureViewDimensionCubeArray
		if wantCube && rt == ResourceTypeTexture2D {
			return &ValidationError{DebugName: m.spec.DebugName, Set: set, Binding: decl.binding, Reason: "binding declares samplerCube, input is Texture2D"}
		}
		if !wantCube && rt == ResourceTypeTextureCube {
			return &ValidationError{DebugName: m.spec.DebugName, Set: set, Binding: decl.binding, Reason: "binding declares sampler2D, input is TextureCube"}
		}
	}
	return nil
}

// Bake computes the set count a Vulkan descriptor pool would need (the value is not
// logged or used — wgpu has no pool object), creates one wgpu.BindGroup per (set, slot) in range from the
// shader's cached layout, and records each resolved handle in resourceHandles. Writes
// whose resolved handle is null at bake time are deferred into invalidated; Prepare
// picks them up on the next call for that slot.
func (m *Manager) Bake(device *wgpu.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.validateLocked(); err != nil {
		return err
	}

	poolSets := (m.spec.EndingSet - m.spec.StartingSet + 1) * m.spec.FrameCount
	_ = poolSets // (owned set count) * F; wgpu allocates bind groups directly, no pool object to size.

	for set := m.spec.StartingSet; set <= m.spec.EndingSet; set++ {
		layout := m.spec.Shader.Layout(set)
		if layout == nil {
			continue
		}
		slots := make([]*wgpu.BindGroup, m.spec.FrameCount)
		for slot := 0; slot < m.spec.FrameCount; slot++ {
			bg, deferred, err := m.buildBindGroup(device, set, slot, layout)
			if err != nil {
				return err
			}
			slots[slot] = bg
			if deferred {
				m.markInvalidated(set, decls(m.declarations[set]))
			}
		}
		m.sets[set] = slots
	}

	m.baked = true
	return nil
}

func decls(ds []declaration) []int {
	out := make([]int, len(ds))
	for i, d := range ds {
		out[i] = d.binding
	}
	return out
}

func (m *Manager) markInvalidated(set int, bindings []int) {
	if m.invalidated[set] == nil {
		m.invalidated[set] = make(map[int]bool)
	}
	for _, b := range bindings {
		m.invalidated[set][b] = true
	}
}

// buildBindGroup resolves every declared binding in set for slot and creates a
// wgpu.BindGroup. If any resolved handle is null, the bind group is still created
// using a zero-valued entry is not possible (wgpu rejects a null resource in any
// entry) — instead the whole set/slot combination is left nil and deferred is true;
// Prepare must supply a resource before DescriptorSets(slot) can be used.
func (m *Manager) buildBindGroup(device *wgpu.Device, set, slot int, layout *wgpu.BindGroupLayout) (*wgpu.BindGroup, bool, error) {
	entries := make([]wgpu.BindGroupEntry, 0, len(m.declarations[set]))
	anyNull := false

	for _, decl := range m.declarations[set] {
		input := m.inputs[decl.varName]
		if input == nil {
			anyNull = true
			continue
		}
		if arr, ok := input.(*arrayInput); ok {
			arrEntries, ok := m.resolveArrayEntries(set, decl, arr, slot)
			if !ok {
				anyNull = true
				continue
			}
			entries = append(entries, arrEntries...)
			continue
		}
		entry, ok := m.resolveEntry(decl, input, slot)
		if !ok {
			anyNull = true
			continue
		}
		entry.Binding = uint32(decl.binding)
		entries = append(entries, entry)
		m.recordHandle(slot, set, decl.binding, input.identity(slot))
	}

	if anyNull {
		return nil, true, nil
	}

	bg, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   fmt.Sprintf("%s set %d slot %d", m.spec.DebugName, set, slot),
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, false, fmt.Errorf("descriptor %q: create bind group set %d slot %d: %w", m.spec.DebugName, set, slot, err)
	}
	return bg, false, nil
}

func (m *Manager) resolveEntry(decl declaration, input Input, slot int) (wgpu.BindGroupEntry, bool) {
	if decl.entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined {
		if tex, ok := input.(*textureInput); ok {
			return tex.pairedSampler().resolve(slot)
		}
	}
	return input.resolve(slot)
}

// resolveArrayEntries expands a bound arrayInput into one wgpu.BindGroupEntry per
// element. wgpu has no single binding that fans out to N resources the way a Vulkan
// descriptorCount>1 binding does, so an array input occupies decl.binding plus the
// N-1 consecutive bindings after it — the shader source must declare one WGSL binding
// per array element for this to line up with the reflected layout. Each element's
// resolved handle is recorded individually (at decl.binding+idx) so Prepare can detect
// a single element changing without touching the others. Returns false, deferring the
// whole set/slot like any other missing input, if any element resolves null.
func (m *Manager) resolveArrayEntries(set int, decl declaration, arr *arrayInput, slot int) ([]wgpu.BindGroupEntry, bool) {
	elements := arr.elements()
	entries := make([]wgpu.BindGroupEntry, 0, len(elements))
	for idx, el := range elements {
		entry, ok := el.resolve(slot)
		if !ok {
			return nil, false
		}
		entry.Binding = uint32(decl.binding + idx)
		entries = append(entries, entry)
	}
	for idx, el := range elements {
		m.recordHandle(slot, set, decl.binding+idx, el.identity(slot))
	}
	return entries, true
}

func (m *Manager) recordHandle(slot, set, binding int, id any) {
	if m.resourceHandles[slot] == nil {
		m.resourceHandles[slot] = make(map[int]map[int]any)
	}
	if m.resourceHandles[slot][set] == nil {
		m.resourceHandles[slot][set] = make(map[int]any)
	}
	m.resourceHandles[slot][set][binding] = id
}

// Prepare walks every input for the given slot; any whose resolved identity differs
// from the one recorded at the last bake/prepare is staged for a rebuild. If nothing
// changed, Prepare returns immediately. Otherwise the whole bind group for the
// affected (set, slot) is recreated — wgpu has no per-binding descriptor patch.
func (m *Manager) Prepare(device *wgpu.Device, slot int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.baked {
		return fmt.Errorf("descriptor %q: Prepare called before Bake", m.spec.DebugName)
	}

	dirtySets := make(map[int]bool)
	for set := m.spec.StartingSet; set <= m.spec.EndingSet; set++ {
		for _, decl := range m.declarations[set] {
			input := m.inputs[decl.varName]
			if input == nil {
				continue
			}
			if arr, ok := input.(*arrayInput); ok {
				for idx, el := range arr.elements() {
					current := el.identity(slot)
					prior := m.resourceHandles[slot][set][decl.binding+idx]
					if current != prior {
						m.markInvalidated(set, []int{decl.binding + idx})
						dirtySets[set] = true
					}
				}
				continue
			}
			current := input.identity(slot)
			prior := m.resourceHandles[slot][set][decl.binding]
			if current != prior {
				m.markInvalidated(set, []int{decl.binding})
				dirtySets[set] = true
			}
		}
	}

	if len(dirtySets) == 0 {
		return nil
	}

	for set := range dirtySets {
		layout := m.spec.Shader.Layout(set)
		if layout == nil {
			continue
		}
		bg, deferred, err := m.buildBindGroup(device, set, slot, layout)
		if err != nil {
			return err
		}
		if !deferred {
			if old := m.sets[set][slot]; old != nil {
				old.Release()
			}
			m.sets[set][slot] = bg
			delete(m.invalidated, set)
		}
	}

	return nil
}

// DescriptorSets returns the baked bind group for every owned set at the given frame
// slot, ordered by ascending set index.
func (m *Manager) DescriptorSets(slot int) []*wgpu.BindGroup {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*wgpu.BindGroup, 0, m.spec.EndingSet-m.spec.StartingSet+1)
	for set := m.spec.StartingSet; set <= m.spec.EndingSet; set++ {
		slots := m.sets[set]
		if slot < len(slots) {
			out = append(out, slots[slot])
		}
	}
	return out
}

// Release releases every baked bind group.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for set, slots := range m.sets {
		for i, bg := range slots {
			if bg != nil {
				bg.Release()
			}
			slots[i] = nil
		}
		delete(m.sets, set)
	}
	m.baked = false
}
