package descriptor

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ignisengine/ignis/engine/shader"
)

// fakeInput is a minimal Input whose resourceType is fixed at construction and
// whose resolve always reports a non-null slot 0, so property/compatibility
// tests don't need a real resource.Buffer/Texture to exercise checkCompatible.
type fakeInput struct {
	rt ResourceType
}

func (f *fakeInput) resourceType() ResourceType { return f.rt }
func (f *fakeInput) resolve(int) (wgpu.BindGroupEntry, bool) {
	return wgpu.BindGroupEntry{}, true
}
func (f *fakeInput) identity(int) any { return f.rt }

var _ Input = &fakeInput{}

func uniformEntry(binding uint32) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{Binding: binding, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}}
}

func storageEntry(binding uint32) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{Binding: binding, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}}
}

func samplerEntry(binding uint32) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{Binding: binding, Sampler: wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering}}
}

func sampled2DEntry(binding uint32) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{Binding: binding, Texture: wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeFloat, ViewDimension: wgpu.TextureViewDimension2D}}
}

func sampledCubeEntry(binding uint32) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{Binding: binding, Texture: wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeFloat, ViewDimension: wgpu.TextureViewDimensionCube}}
}

func storageImageEntry(binding uint32) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{Binding: binding, StorageTexture: wgpu.StorageTextureBindingLayout{Access: wgpu.StorageTextureAccessWriteOnly}}
}

// TestCompatibilityTable is testable property 5: for every pair of declared
// binding kind and bound ResourceType, checkCompatible's verdict must match
// the §4.5 compatibility table.
func TestCompatibilityTable(t *testing.T) {
	cases := []struct {
		name    string
		entry   wgpu.BindGroupLayoutEntry
		rt      ResourceType
		wantErr bool
	}{
		{"uniform<-UniformBuffer", uniformEntry(0), ResourceTypeUniformBuffer, false},
		{"uniform<-UniformBufferSet", uniformEntry(0), ResourceTypeUniformBufferSet, false},
		{"uniform<-StorageBuffer", uniformEntry(0), ResourceTypeStorageBuffer, true},
		{"storage<-StorageBuffer", storageEntry(0), ResourceTypeStorageBuffer, false},
		{"storage<-StorageBufferSet", storageEntry(0), ResourceTypeStorageBufferSet, false},
		{"storage<-UniformBuffer", storageEntry(0), ResourceTypeUniformBuffer, true},
		{"sampler<-Sampler", samplerEntry(0), resourceTypeSampler, false},
		{"sampler<-Texture2D", samplerEntry(0), ResourceTypeTexture2D, false},
		{"sampler<-TextureCube", samplerEntry(0), ResourceTypeTextureCube, false},
		{"sampler<-UniformBuffer", samplerEntry(0), ResourceTypeUniformBuffer, true},
		{"sampled2D<-Texture2D", sampled2DEntry(0), ResourceTypeTexture2D, false},
		{"sampled2D<-TextureCube", sampled2DEntry(0), ResourceTypeTextureCube, true},
		{"sampledCube<-TextureCube", sampledCubeEntry(0), ResourceTypeTextureCube, false},
		{"sampledCube<-Texture2D", sampledCubeEntry(0), ResourceTypeTexture2D, true},
		{"storageImage<-StorageImage", storageImageEntry(0), ResourceTypeStorageImage, false},
		{"storageImage<-TextureCube", storageImageEntry(0), ResourceTypeTextureCube, false},
		{"storageImage<-Texture2D", storageImageEntry(0), ResourceTypeTexture2D, true},
	}

	m := &Manager{spec: Spec{DebugName: "test"}}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := m.checkCompatible(0, declaration{binding: int(c.entry.Binding), entry: c.entry}, &fakeInput{rt: c.rt})
			if (err != nil) != c.wantErr {
				t.Fatalf("checkCompatible(%v, %v) error = %v, wantErr %v", c.entry, c.rt, err, c.wantErr)
			}
		})
	}
}

// TestSetRangeOwnership is testable property 4: sets outside [StartingSet,
// EndingSet] are never allocated or written by a given manager.
func TestSetRangeOwnership(t *testing.T) {
	refl := &shader.ReflectionResult{
		Sets: []shader.Set{
			{Index: 0, Layout: wgpu.BindGroupLayoutDescriptor{Entries: []wgpu.BindGroupLayoutEntry{uniformEntry(0)}}, VarNames: map[int]string{0: "camera"}},
			{Index: 1, Layout: wgpu.BindGroupLayoutDescriptor{Entries: []wgpu.BindGroupLayoutEntry{uniformEntry(0)}}, VarNames: map[int]string{0: "lighting"}},
			{Index: 3, Layout: wgpu.BindGroupLayoutDescriptor{Entries: []wgpu.BindGroupLayoutEntry{uniformEntry(0)}}, VarNames: map[int]string{0: "material"}},
		},
	}

	m := NewManager(Spec{Shader: refl, StartingSet: 0, EndingSet: 1, DebugName: "renderpass"})

	if _, ok := m.declarations[0]; !ok {
		t.Fatalf("set 0 is within range and should have declarations")
	}
	if _, ok := m.declarations[1]; !ok {
		t.Fatalf("set 1 is within range and should have declarations")
	}
	if _, ok := m.declarations[3]; ok {
		t.Fatalf("set 3 is outside [0,1] and must not be owned by this manager")
	}

	materialMgr := NewManager(Spec{Shader: refl, StartingSet: 3, EndingSet: 3, DebugName: "material"})
	if _, ok := materialMgr.declarations[0]; ok {
		t.Fatalf("a set-3-only manager must not own set 0")
	}
	if decls, ok := materialMgr.declarations[3]; !ok || len(decls) != 1 {
		t.Fatalf("a set-3-only manager should own exactly set 3's declaration, got %v", materialMgr.declarations)
	}
}
