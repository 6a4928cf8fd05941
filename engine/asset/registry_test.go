package asset

import (
	"reflect"
	"sort"
	"testing"
)

// TestRegistryRoundTrip is testable property 8: serialize(registry);
// deserialize(x) == registry for every stable (non-memory-only) entry, while
// memory-only entries are dropped on serialize.
func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry()

	stable := []MetaData{
		{Handle: Handle(1), Type: TypeMeshSource, RelativePath: "meshes/cube.gltf", Status: StatusReady, IsDataLoaded: true},
		{Handle: Handle(2), Type: TypeTexture, RelativePath: "textures/brick.png", Status: StatusReady, IsDataLoaded: true},
		{Handle: Handle(42), Type: TypeMaterial, RelativePath: "materials/brick.imaterial", Status: StatusNone},
	}
	for _, m := range stable {
		r.Register(m)
	}
	// Memory-only entries must never survive a round trip.
	r.Register(MetaData{Handle: Handle(99), Type: TypeStaticMesh, IsMemoryOnly: true})

	data := r.Marshal()

	restored := NewRegistry()
	if err := restored.Load(data); err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := restored.All()
	want := append([]MetaData(nil), stable...)
	sort.Slice(want, func(i, j int) bool { return want[i].Handle < want[j].Handle })

	// Load doesn't carry Status/IsDataLoaded (not part of the file format), so
	// compare only the persisted fields.
	if len(got) != len(want) {
		t.Fatalf("entry count: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Handle != want[i].Handle || got[i].Type != want[i].Type || got[i].RelativePath != want[i].RelativePath {
			t.Fatalf("entry %d: got %+v, want handle/type/path from %+v", i, got[i], want[i])
		}
	}

	if _, ok := restored.Lookup(Handle(99)); ok {
		t.Fatalf("memory-only entry should not survive a round trip")
	}
}

func TestRegistryMarshalAscendingHandleOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(MetaData{Handle: Handle(30), Type: TypeTexture, RelativePath: "c.png"})
	r.Register(MetaData{Handle: Handle(10), Type: TypeTexture, RelativePath: "a.png"})
	r.Register(MetaData{Handle: Handle(20), Type: TypeTexture, RelativePath: "b.png"})

	all := r.All()
	handles := make([]Handle, len(all))
	for i, m := range all {
		handles[i] = m.Handle
	}
	if !reflect.DeepEqual(handles, []Handle{10, 20, 30}) {
		t.Fatalf("All() not in ascending handle order: %v", handles)
	}
}

func TestRegistryLoadMissingAssetsKeyIsFatal(t *testing.T) {
	r := NewRegistry()
	err := r.Load([]byte("NotAssets:\n  - Handle: 01\n"))
	if err == nil {
		t.Fatalf("expected an error for a file missing the top-level Assets key")
	}
}

func TestRegistryLoadSkipsUnrecognizedType(t *testing.T) {
	r := NewRegistry()
	data := []byte(
		"Assets:\n" +
			"  - Handle: 0000000000000001\n" +
			"    FilePath: a.gltf\n" +
			"    Type: MeshSource\n" +
			"  - Handle: 0000000000000002\n" +
			"    FilePath: b.unknown\n" +
			"    Type: SomeFutureType\n",
	)
	if err := r.Load(data); err != nil {
		t.Fatalf("Load should skip the unrecognized entry, not fail: %v", err)
	}
	if _, ok := r.Lookup(Handle(1)); !ok {
		t.Fatalf("known-type entry should still be registered")
	}
	if _, ok := r.Lookup(Handle(2)); ok {
		t.Fatalf("unrecognized-type entry should have been skipped")
	}
}

func TestRegistryResolveByPath(t *testing.T) {
	r := NewRegistry()
	r.Register(MetaData{Handle: Handle(7), Type: TypeTexture, RelativePath: "textures/brick.png"})

	h, ok := r.Resolve("textures/brick.png")
	if !ok || h != Handle(7) {
		t.Fatalf("Resolve: got (%v, %v), want (7, true)", h, ok)
	}

	if _, ok := r.Resolve("textures/missing.png"); ok {
		t.Fatalf("Resolve should report false for an unregistered path")
	}
}
