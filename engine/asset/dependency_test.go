package asset

import "testing"

// countingDependent is a minimal Asset that records how many times
// OnDependencyUpdated was called and for which source handle, so a test can
// assert exact-once delivery per reload.
type countingDependent struct {
	assetBase
	calls  int
	lastOf Handle
}

func (c *countingDependent) Type() Type { return TypeStaticMesh }

func (c *countingDependent) OnDependencyUpdated(source Handle) {
	c.calls++
	c.lastOf = source
}

// TestDependencyReloadNotifiesEachDependentExactlyOnce is testable property 7:
// reloading a source asset triggers on_dependency_updated on every registered
// dependent exactly once per reload, regardless of dependency fan-in.
func TestDependencyReloadNotifiesEachDependentExactlyOnce(t *testing.T) {
	m := &manager{
		registry:   NewRegistry(),
		live:       make(map[Handle]Asset),
		inFlight:   make(map[Handle]bool),
		dependents: make(map[Handle][]Handle),
	}

	source := Handle(100)
	m.registry.Register(MetaData{Handle: source, Type: TypeMeshSource, RelativePath: "meshes/cube.gltf"})

	deps := make([]*countingDependent, 5)
	for i := range deps {
		h := Handle(200 + i)
		d := &countingDependent{assetBase: assetBase{handle: h}}
		deps[i] = d
		m.live[h] = d
		m.AddDependent(source, h)
	}

	// A second AddDependent call for the same pair must not double-register —
	// fan-in from multiple callers referencing the same dependency shouldn't
	// duplicate notifications.
	m.AddDependent(source, deps[0].handle)

	m.applyResult(loadResult{handle: source, asset: &MeshSource{assetBase: assetBase{handle: source}}})

	for i, d := range deps {
		if d.calls != 1 {
			t.Fatalf("dependent %d: got %d calls, want exactly 1", i, d.calls)
		}
		if d.lastOf != source {
			t.Fatalf("dependent %d: notified of %v, want %v", i, d.lastOf, source)
		}
	}

	// A second reload must notify again, still exactly once per dependent.
	m.applyResult(loadResult{handle: source, asset: &MeshSource{assetBase: assetBase{handle: source}}})
	for i, d := range deps {
		if d.calls != 2 {
			t.Fatalf("dependent %d: got %d calls after second reload, want 2", i, d.calls)
		}
	}
}

func TestDependencyReloadFailureDoesNotNotify(t *testing.T) {
	m := &manager{
		registry:   NewRegistry(),
		live:       make(map[Handle]Asset),
		inFlight:   make(map[Handle]bool),
		dependents: make(map[Handle][]Handle),
	}

	source := Handle(1)
	m.registry.Register(MetaData{Handle: source, Type: TypeTexture, RelativePath: "textures/brick.png"})

	dep := &countingDependent{assetBase: assetBase{handle: Handle(2)}}
	m.live[dep.handle] = dep
	m.AddDependent(source, dep.handle)

	m.applyResult(loadResult{handle: source, err: errNotFoundForTest{}})
	if dep.calls != 0 {
		t.Fatalf("a failed reload must not notify dependents, got %d calls", dep.calls)
	}
}

type errNotFoundForTest struct{}

func (errNotFoundForTest) Error() string { return "not found" }
