package asset

import (
	"fmt"
	"testing"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
)

// fakeImporter never touches device/queue — it hands back a canned Asset (or
// error) per handle, so Manager's load-dispatch logic can be exercised without
// a real GPU.
type fakeImporter struct {
	result map[Handle]Asset
	err    map[Handle]error
}

func (f *fakeImporter) Import(_ *wgpu.Device, _ *wgpu.Queue, _ Type, handle Handle, _ string) (Asset, error) {
	if err, ok := f.err[handle]; ok {
		return nil, err
	}
	return f.result[handle], nil
}

var _ Importer = &fakeImporter{}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// TestAsyncLoad is scenario B: GetAssetAsync on a registered-but-unloaded
// handle returns (nil, false) and marks the registry Loading; once the
// background load lands and SyncWithAssetThread drains it, the asset is
// resident and the registry reports Ready.
func TestAsyncLoad(t *testing.T) {
	const handle = Handle(42)

	reg := NewRegistry()
	reg.Register(MetaData{Handle: handle, Type: TypeTexture, RelativePath: "textures/brick.png"})

	want := &Texture2D{assetBase: assetBase{handle: handle}}
	imp := &fakeImporter{result: map[Handle]Asset{handle: want}}

	m := NewManager(nil, nil, "/assets", reg, imp)
	defer m.Release()

	if a := m.GetAsset(handle); a != nil {
		t.Fatalf("asset should not be resident before any load request")
	}

	a, ready := m.GetAssetAsync(handle)
	if ready || a != nil {
		t.Fatalf("first GetAssetAsync call should return (nil, false), got (%v, %v)", a, ready)
	}

	meta, _ := reg.Lookup(handle)
	if meta.Status != StatusLoading {
		t.Fatalf("registry status should be Loading right after the request, got %v", meta.Status)
	}

	// A second request for the same in-flight handle must be coalesced, not
	// submit a second background task.
	if a, ready := m.GetAssetAsync(handle); ready || a != nil {
		t.Fatalf("coalesced request should also return (nil, false), got (%v, %v)", a, ready)
	}

	waitUntil(t, 2*time.Second, func() bool {
		m.SyncWithAssetThread()
		return m.GetAsset(handle) != nil
	})

	meta, _ = reg.Lookup(handle)
	if meta.Status != StatusReady || !meta.IsDataLoaded {
		t.Fatalf("registry should report Ready/IsDataLoaded after sync, got %+v", meta)
	}

	if a, ready := m.GetAssetAsync(handle); !ready || a == nil {
		t.Fatalf("once resident, GetAssetAsync should return the asset synchronously, got (%v, %v)", a, ready)
	}
}

// TestAsyncLoadFailureMarksRegistryInvalid checks that a failed import (the
// fake importer returns a generic error) marks the registry entry Invalid
// rather than leaving it stuck in Loading forever.
func TestAsyncLoadFailureMarksRegistryInvalid(t *testing.T) {
	const handle = Handle(7)

	reg := NewRegistry()
	reg.Register(MetaData{Handle: handle, Type: TypeTexture, RelativePath: "textures/missing.png"})

	imp := &fakeImporter{err: map[Handle]error{handle: fmt.Errorf("boom")}}

	m := NewManager(nil, nil, "/assets", reg, imp)
	defer m.Release()

	m.GetAssetAsync(handle)

	waitUntil(t, 2*time.Second, func() bool {
		m.SyncWithAssetThread()
		meta, _ := reg.Lookup(handle)
		return meta.Status == StatusInvalid
	})

	if a := m.GetAsset(handle); a != nil {
		t.Fatalf("a failed load must not populate the live set")
	}
}
