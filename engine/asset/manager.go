package asset

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// loaderQueueSize bounds how many import requests can be outstanding on the
// background thread at once; a request beyond this blocks the submitting
// goroutine rather than growing without bound.
const loaderQueueSize = 256

// loaderTaskTimeout is the per-task budget the worker pool enforces — generous
// since model/texture imports do real file and GPU-upload work.
const loaderTaskTimeout = 10 * time.Second

// Manager is the render-thread-facing asset API (§4.10): synchronous lookup for
// already-resident assets, async (enqueue, then return nil until resident) lookup
// for everything else — no placeholder asset is handed out while a load runs —
// and the sync point that moves completed background loads into
// the live set. A Manager owns exactly one background loader thread, matching
// the spec's "single background thread" contract — sized by giving the worker
// pool a single worker rather than by hand-rolling a dedicated goroutine, since
// the pool already provides the queue/timeout machinery the teacher relies on.
type Manager interface {
	// GetAsset returns the live asset for handle if resident, or nil if not. It
	// never triggers a load — use GetAssetAsync for that.
	GetAsset(handle Handle) Asset
	// GetAssetAsync returns the live asset and true if already resident.
	// Otherwise it enqueues a background load (coalesced with any load already
	// in flight for handle), marks the registry entry Loading, and returns
	// (nil, false).
	GetAssetAsync(handle Handle) (Asset, bool)
	// SyncWithAssetThread drains completed background loads into the live set.
	// Call once per frame from the render thread, before any draw call that
	// might reference a just-finished load.
	SyncWithAssetThread()
	// AddDependent records that dependentHandle's asset should be notified via
	// OnDependencyUpdated whenever sourceHandle finishes a (re)load.
	AddDependent(sourceHandle, dependentHandle Handle)
	// Reload forces handle to re-import from disk, then — once the reload lands
	// via SyncWithAssetThread — notifies every registered dependent exactly once.
	Reload(handle Handle) error
	// Registry exposes the backing Registry for editor/registry-file operations.
	Registry() Registry
	// Release discards loads that have already completed and releases every
	// resident GPU-backed asset. It does not wait for a load still running on the
	// loader worker.
	Release()
}

type loadResult struct {
	handle Handle
	asset  Asset
	err    error
}

type manager struct {
	mu sync.Mutex

	registry Registry
	importer Importer
	device   *wgpu.Device
	queue    *wgpu.Queue
	root     string

	live       map[Handle]Asset
	inFlight   map[Handle]bool
	dependents map[Handle][]Handle

	pool      worker.DynamicWorkerPool
	completed chan loadResult
}

// NewManager returns a Manager whose background loader imports files relative to
// root using reg for metadata and imp for the actual file parsing/GPU upload.
func NewManager(device *wgpu.Device, queue *wgpu.Queue, root string, reg Registry, imp Importer) Manager {
	return &manager{
		registry:   reg,
		importer:   imp,
		device:     device,
		queue:      queue,
		root:       root,
		live:       make(map[Handle]Asset),
		inFlight:   make(map[Handle]bool),
		dependents: make(map[Handle][]Handle),
		pool:       worker.NewDynamicWorkerPool(1, loaderQueueSize, loaderTaskTimeout),
		completed:  make(chan loadResult, loaderQueueSize),
	}
}

func (m *manager) Registry() Registry { return m.registry }

func (m *manager) GetAsset(handle Handle) Asset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live[handle]
}

func (m *manager) GetAssetAsync(handle Handle) (Asset, bool) {
	m.mu.Lock()
	if a, ok := m.live[handle]; ok {
		m.mu.Unlock()
		return a, true
	}
	if m.inFlight[handle] {
		m.mu.Unlock()
		return nil, false
	}
	meta, ok := m.registry.Lookup(handle)
	if !ok {
		m.mu.Unlock()
		return nil, false
	}
	m.inFlight[handle] = true
	m.mu.Unlock()

	m.registry.SetStatus(handle, StatusLoading, false)
	m.submitLoad(handle, meta)
	return nil, false
}

// submitLoad enqueues handle's import on the single-worker background pool. The
// task itself never touches m.mu — it only calls into the Importer and pushes the
// outcome onto m.completed, which SyncWithAssetThread drains on the render
// thread. This keeps every Registry/live-map mutation on a thread that already
// holds the lock, rather than from inside the pool worker.
func (m *manager) submitLoad(handle Handle, meta MetaData) {
	m.pool.SubmitTask(worker.Task{
		ID: int(handle),
		Do: func() (any, error) {
			path := filepath.Join(m.root, meta.RelativePath)
			a, err := m.importer.Import(m.device, m.queue, meta.Type, handle, path)
			m.completed <- loadResult{handle: handle, asset: a, err: err}
			return nil, nil
		},
	})
}

// SyncWithAssetThread drains every completed load currently buffered and applies
// it: a successful import replaces the live entry and marks the registry Ready;
// a failed one flags Missing (file not found) or Invalid (parse/GPU error) and
// leaves the previous live entry, if any, untouched so a stale asset keeps
// rendering rather than vanishing. Each dependent is notified exactly once per
// completed reload.
func (m *manager) SyncWithAssetThread() {
	for {
		select {
		case res := <-m.completed:
			m.applyResult(res)
		default:
			return
		}
	}
}

func (m *manager) applyResult(res loadResult) {
	m.mu.Lock()
	delete(m.inFlight, res.handle)

	if res.err != nil {
		m.mu.Unlock()
		log.Printf("asset: load %s failed: %v", res.handle, res.err)
		flags := FlagInvalid
		if isNotExist(res.err) {
			flags = FlagMissing
		}
		if existing := m.GetAsset(res.handle); existing != nil {
			existing.SetFlags(existing.Flags() | flags)
		}
		m.registry.SetStatus(res.handle, StatusInvalid, false)
		return
	}

	m.live[res.handle] = res.asset
	dependents := append([]Handle(nil), m.dependents[res.handle]...)
	m.mu.Unlock()

	m.registry.SetStatus(res.handle, StatusReady, true)

	for _, dep := range dependents {
		if depAsset := m.GetAsset(dep); depAsset != nil {
			depAsset.OnDependencyUpdated(res.handle)
		}
	}
}

func (m *manager) AddDependent(sourceHandle, dependentHandle Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.dependents[sourceHandle] {
		if h == dependentHandle {
			return
		}
	}
	m.dependents[sourceHandle] = append(m.dependents[sourceHandle], dependentHandle)
}

func (m *manager) Reload(handle Handle) error {
	meta, ok := m.registry.Lookup(handle)
	if !ok {
		return fmt.Errorf("asset: reload %s: not registered", handle)
	}

	m.mu.Lock()
	if m.inFlight[handle] {
		m.mu.Unlock()
		return nil
	}
	m.inFlight[handle] = true
	m.mu.Unlock()

	m.registry.SetStatus(handle, StatusLoading, false)
	m.submitLoad(handle, meta)
	return nil
}

// Release drains the results of loads that have already completed (discarding
// them — their GPU objects, if any landed, are released immediately) and releases
// every resident asset that owns GPU resources. A load still running on the
// worker is not waited for; its result is left in the completed channel.
func (m *manager) Release() {
	m.mu.Lock()
	live := m.live
	m.live = make(map[Handle]Asset)
	m.mu.Unlock()

	drainCompleted(m.completed)

	for _, a := range live {
		releaseAsset(a)
	}
}

func drainCompleted(ch chan loadResult) {
	for {
		select {
		case res := <-ch:
			if res.asset != nil {
				releaseAsset(res.asset)
			}
		default:
			return
		}
	}
}

// releasableAsset is implemented by every Asset variant that owns GPU resources.
// StaticMesh and Font hold no GPU objects of their own, so they don't implement
// it; MaterialAsset does, releasing its material.Material.
type releasableAsset interface {
	Release()
}

func releaseAsset(a Asset) {
	if r, ok := a.(releasableAsset); ok {
		r.Release()
	}
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

var _ Manager = &manager{}
