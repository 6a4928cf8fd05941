// Package device owns the wgpu instance, adapter, logical device, and queue — the
// WebGPU analogue of a Vulkan physical/logical device pair — plus the per-frame-slot
// deferred-release queue every other engine package schedules GPU object destruction
// through rather than releasing immediately while the GPU may still be reading them.
package device

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// Releasable is any wgpu object with a Release method, accepted by EnqueueRelease.
type Releasable interface {
	Release()
}

// Spec configures device creation.
type Spec struct {
	Surface              *wgpu.SurfaceDescriptor
	ForceFallbackAdapter bool
	Label                string
	// MaxBindGroups raises DefaultLimits().MaxBindGroups when a shader combination
	// needs more than the WebGPU spec default of 4 (RenderPass sets 0-2 and Material set 3
	// use all four; a pipeline's push-constant substitute group is a fifth — see
	// engine/descriptor.Manager's set convention and engine/pipeline.Pipeline.PushConstantSet).
	MaxBindGroups uint32
	// FrameCount is the number of frames that may be in flight at once, bounding the
	// deferred-release queue's slot count.
	FrameCount int
}

// Device wraps a wgpu instance/adapter/device/queue and tracks, per frame-in-flight
// slot, GPU objects pending release once that slot's prior frame is known complete.
type Device struct {
	mu sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	frameCount int
	frameSlot  int

	pendingRelease [][]Releasable
}

// New creates the instance, surface, adapter, and logical device, raising MaxBindGroups
// above the WebGPU default when spec.MaxBindGroups is set.
func New(spec Spec) (*Device, error) {
	runtime.LockOSThread()

	instance := wgpu.CreateInstance(nil)
	surface := instance.CreateSurface(spec.Surface)

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: spec.ForceFallbackAdapter,
		CompatibleSurface:    surface,
	})
	if err != nil {
		return nil, fmt.Errorf("device: request adapter: %w", err)
	}

	limits := wgpu.DefaultLimits()
	if spec.MaxBindGroups > limits.MaxBindGroups {
		limits.MaxBindGroups = spec.MaxBindGroups
	}

	label := spec.Label
	if label == "" {
		label = "Main Device"
	}

	gpuDevice, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          label,
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		return nil, fmt.Errorf("device: request device: %w", err)
	}

	frameCount := spec.FrameCount
	if frameCount <= 0 {
		frameCount = 2
	}

	return &Device{
		instance:       instance,
		adapter:        adapter,
		device:         gpuDevice,
		queue:          gpuDevice.GetQueue(),
		surface:        surface,
		frameCount:     frameCount,
		pendingRelease: make([][]Releasable, frameCount),
	}, nil
}

func (d *Device) Instance() *wgpu.Instance { return d.instance }
func (d *Device) Adapter() *wgpu.Adapter   { return d.adapter }
func (d *Device) Device() *wgpu.Device     { return d.device }
func (d *Device) Queue() *wgpu.Queue       { return d.queue }
func (d *Device) Surface() *wgpu.Surface   { return d.surface }
func (d *Device) FrameCount() int          { return d.frameCount }
func (d *Device) FrameSlot() int           { return d.frameSlot }

// HasSeparateComputeQueue reports whether dispatches obtained with a standalone
// compute command buffer run on hardware distinct from the graphics queue. wgpu
// exposes exactly one queue per device, so this is always false today — a
// standalone-dispatch caller still requests one explicitly through
// ComputeCommandEncoder, it just lands on the same *wgpu.Queue as everything else.
func (d *Device) HasSeparateComputeQueue() bool { return false }

// ComputeCommandEncoder is the standalone-dispatch counterpart to CommandEncoder,
// used when a compute dispatch is not recorded as part of a larger graphics command
// buffer. It does not consult HasSeparateComputeQueue: it returns the same kind of
// encoder as CommandEncoder, and both paths submit to the same *wgpu.Queue.
func (d *Device) ComputeCommandEncoder(label string) (*wgpu.CommandEncoder, error) {
	return d.CommandEncoder(label)
}

// CommandEncoder creates a new wgpu command encoder. Vulkan separates command-pool
// allocation from recording; wgpu folds both into one call, so there is no pool
// object to reset here — the encoder itself is the per-frame transient allocation.
func (d *Device) CommandEncoder(label string) (*wgpu.CommandEncoder, error) {
	return d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
}

// Submit finishes encoder into a command buffer and submits it to the queue,
// releasing both the buffer and the encoder afterward.
func (d *Device) Submit(encoder *wgpu.CommandEncoder) error {
	buf, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return fmt.Errorf("device: finish command encoder: %w", err)
	}
	d.queue.Submit(buf)
	buf.Release()
	encoder.Release()
	return nil
}

// EnqueueRelease defers obj's Release call until this frame slot comes back around
// after FrameCount further BeginFrameSlot calls — the point at which the GPU is known
// to have finished consuming whatever command buffers referenced obj.
func (d *Device) EnqueueRelease(obj Releasable) {
	if obj == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingRelease[d.frameSlot] = append(d.pendingRelease[d.frameSlot], obj)
}

// BeginFrameSlot advances to the next frame-in-flight slot, draining and releasing
// every object enqueued against that slot on its prior occupancy before returning it.
func (d *Device) BeginFrameSlot() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.frameSlot = (d.frameSlot + 1) % d.frameCount
	pending := d.pendingRelease[d.frameSlot]
	for _, obj := range pending {
		obj.Release()
	}
	d.pendingRelease[d.frameSlot] = pending[:0]
	return d.frameSlot
}

// Release drains every pending-release slot immediately and releases the device, adapter,
// surface, and instance. Call only once nothing further will reference this Device.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for slot, pending := range d.pendingRelease {
		for _, obj := range pending {
			obj.Release()
		}
		d.pendingRelease[slot] = nil
	}

	if d.surface != nil {
		d.surface.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
}
