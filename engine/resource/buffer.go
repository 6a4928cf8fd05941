// Package resource implements the GPU-backed buffer, texture, and sampler objects that
// the render graph core binds through engine/descriptor: uniform and storage buffers
// (plain and per-frame-slot sets), vertex/index buffers, 2D and cube textures, image
// views, and samplers.
package resource

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Buffer is a single GPU buffer created HOST_VISIBLE+HOST_COHERENT, suitable for small,
// frequently-updated data such as uniforms and per-instance storage arrays.
type Buffer struct {
	label string
	buf   *wgpu.Buffer
	size  uint64
}

// NewUniformBuffer creates a buffer usable as a uniform binding.
func NewUniformBuffer(device *wgpu.Device, label string, size uint64) (*Buffer, error) {
	return newBuffer(device, label, size, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
}

// NewStorageBuffer creates a buffer usable as a storage binding.
func NewStorageBuffer(device *wgpu.Device, label string, size uint64) (*Buffer, error) {
	return newBuffer(device, label, size, wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst)
}

func newBuffer(device *wgpu.Device, label string, size uint64, usage wgpu.BufferUsage) (*Buffer, error) {
	if size == 0 {
		size = 16
	}
	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("resource: create buffer %q: %w", label, err)
	}
	return &Buffer{label: label, buf: buf, size: size}, nil
}

// Handle returns the underlying GPU buffer, used by the descriptor manager as the
// identity compared at Prepare-time to detect invalidation.
func (b *Buffer) Handle() *wgpu.Buffer { return b.buf }

// Size returns the buffer's byte size.
func (b *Buffer) Size() uint64 { return b.size }

// SetData maps, copies, and unmaps data at the given byte offset. wgpu's queue-level
// WriteBuffer already performs the staging copy; there is no separate map/unmap step
// to expose at this level.
func (b *Buffer) SetData(queue *wgpu.Queue, data []byte, offset uint64) {
	if b == nil || b.buf == nil || len(data) == 0 {
		return
	}
	queue.WriteBuffer(b.buf, offset, data)
}

// Release releases the underlying GPU buffer.
func (b *Buffer) Release() {
	if b == nil || b.buf == nil {
		return
	}
	b.buf.Release()
	b.buf = nil
}

// BufferSet duplicates a Buffer once per frame-in-flight slot, so per-frame writes
// never race against the GPU's in-flight reads of a previous frame's copy.
type BufferSet struct {
	label string
	slots []*Buffer
}

// NewUniformBufferSet creates frameCount uniform buffer copies.
func NewUniformBufferSet(device *wgpu.Device, label string, size uint64, frameCount int) (*BufferSet, error) {
	return newBufferSet(device, label, size, frameCount, NewUniformBuffer)
}

// NewStorageBufferSet creates frameCount storage buffer copies.
func NewStorageBufferSet(device *wgpu.Device, label string, size uint64, frameCount int) (*BufferSet, error) {
	return newBufferSet(device, label, size, frameCount, NewStorageBuffer)
}

func newBufferSet(device *wgpu.Device, label string, size uint64, frameCount int, ctor func(*wgpu.Device, string, uint64) (*Buffer, error)) (*BufferSet, error) {
	set := &BufferSet{label: label, slots: make([]*Buffer, frameCount)}
	for i := range set.slots {
		buf, err := ctor(device, fmt.Sprintf("%s[%d]", label, i), size)
		if err != nil {
			return nil, err
		}
		set.slots[i] = buf
	}
	return set, nil
}

// At returns the buffer copy owned by the given frame slot.
func (s *BufferSet) At(slot int) *Buffer {
	if s == nil || slot < 0 || slot >= len(s.slots) {
		return nil
	}
	return s.slots[slot]
}

// SetData writes to the slot's buffer copy.
func (s *BufferSet) SetData(queue *wgpu.Queue, slot int, data []byte, offset uint64) {
	s.At(slot).SetData(queue, data, offset)
}

// Release releases every slot's buffer.
func (s *BufferSet) Release() {
	if s == nil {
		return
	}
	for i, b := range s.slots {
		b.Release()
		s.slots[i] = nil
	}
}

// VertexBuffer and IndexBuffer are thin aliases over Buffer distinguishing draw-call
// intent. NewVertexBuffer's deviceLocal flag names the spec's two construction modes
// (device-local staged upload, host-visible per-frame data); both create and write the
// buffer the same way.
type VertexBuffer struct{ *Buffer }
type IndexBuffer struct{ *Buffer }

// NewVertexBuffer uploads vertexData with queue.WriteBuffer, which stages the copy
// internally. deviceLocal does not change how the buffer is created or written.
func NewVertexBuffer(device *wgpu.Device, queue *wgpu.Queue, label string, vertexData []byte, deviceLocal bool) (*VertexBuffer, error) {
	buf, err := createUploadedBuffer(device, queue, label, vertexData, wgpu.BufferUsageVertex, deviceLocal)
	if err != nil {
		return nil, err
	}
	return &VertexBuffer{buf}, nil
}

// NewIndexBuffer uploads indexData the same way NewVertexBuffer does.
func NewIndexBuffer(device *wgpu.Device, queue *wgpu.Queue, label string, indexData []byte, deviceLocal bool) (*IndexBuffer, error) {
	buf, err := createUploadedBuffer(device, queue, label, indexData, wgpu.BufferUsageIndex, deviceLocal)
	if err != nil {
		return nil, err
	}
	return &IndexBuffer{buf}, nil
}

func createUploadedBuffer(device *wgpu.Device, queue *wgpu.Queue, label string, data []byte, usage wgpu.BufferUsage, deviceLocal bool) (*Buffer, error) {
	finalUsage := usage | wgpu.BufferUsageCopyDst
	buf, err := newBuffer(device, label, uint64(len(data)), finalUsage)
	if err != nil {
		return nil, err
	}
	// wgpu's queue.WriteBuffer already performs the staging-buffer copy internally for
	// both device-local and host-visible destinations; deviceLocal only affects whether
	// the caller should expect the buffer to be safely remapped later (it is not, by
	// design — device-local buffers are write-once at upload time).
	queue.WriteBuffer(buf.buf, 0, data)
	return buf, nil
}
