package renderpass

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ignisengine/ignis/engine/descriptor"
)

// ComputePass is the compute analogue of RenderPass: it owns a descriptor.Manager over
// its declared set range but no framebuffer, since compute dispatches read and write
// storage buffers/images directly rather than through attachments.
type ComputePass struct {
	device *wgpu.Device
	spec   Spec

	descriptors *descriptor.Manager
	state       State

	activePass *wgpu.ComputePassEncoder
}

// NewCompute constructs a ComputePass's descriptor manager. spec.Framebuffer is ignored.
func NewCompute(device *wgpu.Device, spec Spec) (*ComputePass, error) {
	spec.Descriptor.DebugName = spec.DebugName
	return &ComputePass{device: device, spec: spec, descriptors: descriptor.NewManager(spec.Descriptor), state: StateConstructed}, nil
}

func (cp *ComputePass) SetInput(name string, input descriptor.Input) {
	cp.descriptors.SetInput(name, input)
}

func (cp *ComputePass) Descriptors() *descriptor.Manager { return cp.descriptors }

func (cp *ComputePass) Bake() error {
	if cp.state != StateConstructed {
		return fmt.Errorf("computepass %q: Bake called in state %d, want Constructed", cp.spec.DebugName, cp.state)
	}
	if err := cp.descriptors.Bake(cp.device); err != nil {
		return err
	}
	cp.state = StateBaked
	return nil
}

func (cp *ComputePass) Prepare(slot int) error {
	if cp.state != StateBaked && cp.state != StatePrepared {
		return fmt.Errorf("computepass %q: Prepare called in state %d, want Baked or Prepared", cp.spec.DebugName, cp.state)
	}
	if err := cp.descriptors.Prepare(cp.device, slot); err != nil {
		return err
	}
	cp.state = StatePrepared
	return nil
}

// BeginComputePass begins recording into encoder.
func (cp *ComputePass) BeginComputePass(encoder *wgpu.CommandEncoder) (*wgpu.ComputePassEncoder, error) {
	if cp.state != StatePrepared {
		return nil, errors.New("computepass: BeginComputePass called before Prepare")
	}
	pass := encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: cp.spec.DebugLabel})
	cp.activePass = pass
	return pass, nil
}

// EndComputePass ends the active compute pass encoder.
func (cp *ComputePass) EndComputePass() {
	if cp.activePass == nil {
		return
	}
	cp.activePass.End()
	cp.activePass = nil
}

func (cp *ComputePass) Release() {
	cp.descriptors.Release()
}
