package pipeline

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

func (p *Pipeline) pipelineLayout() (*wgpu.PipelineLayout, error) {
	layouts, err := p.spec.Reflection.CreateLayouts(p.device)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: create bind group layouts: %w", p.spec.Key, err)
	}

	maxSet := -1
	for set := range layouts {
		if set > maxSet {
			maxSet = set
		}
	}
	ordered := make([]*wgpu.BindGroupLayout, maxSet+1)
	for set, l := range layouts {
		ordered[set] = l
	}

	if p.spec.PushConstantSize > 0 {
		if err := p.buildPushConstants(); err != nil {
			return nil, err
		}
		p.pushConstantSet = maxSet + 1
		ordered = append(ordered, p.pushConstantLayout)
	}

	return p.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.spec.Key,
		BindGroupLayouts: ordered,
	})
}

// buildPushConstants creates the reserved uniform buffer, its single-binding bind
// group layout, and the bind group wrapping it, standing in for a Vulkan
// push-constant range (see engine/shader.PushConstantRange). Visible to every
// stage since WGSL has no per-stage push_constant qualifier to narrow against.
func (p *Pipeline) buildPushConstants() error {
	buf, err := p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: p.spec.Key + " push constants",
		Size:  uint64(p.spec.PushConstantSize),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("pipeline %q: create push constant buffer: %w", p.spec.Key, err)
	}

	layout, err := p.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: p.spec.Key + " push constant layout",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment | wgpu.ShaderStageCompute,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
		}},
	})
	if err != nil {
		buf.Release()
		return fmt.Errorf("pipeline %q: create push constant layout: %w", p.spec.Key, err)
	}

	bindGroup, err := p.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  p.spec.Key + " push constant bind group",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0, Buffer: buf, Offset: 0, Size: wgpu.WholeSize,
		}},
	})
	if err != nil {
		layout.Release()
		buf.Release()
		return fmt.Errorf("pipeline %q: create push constant bind group: %w", p.spec.Key, err)
	}

	p.pushConstantBuffer = buf
	p.pushConstantLayout = layout
	p.pushConstantBindGroup = bindGroup
	return nil
}

func (p *Pipeline) buildGraphics() error {
	vs, err := p.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: p.spec.VertexShader.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: p.spec.VertexShader.Source(),
		},
	})
	if err != nil {
		return fmt.Errorf("pipeline %q: create vertex shader module: %w", p.spec.Key, err)
	}
	fs, err := p.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: p.spec.FragmentShader.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: p.spec.FragmentShader.Source(),
		},
	})
	if err != nil {
		return fmt.Errorf("pipeline %q: create fragment shader module: %w", p.spec.Key, err)
	}

	layout, err := p.pipelineLayout()
	if err != nil {
		return err
	}

	buffers := make([]wgpu.VertexBufferLayout, 0, len(p.spec.VertexLayout)+len(p.spec.InstanceLayout))
	buffers = append(buffers, p.spec.VertexLayout...)
	buffers = append(buffers, p.spec.InstanceLayout...)

	targets := make([]wgpu.ColorTargetState, len(p.spec.ColorFormats))
	for i, format := range p.spec.ColorFormats {
		target := wgpu.ColorTargetState{
			Format:    format,
			WriteMask: wgpu.ColorWriteMaskAll,
		}
		if i < len(p.spec.ColorBlend) && p.spec.ColorBlend[i].Enabled {
			mode := p.spec.ColorBlend[i].Mode
			if mode == BlendModeOneZero && p.spec.GlobalBlendMode != BlendModeOneZero {
				mode = p.spec.GlobalBlendMode
			}
			target.Blend = mode.state()
		}
		targets[i] = target
	}

	topology := p.spec.Topology
	if p.spec.Wireframe {
		topology = wgpu.PrimitiveTopologyLineList
	}

	var depthStencil *wgpu.DepthStencilState
	if p.spec.DepthFormat != wgpu.TextureFormatUndefined {
		compare := p.spec.DepthCompare
		if !p.spec.DepthTest {
			compare = wgpu.CompareFunctionAlways
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:            p.spec.DepthFormat,
			DepthWriteEnabled: p.spec.DepthTest && p.spec.DepthWrite,
			DepthCompare:      compare,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	sampleCount := p.spec.SampleCount
	if sampleCount == 0 {
		sampleCount = 1
	}

	created, err := p.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.spec.Key + " render pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: p.spec.VertexShader.EntryPoint(),
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: p.spec.FragmentShader.EntryPoint(),
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology,
			FrontFace: p.spec.FrontFace,
			CullMode:  p.spec.CullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: sampleCount,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return fmt.Errorf("pipeline %q: create render pipeline: %w", p.spec.Key, err)
	}

	p.renderPipeline = created
	return nil
}

func (p *Pipeline) buildCompute() error {
	s, err := p.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: p.spec.ComputeShader.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: p.spec.ComputeShader.Source(),
		},
	})
	if err != nil {
		return fmt.Errorf("pipeline %q: create compute shader module: %w", p.spec.Key, err)
	}

	layout, err := p.pipelineLayout()
	if err != nil {
		return err
	}

	created, err := p.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.spec.Key + " compute pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: p.spec.ComputeShader.EntryPoint(),
		},
	})
	if err != nil {
		return fmt.Errorf("pipeline %q: create compute pipeline: %w", p.spec.Key, err)
	}

	p.computePipeline = created
	return nil
}
