package resource

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// mipBlitShaderSource is GenerateMips' downsample shader: a fullscreen triangle (no
// vertex buffer, 3 vertices generated from vertex_index) that samples the previous mip
// level through a linear-filtered sampler and writes the result into the next level.
// One render pass per mip transition stands in for the spec's per-level blit + barrier
// chain — wgpu has no CmdBlitImage equivalent to issue directly.
const mipBlitShaderSource = `
struct VertexOutput {
	@builtin(position) position: vec4<f32>,
	@location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) vertexIndex: u32) -> VertexOutput {
	var positions = array<vec2<f32>, 3>(
		vec2<f32>(-1.0, -1.0),
		vec2<f32>(3.0, -1.0),
		vec2<f32>(-1.0, 3.0),
	);
	var out: VertexOutput;
	let pos = positions[vertexIndex];
	out.position = vec4<f32>(pos, 0.0, 1.0);
	out.uv = vec2<f32>(pos.x * 0.5 + 0.5, 0.5 - pos.y * 0.5);
	return out;
}

@group(0) @binding(0) var srcTexture: texture_2d<f32>;
@group(0) @binding(1) var srcSampler: sampler;

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
	return textureSample(srcTexture, srcSampler, in.uv);
}
`

// mipBlitter is the pipeline + bind group layout for downsampling into one particular
// color format, cached and shared across every texture that needs mips generated at
// that format rather than rebuilt per call.
type mipBlitter struct {
	layout   *wgpu.BindGroupLayout
	pipeline *wgpu.RenderPipeline
}

var (
	mipBlittersMu sync.Mutex
	mipBlitters   = map[wgpu.TextureFormat]*mipBlitter{}
	mipSampler    *wgpu.Sampler
)

func getMipBlitter(device *wgpu.Device, format wgpu.TextureFormat) (*mipBlitter, error) {
	mipBlittersMu.Lock()
	defer mipBlittersMu.Unlock()

	if b, ok := mipBlitters[format]; ok {
		return b, nil
	}

	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "mip blit shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: mipBlitShaderSource},
	})
	if err != nil {
		return nil, fmt.Errorf("resource: create mip blit shader module: %w", err)
	}

	layout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "mip blit bind group layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture:    wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeFloat, ViewDimension: wgpu.TextureViewDimension2D},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("resource: create mip blit bind group layout: %w", err)
	}

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "mip blit pipeline layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return nil, fmt.Errorf("resource: create mip blit pipeline layout: %w", err)
	}

	pipeline, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "mip blit pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{Module: module, EntryPoint: "vs_main"},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets:    []wgpu.ColorTargetState{{Format: format, WriteMask: wgpu.ColorWriteMaskAll}},
		},
		Primitive:   wgpu.PrimitiveState{Topology: wgpu.PrimitiveTopologyTriangleList},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return nil, fmt.Errorf("resource: create mip blit pipeline: %w", err)
	}

	b := &mipBlitter{layout: layout, pipeline: pipeline}
	mipBlitters[format] = b
	return b, nil
}

func getMipSampler(device *wgpu.Device) (*wgpu.Sampler, error) {
	mipBlittersMu.Lock()
	defer mipBlittersMu.Unlock()
	if mipSampler != nil {
		return mipSampler, nil
	}
	s, err := device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:     "mip blit sampler",
		MagFilter: wgpu.FilterModeLinear,
		MinFilter: wgpu.FilterModeLinear,
	})
	if err != nil {
		return nil, fmt.Errorf("resource: create mip blit sampler: %w", err)
	}
	mipSampler = s
	return s, nil
}
