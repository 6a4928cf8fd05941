package asset

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ignisengine/ignis/common"
	"github.com/ignisengine/ignis/engine/loader"
	"github.com/ignisengine/ignis/engine/resource"
)

// Importer turns a file on disk into a freshly loaded Asset. The Manager calls
// Import on its background loader worker, off the render thread; the GPU uploads
// in importTexture and importMeshSource run there too, using the device/queue the
// Manager's background loader holds a reference to, matching the teacher's
// convention of passing the GPU handles down rather than touching a global.
type Importer interface {
	// Import reads path and produces the Asset for it. typ selects which concrete
	// Asset variant and parse path to take; callers resolve typ from
	// TypeFromExtension or a Registry entry before calling.
	Import(device *wgpu.Device, queue *wgpu.Queue, typ Type, handle Handle, path string) (Asset, error)
}

type importer struct {
	modelLoader loader.Loader
}

// NewImporter returns an Importer backed by a fresh glTF-capable model loader.
func NewImporter() Importer {
	return &importer{modelLoader: loader.NewLoader(loader.BackendTypeGLTF)}
}

func (im *importer) Import(device *wgpu.Device, queue *wgpu.Queue, typ Type, handle Handle, path string) (Asset, error) {
	switch typ {
	case TypeMeshSource:
		return im.importMeshSource(device, queue, handle, path)
	case TypeTexture:
		return im.importTexture(device, queue, handle, path)
	case TypeStaticMesh:
		return im.importStaticMesh(handle, path)
	case TypeMaterial:
		return im.importMaterial(handle, path)
	default:
		return nil, fmt.Errorf("asset: importer: unsupported type %s", typ)
	}
}

// importMeshSource loads path's mesh and material data through the CPU-only model
// loader, then uploads the combined vertex/index bytes to GPU buffers. Both steps
// run on whichever goroutine calls Import (the Manager's loader worker); the
// model loader itself never touches a wgpu.Device.
func (im *importer) importMeshSource(device *wgpu.Device, queue *wgpu.Queue, handle Handle, path string) (Asset, error) {
	m, err := im.modelLoader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("asset: import mesh source %s: %w", path, err)
	}

	vb, err := resource.NewVertexBuffer(device, queue, m.Name()+" vertices", m.VertexData(), true)
	if err != nil {
		return nil, fmt.Errorf("asset: import mesh source %s: %w", path, err)
	}
	ib, err := resource.NewIndexBuffer(device, queue, m.Name()+" indices", m.IndexData(), true)
	if err != nil {
		vb.Release()
		return nil, fmt.Errorf("asset: import mesh source %s: %w", path, err)
	}

	return &MeshSource{
		assetBase:    assetBase{handle: handle},
		CPU:          m,
		VertexBuffer: vb,
		IndexBuffer:  ib,
		IndexCount:   m.IndexCount(),
	}, nil
}

// importTexture decodes path's image bytes and uploads them into a new 2D GPU
// texture, matching the upload shape the teacher's renderer backend used for
// bind-group textures (decode to RGBA8, then queue.WriteTexture).
func (im *importer) importTexture(device *wgpu.Device, queue *wgpu.Queue, handle Handle, path string) (Asset, error) {
	imported := &common.ImportedTexture{Path: path}
	pixels, width, height, err := imported.Decode()
	if err != nil {
		return nil, fmt.Errorf("asset: import texture %s: %w", path, err)
	}

	tex, err := resource.NewTexture2D(device, path, resource.TextureSpec{
		Width:         width,
		Height:        height,
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		Usage:         resource.TextureUsageSampled,
		Samples:       1,
		Mips:          1,
		CreateSampler: true,
	})
	if err != nil {
		return nil, fmt.Errorf("asset: import texture %s: %w", path, err)
	}

	queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: tex.Handle(), MipLevel: 0, Aspect: wgpu.TextureAspectAll},
		pixels,
		&wgpu.TextureDataLayout{BytesPerRow: width * 4, RowsPerImage: height},
		&wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)

	return &Texture2D{assetBase: assetBase{handle: handle}, Texture: tex}, nil
}

// importStaticMesh parses the small authored text format §6 describes:
//
//	StaticMesh:
//	  MeshSource: 000000000000002a
//	  SubMeshIndices: [0, 1, 2]
func (im *importer) importStaticMesh(handle Handle, path string) (Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("asset: import static mesh %s: %w", path, err)
	}

	var meshSource Handle
	var indices []uint32
	sawMeshSource := false
	for _, raw := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(trimmed, "MeshSource:"):
			h, hErr := parseHandleField("Handle:" + strings.TrimPrefix(trimmed, "MeshSource:"))
			if hErr != nil {
				return nil, fmt.Errorf("asset: import static mesh %s: %w", path, hErr)
			}
			meshSource = h
			sawMeshSource = true
		case strings.HasPrefix(trimmed, "SubMeshIndices:"):
			indices, err = parseUint32List(strings.TrimPrefix(trimmed, "SubMeshIndices:"))
			if err != nil {
				return nil, fmt.Errorf("asset: import static mesh %s: %w", path, err)
			}
		}
	}
	if !sawMeshSource {
		return nil, fmt.Errorf("asset: import static mesh %s: missing MeshSource field", path)
	}

	return NewStaticMesh(handle, meshSource, indices), nil
}

// importMaterial parses the authored material text format §6 describes, mirroring
// importStaticMesh's line-oriented approach. It builds no GPU material: the
// returned MaterialAsset's Render is nil and its texture paths stay unresolved
// strings, and the Manager does not build one later either.
func (im *importer) importMaterial(handle Handle, path string) (Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("asset: import material %s: %w", path, err)
	}

	imported := common.ImportedMaterial{Name: path}
	for _, raw := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(raw)
		key, value, ok := splitField(trimmed)
		if !ok {
			continue
		}
		switch key {
		case "Metallic":
			imported.Metallic = parseFloat32(value)
		case "Roughness":
			imported.Roughness = parseFloat32(value)
		case "BaseColor":
			imported.BaseColor = parseFloat4(value)
		case "DiffuseTexture":
			imported.DiffuseTexturePath = value
		case "NormalTexture":
			imported.NormalTexturePath = value
		case "MetallicRoughnessTexture":
			imported.MetallicTexturePath = value
		}
	}

	return &MaterialAsset{assetBase: assetBase{handle: handle}, Imported: imported}, nil
}

func splitField(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	return key, value, key != ""
}

func parseFloat32(s string) float32 {
	v, _ := strconv.ParseFloat(s, 32)
	return float32(v)
}

func parseFloat4(s string) [4]float32 {
	s = strings.Trim(s, "[]")
	parts := strings.Split(s, ",")
	var out [4]float32
	for i := 0; i < len(parts) && i < 4; i++ {
		out[i] = parseFloat32(strings.TrimSpace(parts[i]))
	}
	return out
}

func parseUint32List(s string) ([]uint32, error) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "[]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]uint32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad index %q: %w", p, err)
		}
		out = append(out, uint32(v))
	}
	return out, nil
}
