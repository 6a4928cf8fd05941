package asset

import (
	"strings"

	"github.com/ignisengine/ignis/common"
	"github.com/ignisengine/ignis/engine/material"
	"github.com/ignisengine/ignis/engine/model"
	"github.com/ignisengine/ignis/engine/resource"
)

// Type discriminates the kind of asset a Handle refers to, matching the registry
// file's Type string (§6) and AssetMetaData.Type (§3) one for one.
type Type int

const (
	TypeNone Type = iota
	TypeScene
	TypeStaticMesh
	TypeMeshSource
	TypeMaterial
	TypeTexture
	TypeEnvironmentMap
	TypeFont
)

func (t Type) String() string {
	switch t {
	case TypeScene:
		return "Scene"
	case TypeStaticMesh:
		return "StaticMesh"
	case TypeMeshSource:
		return "MeshSource"
	case TypeMaterial:
		return "Material"
	case TypeTexture:
		return "Texture"
	case TypeEnvironmentMap:
		return "EnvironmentMap"
	case TypeFont:
		return "Font"
	default:
		return "None"
	}
}

// ParseType maps a registry file's Type string to a Type. ok is false for an
// unrecognized string — the registry entry is skipped with a logged warning
// rather than treated as a fatal parse error, per §6.
func ParseType(s string) (t Type, ok bool) {
	switch strings.TrimSpace(s) {
	case "Scene":
		return TypeScene, true
	case "StaticMesh":
		return TypeStaticMesh, true
	case "MeshSource":
		return TypeMeshSource, true
	case "Material":
		return TypeMaterial, true
	case "Texture":
		return TypeTexture, true
	case "EnvironmentMap":
		return TypeEnvironmentMap, true
	case "Font":
		return TypeFont, true
	default:
		return TypeNone, false
	}
}

// extensionTypes is the case-insensitive extension→Type lookup from §6.
var extensionTypes = map[string]Type{
	".iscene":    TypeScene,
	".ismesh":    TypeStaticMesh,
	".imaterial": TypeMaterial,
	".gltf":      TypeMeshSource,
	".glb":       TypeMeshSource,
	".fbx":       TypeMeshSource,
	".obj":       TypeMeshSource,
	".png":       TypeTexture,
	".jpg":       TypeTexture,
	".jpeg":      TypeTexture,
	".hdr":       TypeTexture,
}

// TypeFromExtension resolves ext (including the leading dot, any case) to the
// Type a fresh import of that file should be registered under. ok is false for
// an unrecognized extension.
func TypeFromExtension(ext string) (Type, bool) {
	t, ok := extensionTypes[strings.ToLower(ext)]
	return t, ok
}

// Status is the asset's load lifecycle state (§3 AssetMetaData.status).
type Status int

const (
	StatusNone Status = iota
	StatusReady
	StatusLoading
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusLoading:
		return "Loading"
	case StatusInvalid:
		return "Invalid"
	default:
		return "None"
	}
}

// MetaData is the registry's per-handle record (§3). A memory-only entry has no
// file path and can never be flagged Missing — there is nothing on disk to go
// missing — which Registry enforces at construction rather than trusting every
// caller to maintain the invariant by hand.
type MetaData struct {
	Handle       Handle
	Type         Type
	RelativePath string
	Status       Status
	IsDataLoaded bool
	IsMemoryOnly bool
}

// IsValid reports whether m refers to a usable (non-null, known-type) record.
func (m MetaData) IsValid() bool {
	return !m.Handle.IsNull() && m.Type != TypeNone
}

// Flags reports asset-level problems discovered after a load attempt (§3: "Each
// carries ... a flags bitset {Missing, Invalid}").
type Flags uint8

const (
	FlagMissing Flags = 1 << iota
	FlagInvalid
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// Asset is the polymorphic asset value §3/§9 describe as "a tagged enum with one
// variant per concrete type": one interface with a Type() discriminator, one
// concrete struct per variant, each embedding assetBase for the shared
// handle+flags fields. A handle that resolves to a non-null Asset pointer is, by
// contract, usable — validity checks live in the Manager/Registry, not here.
type Asset interface {
	Handle() Handle
	Type() Type
	Flags() Flags
	SetFlags(Flags)
	// OnDependencyUpdated is called by the Manager when an asset this one depends
	// on (e.g. a StaticMesh's MeshSource, a MaterialAsset's textures) finishes a
	// reload, so the dependent can re-resolve whatever it cached from that
	// dependency (submesh tables, bound texture views).
	OnDependencyUpdated(source Handle)
}

type assetBase struct {
	handle Handle
	flags  Flags
}

func (b *assetBase) Handle() Handle  { return b.handle }
func (b *assetBase) Flags() Flags    { return b.flags }
func (b *assetBase) SetFlags(f Flags) { b.flags = f }

// OnDependencyUpdated is a no-op default; variants that actually depend on
// another asset (StaticMesh, MaterialAsset) override it.
func (b *assetBase) OnDependencyUpdated(Handle) {}

// StaticMesh is a curated selection of submeshes referencing a MeshSource (§3,
// GLOSSARY). Registry Type: StaticMesh.
type StaticMesh struct {
	assetBase
	MeshSourceHandle Handle
	SubMeshIndices   []uint32
}

func NewStaticMesh(handle Handle, meshSource Handle, subMeshIndices []uint32) *StaticMesh {
	return &StaticMesh{assetBase: assetBase{handle: handle}, MeshSourceHandle: meshSource, SubMeshIndices: subMeshIndices}
}

func (m *StaticMesh) Type() Type { return TypeStaticMesh }

// OnDependencyUpdated re-resolves nothing by itself (the submesh index list is
// authored data, not derived from the source); it exists so a future validation
// pass (submesh index out of range after a MeshSource reimport) has a hook.
func (m *StaticMesh) OnDependencyUpdated(source Handle) {
	if source != m.MeshSourceHandle {
		return
	}
}

// MeshSource is raw loaded mesh data: the CPU-side model.Model an importer
// produced, plus the GPU vertex/index buffers the importer uploads from it on the
// Manager's background loader worker (§4.10, GLOSSARY).
type MeshSource struct {
	assetBase
	CPU          model.Model
	VertexBuffer *resource.VertexBuffer
	IndexBuffer  *resource.IndexBuffer
	IndexCount   int
}

func (m *MeshSource) Type() Type { return TypeMeshSource }

func (m *MeshSource) Release() {
	if m.VertexBuffer != nil {
		m.VertexBuffer.Release()
	}
	if m.IndexBuffer != nil {
		m.IndexBuffer.Release()
	}
}

// Texture2D wraps a single 2D GPU texture (§3).
type Texture2D struct {
	assetBase
	Texture *resource.Texture
}

func (t *Texture2D) Type() Type { return TypeTexture }

func (t *Texture2D) Release() {
	if t.Texture != nil {
		t.Texture.Release()
	}
}

// TextureCube wraps a 6-layer cube GPU texture (§3). It is not its own registry
// Type string (the registry's file-level vocabulary only distinguishes Texture
// from EnvironmentMap); a standalone TextureCube is built at runtime — e.g. an
// equirectangular-to-cube bake — and handed to an Environment rather than
// registered on disk directly.
type TextureCube struct {
	assetBase
	Texture *resource.Texture
}

func (t *TextureCube) Type() Type { return TypeEnvironmentMap }

func (t *TextureCube) Release() {
	if t.Texture != nil {
		t.Texture.Release()
	}
}

// MaterialAsset is a render-ready material plus the raw imported properties it
// was built from (§3). Registry Type: Material.
type MaterialAsset struct {
	assetBase
	Imported      common.ImportedMaterial
	Render        *material.Material
	DiffuseHandle Handle
	NormalHandle  Handle
	MetalRoughHandle Handle
}

func (m *MaterialAsset) Type() Type { return TypeMaterial }

// OnDependencyUpdated does nothing. A texture reload produces a new Texture2D
// asset wrapping a new resource.Texture, so a material built against the old one
// keeps the texture it was given; bound textures are not refreshed here.
func (m *MaterialAsset) OnDependencyUpdated(source Handle) {
	_ = source
}

func (m *MaterialAsset) Release() {
	if m.Render != nil {
		m.Render.Release()
	}
}

// Environment is a baked image-based-lighting environment: an irradiance cube
// (diffuse IBL) and a radiance cube (specular IBL, mip chain = roughness).
// Registry Type: EnvironmentMap.
type Environment struct {
	assetBase
	Irradiance *TextureCube
	Radiance   *TextureCube
}

func (e *Environment) Type() Type { return TypeEnvironmentMap }

func (e *Environment) Release() {
	if e.Irradiance != nil {
		e.Irradiance.Release()
	}
	if e.Radiance != nil {
		e.Radiance.Release()
	}
}

// Font is a placeholder for a bitmap/SDF font asset. 2D text drawing is a named
// Non-goal; Font exists only so the registry's extension/type table and
// AssetMetaData.Type enum are complete, carrying the raw imported bytes for a
// future text renderer to parse.
type Font struct {
	assetBase
	Data []byte
}

func (f *Font) Type() Type { return TypeFont }

var (
	_ Asset = &StaticMesh{}
	_ Asset = &MeshSource{}
	_ Asset = &Texture2D{}
	_ Asset = &TextureCube{}
	_ Asset = &MaterialAsset{}
	_ Asset = &Environment{}
	_ Asset = &Font{}
)
