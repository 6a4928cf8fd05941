// Package config defines the small value types persisted outside the asset
// registry: render configuration (frames-in-flight, environment map baking
// parameters, light budget caps), and the editor/user-preference shapes referenced
// by the rest of the engine even though their own serialization is out of scope.
package config

// RenderConfiguration is the render-tunable configuration persisted to the
// RendererConfiguration file. FramesInFlight must be 2 or 3 — Validate enforces it
// rather than trusting every caller to clamp it themselves.
type RenderConfiguration struct {
	FramesInFlight uint32

	ComputeEnvironmentMaps   bool
	EnvironmentMapResolution uint32
	IrradianceSamples        uint32

	MaxPointLights uint32
	MaxSpotLights  uint32
}

// DefaultRenderConfiguration returns the configuration a fresh project starts with.
func DefaultRenderConfiguration() RenderConfiguration {
	return RenderConfiguration{
		FramesInFlight:           2,
		ComputeEnvironmentMaps:   true,
		EnvironmentMapResolution: 512,
		IrradianceSamples:        64,
		MaxPointLights:           16,
		MaxSpotLights:            8,
	}
}

// Validate checks FramesInFlight is in the supported 2..=3 range. Every other field
// is an unconstrained tuning knob.
func (c RenderConfiguration) Validate() error {
	if c.FramesInFlight < 2 || c.FramesInFlight > 3 {
		return &ValidationError{Field: "FramesInFlight", Reason: "must be 2 or 3"}
	}
	return nil
}

// ValidationError reports a single invalid RenderConfiguration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "config: " + e.Field + ": " + e.Reason
}

// RecentProject is one entry in UserPreferences.RecentProjects.
type RecentProject struct {
	Name           string
	Path           string
	LastOpenedUnix int64
}

// UserPreferences mirrors the spec's per-user preference shape. Its serialization
// is explicitly out of scope; it exists here so other packages can reference the
// shape by interface (e.g. an editor's "open recent" menu) without this package
// owning a persistence format for it.
type UserPreferences struct {
	StartupProject string
	RecentProjects []RecentProject
}

// EditorSettings mirrors the spec's Config/EditorSettings shape. Like
// UserPreferences, no marshal/unmarshal is implemented for it.
type EditorSettings struct {
	HighlightUnsetMeshes        bool
	TranslationSnap             float32
	RotationSnap                float32
	ScaleSnap                   float32
	ContentBrowserThumbnailSize int
}
