package shader

import "sync"

// Dependent is invalidated when the shader it depends on reloads. Pipeline and
// Material implement this to rebuild their wgpu objects against the new source.
type Dependent interface {
	Invalidate() error
}

// Registry tracks loaded shaders by key and the dependents (pipelines, materials)
// registered against each, so a single Reload call can walk every affected object.
type Registry struct {
	mu         sync.Mutex
	shaders    map[string]*Shader
	dependents map[string][]Dependent
}

func NewRegistry() *Registry {
	return &Registry{
		shaders:    make(map[string]*Shader),
		dependents: make(map[string][]Dependent),
	}
}

// Register stores s under its key, replacing any previous shader at that key.
func (r *Registry) Register(s *Shader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shaders[s.Key()] = s
}

// Get returns the registered shader for key, or nil if none is registered.
func (r *Registry) Get(key string) *Shader {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shaders[key]
}

// AddDependent registers d to be invalidated whenever shaderKey reloads.
func (r *Registry) AddDependent(shaderKey string, d Dependent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dependents[shaderKey] = append(r.dependents[shaderKey], d)
}

// Reload re-parses source under the existing key and invalidates every registered
// dependent. Dependents recreate their pipeline/descriptor objects lazily on next use.
func (r *Registry) Reload(key, source string) error {
	r.mu.Lock()
	existing, ok := r.shaders[key]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	reloaded := New(key, existing.stageType, source)
	r.shaders[key] = reloaded
	dependents := append([]Dependent(nil), r.dependents[key]...)
	r.mu.Unlock()

	var firstErr error
	for _, d := range dependents {
		if err := d.Invalidate(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
