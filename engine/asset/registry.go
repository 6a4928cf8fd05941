package asset

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Registry owns the Handle→MetaData table described in §3/§6: which files exist,
// what type they import as, and whether their data is currently resident.
// Implementations must be safe for concurrent use — the Manager updates entries
// from whichever goroutine calls GetAssetAsync, Reload or SyncWithAssetThread.
// The background loader worker itself never touches it; it works from a copy of
// the entry's MetaData.
type Registry interface {
	// Lookup returns the metadata for handle and whether it was found.
	Lookup(handle Handle) (MetaData, bool)
	// Resolve returns the handle registered for a project-relative path.
	Resolve(path string) (Handle, bool)
	// Register adds or replaces the metadata for handle.
	Register(meta MetaData)
	// SetStatus updates just the Status/IsDataLoaded fields for handle, a no-op
	// if handle isn't registered.
	SetStatus(handle Handle, status Status, dataLoaded bool)
	// All returns every registered entry, sorted by ascending Handle.
	All() []MetaData
	// ScanDirectory walks root and registers any file with a recognized asset
	// extension that isn't already registered by path, minting a fresh Handle for
	// each. It returns the newly registered entries.
	ScanDirectory(root string) ([]MetaData, error)
	// LocateMissing searches root for a file whose name matches the missing
	// entry's base file name, scoring candidates by how many trailing path
	// segments they share with the original RelativePath. It returns the best
	// candidate's path and whether the match was unambiguous (a single
	// strictly-highest scorer; a tie among nonzero scores is reported but left
	// for the caller/user to resolve).
	LocateMissing(root string, missing MetaData) (candidate string, unambiguous bool)
	// Marshal serializes the registry to the external file format (§6).
	Marshal() []byte
	// Load replaces the registry's contents from a Marshal-produced buffer.
	Load(data []byte) error
}

type registry struct {
	mu      sync.RWMutex
	byPath  map[string]Handle
	entries map[Handle]MetaData
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() Registry {
	return &registry{
		byPath:  make(map[string]Handle),
		entries: make(map[Handle]MetaData),
	}
}

func (r *registry) Lookup(handle Handle) (MetaData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.entries[handle]
	return m, ok
}

func (r *registry) Resolve(path string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byPath[normalizePath(path)]
	return h, ok
}

func (r *registry) Register(meta MetaData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerLocked(meta)
}

func (r *registry) registerLocked(meta MetaData) {
	if meta.IsMemoryOnly {
		meta.RelativePath = ""
	}
	if meta.RelativePath != "" {
		meta.RelativePath = normalizePath(meta.RelativePath)
	}
	if old, ok := r.entries[meta.Handle]; ok && old.RelativePath != "" && old.RelativePath != meta.RelativePath {
		delete(r.byPath, old.RelativePath)
	}
	r.entries[meta.Handle] = meta
	if meta.RelativePath != "" {
		r.byPath[meta.RelativePath] = meta.Handle
	}
}

func (r *registry) SetStatus(handle Handle, status Status, dataLoaded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.entries[handle]
	if !ok {
		return
	}
	m.Status = status
	m.IsDataLoaded = dataLoaded
	r.entries[handle] = m
}

func (r *registry) All() []MetaData {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MetaData, 0, len(r.entries))
	for _, m := range r.entries {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

func (r *registry) ScanDirectory(root string) ([]MetaData, error) {
	var added []MetaData
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		typ, ok := TypeFromExtension(filepath.Ext(path))
		if !ok {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		rel = normalizePath(rel)

		r.mu.Lock()
		if _, exists := r.byPath[rel]; exists {
			r.mu.Unlock()
			return nil
		}
		meta := MetaData{Handle: NewHandle(), Type: typ, RelativePath: rel, Status: StatusNone}
		r.registerLocked(meta)
		r.mu.Unlock()

		added = append(added, meta)
		return nil
	})
	if err != nil {
		return added, err
	}
	return added, nil
}

func (r *registry) LocateMissing(root string, missing MetaData) (string, bool) {
	base := filepath.Base(missing.RelativePath)
	wantSegments := strings.Split(normalizePath(missing.RelativePath), "/")

	type candidate struct {
		path  string
		score int
	}
	var candidates []candidate
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if filepath.Base(path) != base {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = normalizePath(rel)
		candidates = append(candidates, candidate{path: rel, score: trailingOverlap(wantSegments, strings.Split(rel, "/"))})
		return nil
	})

	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) == 1 {
		return candidates[0].path, true
	}
	return candidates[0].path, candidates[0].score > candidates[1].score && candidates[0].score > 0
}

// trailingOverlap counts how many path segments a and b share, walking from the
// end of each (the file name itself always matches by construction; the score
// distinguishes "same directory too" from "same name, different tree").
func trailingOverlap(a, b []string) int {
	n := 0
	for i, j := len(a)-1, len(b)-1; i >= 0 && j >= 0 && a[i] == b[j]; i, j = i-1, j-1 {
		n++
	}
	return n
}

func normalizePath(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}

// Marshal serializes the registry to the §6 external file format:
//
//	Assets:
//	  - Handle: 000000000000002a
//	    FilePath: meshes/cube.gltf
//	    Type: MeshSource
//
// Entries are written in ascending Handle order so the file diffs cleanly
// across saves.
func (r *registry) Marshal() []byte {
	entries := r.All()
	var b strings.Builder
	b.WriteString("Assets:\n")
	for _, m := range entries {
		if m.IsMemoryOnly {
			continue
		}
		fmt.Fprintf(&b, "  - Handle: %s\n", m.Handle.String())
		fmt.Fprintf(&b, "    FilePath: %s\n", m.RelativePath)
		fmt.Fprintf(&b, "    Type: %s\n", m.Type.String())
	}
	return []byte(b.String())
}

// Load replaces the registry's contents by parsing data in the Marshal format.
// A missing or malformed top-level "Assets:" key is a fatal parse error — the
// file is meaningless without it; an entry with an unrecognized Type is skipped
// with a logged warning rather than aborting the whole load, since one bad
// entry shouldn't cost every other asset its metadata.
func (r *registry) Load(data []byte) error {
	lines := strings.Split(string(data), "\n")

	sawAssetsKey := false
	var cur *MetaData
	var parsed []MetaData

	flush := func() {
		if cur != nil {
			parsed = append(parsed, *cur)
			cur = nil
		}
	}

	for _, raw := range lines {
		trimmed := strings.TrimRight(raw, " \t\r")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		switch {
		case trimmed == "Assets:":
			sawAssetsKey = true
		case strings.HasPrefix(strings.TrimSpace(trimmed), "- Handle:"):
			flush()
			h, err := parseHandleField(trimmed)
			if err != nil {
				return fmt.Errorf("asset: registry: %w", err)
			}
			cur = &MetaData{Handle: h}
		case strings.HasPrefix(strings.TrimSpace(trimmed), "FilePath:"):
			if cur == nil {
				return fmt.Errorf("asset: registry: FilePath outside an entry")
			}
			cur.RelativePath = normalizePath(fieldValue(trimmed, "FilePath:"))
		case strings.HasPrefix(strings.TrimSpace(trimmed), "Type:"):
			if cur == nil {
				return fmt.Errorf("asset: registry: Type outside an entry")
			}
			typ, ok := ParseType(fieldValue(trimmed, "Type:"))
			if !ok {
				log.Printf("asset: registry: skipping %s: unrecognized Type %q", cur.RelativePath, fieldValue(trimmed, "Type:"))
				cur = nil
				continue
			}
			cur.Type = typ
		}
	}
	flush()

	if !sawAssetsKey {
		return fmt.Errorf("asset: registry: missing top-level Assets key")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPath = make(map[string]Handle)
	r.entries = make(map[Handle]MetaData)
	for _, m := range parsed {
		if m.Type == TypeNone {
			continue
		}
		r.registerLocked(m)
	}
	return nil
}

func fieldValue(line, key string) string {
	idx := strings.Index(line, key)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(line[idx+len(key):])
}

func parseHandleField(line string) (Handle, error) {
	v := fieldValue(line, "Handle:")
	var h uint64
	if _, err := fmt.Sscanf(v, "%x", &h); err != nil {
		return 0, fmt.Errorf("bad Handle %q: %w", v, err)
	}
	return Handle(h), nil
}

// LoadRegistryFile reads path and parses it into a fresh Registry. A missing
// file is not an error — a brand-new project has no registry yet — it returns
// an empty Registry instead.
func LoadRegistryFile(path string) (Registry, error) {
	r := NewRegistry().(*registry)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, err
	}
	if err := r.Load(data); err != nil {
		return nil, err
	}
	return r, nil
}
