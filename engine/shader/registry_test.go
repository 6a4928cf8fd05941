package shader

import "testing"

// countingDependent records how many times Invalidate fired and returns err
// (nil unless a test sets it), so a test can assert exact-once delivery per
// reload.
type countingDependent struct {
	calls int
	err   error
}

func (c *countingDependent) Invalidate() error {
	c.calls++
	return c.err
}

const reloadFragSource = `
@group(3) @binding(0) var<uniform> material: MaterialUniform;
@fragment
fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }
`

// TestReloadInvalidatesEachDependentExactlyOnce is scenario C: two pipelines
// (here modeled as two independent Dependents, standing in for a pipeline and
// a material built against the same shader key) both registered against one
// shader key must each be invalidated exactly once per Reload call.
// TestReloadOfUnrelatedKeyDoesNotNotify covers a reload of an unrelated key.
func TestReloadInvalidatesEachDependentExactlyOnce(t *testing.T) {
	r := NewRegistry()
	r.Register(New("lit.frag", ShaderTypeFragment, reloadFragSource))

	pipelineDep := &countingDependent{}
	materialDep := &countingDependent{}
	r.AddDependent("lit.frag", pipelineDep)
	r.AddDependent("lit.frag", materialDep)

	if err := r.Reload("lit.frag", reloadFragSource); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if pipelineDep.calls != 1 {
		t.Fatalf("pipeline dependent: got %d Invalidate calls, want 1", pipelineDep.calls)
	}
	if materialDep.calls != 1 {
		t.Fatalf("material dependent: got %d Invalidate calls, want 1", materialDep.calls)
	}

	// A second reload notifies again, still exactly once each.
	if err := r.Reload("lit.frag", reloadFragSource); err != nil {
		t.Fatalf("second Reload: %v", err)
	}
	if pipelineDep.calls != 2 || materialDep.calls != 2 {
		t.Fatalf("expected 2 calls each after a second reload, got pipeline=%d material=%d", pipelineDep.calls, materialDep.calls)
	}

	if got := r.Get("lit.frag").Source(); got != reloadFragSource {
		t.Fatalf("registry should hold the reloaded source")
	}
}

func TestReloadOfUnrelatedKeyDoesNotNotify(t *testing.T) {
	r := NewRegistry()
	r.Register(New("lit.frag", ShaderTypeFragment, reloadFragSource))
	r.Register(New("shadow.frag", ShaderTypeFragment, reloadFragSource))

	dep := &countingDependent{}
	r.AddDependent("lit.frag", dep)

	if err := r.Reload("shadow.frag", reloadFragSource); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if dep.calls != 0 {
		t.Fatalf("a dependent registered against a different key must not be notified, got %d calls", dep.calls)
	}
}

// TestReloadReturnsFirstDependentError checks a failing Invalidate surfaces
// from Reload without stopping the rest of the fan-out.
func TestReloadReturnsFirstDependentError(t *testing.T) {
	r := NewRegistry()
	r.Register(New("lit.frag", ShaderTypeFragment, reloadFragSource))

	failing := &countingDependent{err: errReloadTest{}}
	ok := &countingDependent{}
	r.AddDependent("lit.frag", failing)
	r.AddDependent("lit.frag", ok)

	if err := r.Reload("lit.frag", reloadFragSource); err == nil {
		t.Fatalf("expected the failing dependent's error to surface")
	}
	if ok.calls != 1 {
		t.Fatalf("an earlier dependent's error must not stop later-registered dependents from running, got %d calls", ok.calls)
	}
}

func TestReloadOfUnknownKeyIsNoop(t *testing.T) {
	r := NewRegistry()
	if err := r.Reload("missing.frag", reloadFragSource); err != nil {
		t.Fatalf("reloading an unregistered key should be a no-op, got %v", err)
	}
}

type errReloadTest struct{}

func (errReloadTest) Error() string { return "invalidate failed" }
