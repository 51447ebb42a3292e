package managed

import "testing"

type resource struct {
	RefCount
	closed bool
}

func newResource() *resource {
	r := &resource{}
	r.Init(func() { r.closed = true })
	return r
}

func TestLifecycle(t *testing.T) {
	r := newResource()
	if r.Refs() != 1 {
		t.Fatalf("new object should have count 1, got %d", r.Refs())
	}

	r.Ref()
	if r.Refs() != 2 {
		t.Errorf("count after Ref = %d, want 2", r.Refs())
	}

	if r.Unref() {
		t.Error("Unref should not finalize while count > 0")
	}
	if r.closed {
		t.Error("finalizer ran early")
	}

	if !r.Unref() {
		t.Error("final Unref should report finalization")
	}
	if !r.closed {
		t.Error("finalizer did not run")
	}
	if r.Refs() != 0 {
		t.Errorf("count after final Unref = %d, want 0", r.Refs())
	}
}

func TestFinalizerRunsOnce(t *testing.T) {
	runs := 0
	r := &resource{}
	r.Init(func() { runs++ })

	r.Ref()
	r.Unref()
	r.Unref()
	if runs != 1 {
		t.Errorf("finalizer ran %d times, want 1", runs)
	}
}

func TestRefAfterFreePanics(t *testing.T) {
	r := newResource()
	r.Unref()

	defer func() {
		if recover() == nil {
			t.Error("Ref on dead object should panic")
		}
	}()
	r.Ref()
}

func TestUnrefAfterFreePanics(t *testing.T) {
	r := newResource()
	r.Unref()

	defer func() {
		if recover() == nil {
			t.Error("Unref on dead object should panic")
		}
	}()
	r.Unref()
}

func TestNilFinalizer(t *testing.T) {
	r := &resource{}
	r.Init(nil)
	if !r.Unref() {
		t.Error("Unref with nil finalizer should still report finalization")
	}
}

func TestRefValue(t *testing.T) {
	r := newResource()
	RefValue(r)
	if r.Refs() != 2 {
		t.Errorf("RefValue did not increment managed value, count = %d", r.Refs())
	}
	UnrefValue(r)
	if r.Refs() != 1 {
		t.Errorf("UnrefValue did not decrement managed value, count = %d", r.Refs())
	}

	// Non-managed values are ignored.
	RefValue("plain string")
	UnrefValue(42)
}
