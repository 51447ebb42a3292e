// Package managed provides the reference-counted object substrate shared by
// the rest of the library.
//
// A managed object embeds RefCount and is created with a count of one. Ref
// and Unref adjust the count; when it reaches zero the finalizer runs exactly
// once and the object must not be touched again. Counts are plain integers:
// sharing a managed object across goroutines requires external locking.
package managed

import "fmt"

// Finalizer releases an object's resources when its count reaches zero.
type Finalizer func()

// Object is implemented by reference-counted values. Text-property values
// that implement Object participate in the lifetime of the text that holds
// them.
type Object interface {
	Ref()
	Unref() bool
}

// RefCount is embedded in types whose lifetime is managed by explicit
// reference counting. The zero value is dead; call Init before use.
type RefCount struct {
	count    int64
	finalize Finalizer
}

// Init sets the count to one and records the finalizer. A nil finalizer is
// allowed; Unref then simply lets the garbage collector reclaim the object.
func (rc *RefCount) Init(finalize Finalizer) {
	rc.count = 1
	rc.finalize = finalize
}

// Ref increments the count. It panics if the object has already been
// finalized, which always indicates a use-after-free in the caller.
func (rc *RefCount) Ref() {
	if rc.count <= 0 {
		panic(fmt.Sprintf("managed: Ref on dead object (count %d)", rc.count))
	}
	rc.count++
}

// Unref decrements the count. When the count reaches zero the finalizer runs
// and Unref reports true; the object must not be used afterward. Unref on an
// already-dead object panics.
func (rc *RefCount) Unref() bool {
	if rc.count <= 0 {
		panic(fmt.Sprintf("managed: Unref on dead object (count %d)", rc.count))
	}
	rc.count--
	if rc.count > 0 {
		return false
	}
	if rc.finalize != nil {
		rc.finalize()
	}
	return true
}

// Refs returns the current count. Zero means the object has been finalized.
func (rc *RefCount) Refs() int64 {
	return rc.count
}

// RefValue calls Ref on v if it is a managed Object. Containers use it when
// storing values whose keys require managed participation.
func RefValue(v any) {
	if obj, ok := v.(Object); ok {
		obj.Ref()
	}
}

// UnrefValue calls Unref on v if it is a managed Object.
func UnrefValue(v any) {
	if obj, ok := v.(Object); ok {
		obj.Unref()
	}
}
