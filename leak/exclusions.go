package leak

import (
	"reflect"
	"sync/atomic"

	leakerrors "github.com/quillfen/leakwatch/internal/errors"
)

// ExclusionRegistry is a process-wide, append-only, lock-free set of
// (owner, method) pairs whose stack frames are elided from rendered
// access trails. Entries are copy-on-write: readers always see a
// consistent snapshot, and there is no remove.
type ExclusionRegistry struct {
	entries atomic.Pointer[[]exclusionEntry]
}

type exclusionEntry struct {
	owner  string
	method string
}

// NewExclusionRegistry returns an empty registry.
func NewExclusionRegistry() *ExclusionRegistry {
	r := &ExclusionRegistry{}
	empty := []exclusionEntry{}
	r.entries.Store(&empty)
	return r
}

// globalExclusions is the process-wide registry consulted by every
// Tracker unless a Detector was given a private one via WithExclusions.
var globalExclusions = NewExclusionRegistry()

// GlobalExclusions returns the process-wide Exclusion Registry.
func GlobalExclusions() *ExclusionRegistry { return globalExclusions }

// Add atomically appends the (owner, method) pairs without checking
// that the methods exist on owner. owner is
// a plain string identifying the type for matching against captured
// stack frames (see splitFunction); no reflection is performed
// against it, since a caller that only knows a type's printed name
// has no reflect.Type to check against. Use AddType to get the
// validated behavior the source implementation has.
func (r *ExclusionRegistry) Add(owner string, methods ...string) error {
	if owner == "" || len(methods) == 0 {
		return leakerrors.New(nil).
			Category(leakerrors.CategoryValidation).
			Context("owner", owner).
			Context("reason", "owner and at least one method are required").
			Build()
	}
	r.append(owner, methods)
	return nil
}

// AddType behaves like Add but additionally validates, via
// reflection, that each method actually exists on t (or *t). This is
// the closest Go analogue to the source implementation's reflective
// validation; Add exists for callers that only have a printed type
// name and cannot supply a reflect.Type.
func (r *ExclusionRegistry) AddType(t reflect.Type, methods ...string) error {
	if t == nil || len(methods) == 0 {
		return leakerrors.New(nil).
			Category(leakerrors.CategoryValidation).
			Context("reason", "type and at least one method are required").
			Build()
	}
	ptrType := t
	if ptrType.Kind() != reflect.Pointer {
		ptrType = reflect.PointerTo(t)
	}
	var missing []string
	for _, m := range methods {
		if _, ok := ptrType.MethodByName(m); !ok {
			if _, ok := t.MethodByName(m); !ok {
				missing = append(missing, m)
			}
		}
	}
	if len(missing) > 0 {
		return leakerrors.New(nil).
			Category(leakerrors.CategoryValidation).
			Context("owner", t.String()).
			Context("missing_methods", missing).
			Build()
	}
	// Register owners in the form splitFunction yields for frames:
	// "pkgpath.Type" for value-receiver methods, "pkgpath.(*Type)" for
	// pointer-receiver ones.
	elem := t
	if elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	var valueMethods, ptrMethods []string
	for _, m := range methods {
		if _, ok := elem.MethodByName(m); ok {
			valueMethods = append(valueMethods, m)
		} else {
			ptrMethods = append(ptrMethods, m)
		}
	}
	if len(valueMethods) > 0 {
		r.append(elem.PkgPath()+"."+elem.Name(), valueMethods)
	}
	if len(ptrMethods) > 0 {
		r.append(elem.PkgPath()+".(*"+elem.Name()+")", ptrMethods)
	}
	return nil
}

func (r *ExclusionRegistry) append(owner string, methods []string) {
	for {
		old := r.entries.Load()
		next := make([]exclusionEntry, 0, len(*old)+len(methods))
		next = append(next, *old...)
		for _, m := range methods {
			next = append(next, exclusionEntry{owner: owner, method: m})
		}
		if r.entries.CompareAndSwap(old, &next) {
			return
		}
	}
}

func (r *ExclusionRegistry) excluded(owner, method string) bool {
	for _, e := range *r.entries.Load() {
		if e.owner == owner && e.method == method {
			return true
		}
	}
	return false
}
