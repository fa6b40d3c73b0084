package leak

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync/atomic"

	leakerrors "github.com/quillfen/leakwatch/internal/errors"
)

// Tracker follows one tracked resource from Detector.Track through to
// Close or garbage collection. A Tracker obtained from a Disabled-level
// Detector is nil; every method on a nil *Tracker is a safe no-op so
// call sites never need a level check of their own.
type Tracker struct {
	core *detectorCore

	head           atomic.Pointer[Record]
	droppedRecords atomic.Uint64

	trackedHash uintptr
	alive       func() bool
	cleanup     runtime.Cleanup
}

// Record appends an untitled access record to the trail. A no-op on a
// nil Tracker.
func (t *Tracker) Record() {
	if t == nil {
		return
	}
	t.record(nil)
}

// RecordHint behaves like Record but attaches hint, rendered alongside
// the captured stack frames.
func (t *Tracker) RecordHint(hint any) {
	if t == nil {
		return
	}
	t.record(hint)
}

// record implements the bounded-depth access trail: once the trail
// holds at least core.targetRecords entries, each further record has
// an exponentially increasing chance of replacing the current top
// entry instead of growing the trail, so depth stays at
// targetRecords + O(log n) for n total touches.
func (t *Tracker) record(hint any) {
	for {
		oldHead := t.head.Load()
		if oldHead == nil {
			return // already closed
		}

		prevHead := oldHead
		dropped := false
		if numElements := oldHead.pos + 1; numElements >= t.core.targetRecords {
			backOffFactor := numElements - t.core.targetRecords
			if backOffFactor > 30 {
				backOffFactor = 30
			}
			if t.core.sampler(1<<uint(backOffFactor)) != 0 {
				dropped = true
				prevHead = oldHead.next
			}
		}

		newHead := newRecord(prevHead, hint)
		if t.head.CompareAndSwap(oldHead, newHead) {
			if dropped {
				t.droppedRecords.Add(1)
				t.core.metrics.RecordDropped()
			}
			return
		}
	}
}

// Alive reports whether the tracked resource has not yet been
// observed as unreachable by the garbage collector. It is a weak,
// best-effort read (the object may become unreachable immediately
// after this returns true) intended for diagnostics, not for
// synchronization.
func (t *Tracker) Alive() bool {
	if t == nil || t.alive == nil {
		return false
	}
	return t.alive()
}

// Close marks the resource as properly released. It is idempotent:
// only the first call has any effect, matching the at-most-once
// active-set removal the Detector's reclaim path depends on.
func (t *Tracker) Close() {
	if t == nil {
		return
	}
	t.dispose()
}

// CloseResource behaves like Close but additionally verifies, by
// pointer identity, that obj is the same resource this Tracker was
// created for. A mismatch is reported as a validation error and the
// Tracker is left open, since the caller has demonstrated it is
// confused about which resource it is closing.
func (t *Tracker) CloseResource(obj any) error {
	if t == nil {
		return nil
	}
	hash, err := pointerHash(obj)
	if err != nil {
		return err
	}
	if hash != t.trackedHash {
		return leakerrors.New(nil).
			Category(leakerrors.CategoryValidation).
			Context("expected", t.trackedHash).
			Context("actual", hash).
			Context("reason", "closed object does not match the tracked object").
			Build()
	}
	t.dispose()
	return nil
}

func (t *Tracker) dispose() {
	if !t.core.active.CompareAndDelete(t, t) {
		return
	}
	t.cleanup.Stop()
	t.head.Store(nil)
	t.core.metrics.TrackerClosed()
}

// renderTrail renders the access trail as the reportable body text.
// Rendering is one-shot: it swaps head to nil, so the trail is
// consumed and later records are ignored.
// Two distinct states both render empty: a Tracker whose head is nil
// has already been closed or reported, and a Tracker whose head is
// still the shared bottomRecord sentinel was tracked but never
// touched. Both cases carry no trail to show, which is exactly the
// "untraced leak" condition a reporter falls back to.
//
// The bottom-most real record, the one that sits just above
// bottomRecord, is the oldest recorded access (Track itself adds no
// record), and it is labeled "Created at:" instead of numbered. Every other record
// is numbered top-down from the most recent touch. Adjacent records
// with an identical rendered body (same hint, same captured stack)
// are collapsed into one entry and counted as duplicates, distinct
// from the back-off drop count below.
func (t *Tracker) renderTrail(excl *ExclusionRegistry) string {
	head := t.head.Swap(nil)
	if head == nil || head == bottomRecord {
		return ""
	}

	var bodies []string
	for cur := head; cur != bottomRecord; cur = cur.next {
		bodies = append(bodies, cur.body(excl))
	}

	var b strings.Builder
	b.WriteString("\nRecent access records: \n")

	duped := 0
	index := 1
	for i, body := range bodies {
		last := i == len(bodies)-1
		if !last && i > 0 && body == bodies[i-1] {
			duped++
			continue
		}
		if last {
			b.WriteString("Created at:\n")
		} else {
			fmt.Fprintf(&b, "#%d:\n", index)
			index++
		}
		b.WriteString(body)
	}

	if duped > 0 {
		fmt.Fprintf(&b, "%d leak records were discarded because they were duplicates\n", duped)
	}
	if dropped := t.droppedRecords.Load(); dropped > 0 {
		fmt.Fprintf(&b, "%d access records were discarded to keep the trail bounded\n", dropped)
	}
	return b.String()
}

// pointerHash computes the identity-hash analogue used to detect a
// caller closing a Tracker with the wrong resource: the numeric value
// of obj's pointer, the closest Go equivalent of
// System.identityHashCode for this purpose. obj must be a pointer,
// channel, map, slice, or function value.
func pointerHash(obj any) (uintptr, error) {
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.Map, reflect.Slice, reflect.Func, reflect.UnsafePointer:
		return uintptr(v.UnsafePointer()), nil
	default:
		return 0, leakerrors.New(nil).
			Category(leakerrors.CategoryValidation).
			Context("kind", v.Kind().String()).
			Context("reason", "closed object has no identity pointer to compare").
			Build()
	}
}
