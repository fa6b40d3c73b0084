package leak

import "runtime"

// plumbingFrames is the number of stack frames, counted from
// runtime.Callers itself, that belong to this package's own call
// chain into captureStack rather than to the caller that actually
// touched a tracked resource.
//
// The chain is: runtime.Callers -> captureStack -> newRecord ->
// Tracker.record -> {Record,RecordHint} (the exported entry point).
// That is five frames of plumbing; skipping them lands frame zero of
// the captured trace on whoever called Record/RecordHint. This is
// re-derived here rather than copied from elsewhere, since the
// correct skip count is a property of this call chain, not a
// universal constant.
const plumbingFrames = 5

const maxStackDepth = 32

// captureStack records the call stack of whoever is about to own a
// new access record. The frames are opaque program counters; they
// are only resolved into symbols at render time, via
// runtime.CallersFrames, since resolving them eagerly is
// comparatively expensive and most captured records are never
// rendered.
func captureStack() []uintptr {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(plumbingFrames, pcs)
	return pcs[:n]
}
