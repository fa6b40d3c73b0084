package leak

import (
	"fmt"
	"runtime"
	"strings"
)

// Hint is the narrow capability interface a caller-supplied hint may
// implement to control its own rendering, instead of falling back to
// its default string form.
type Hint interface {
	LeakHint() string
}

// Record is one immutable node of a Tracker's access trail. Records
// form a singly linked stack terminated by the shared bottomRecord
// sentinel; pos counts depth from that sentinel, which sits at -1.
type Record struct {
	hint    string
	hasHint bool
	stack   []uintptr
	next    *Record
	pos     int
}

// bottomRecord is the shared terminator of every access trail.
var bottomRecord = &Record{pos: -1}

// newRecord allocates a record on top of next, capturing the current
// call stack immediately. The frames are not stable once control
// returns to the caller, so deferring capture to render time would
// observe the wrong stack entirely.
func newRecord(next *Record, hint any) *Record {
	r := &Record{
		next:  next,
		pos:   next.pos + 1,
		stack: captureStack(),
	}
	if hint != nil {
		r.hint = renderHintSafe(hint)
		r.hasHint = true
	}
	return r
}

// renderHintSafe resolves a hint to its string form immediately, so
// that later formatting can never observe a hint object mutated after
// the record was created. A panicking hint renderer is swallowed and
// treated as no hint at all, per the render-errors-never-corrupt-state
// rule.
func renderHintSafe(hint any) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	if h, ok := hint.(Hint); ok {
		return h.LeakHint()
	}
	return fmt.Sprint(hint)
}

// body renders this record's hint line (if any) followed by its
// captured stack trace, one tab-indented frame per line, eliding any
// frame whose owner/method pair is registered in excl.
func (r *Record) body(excl *ExclusionRegistry) string {
	var b strings.Builder
	if r.hasHint {
		b.WriteString("\tHint: ")
		b.WriteString(r.hint)
		b.WriteString("\n")
	}

	frames := runtime.CallersFrames(r.stack)
	for {
		frame, more := frames.Next()
		owner, method := splitFunction(frame.Function)
		if excl == nil || !excl.excluded(owner, method) {
			b.WriteString("\t")
			b.WriteString(formatFrame(frame))
			b.WriteString("\n")
		}
		if !more {
			break
		}
	}
	return b.String()
}

// splitFunction splits a fully qualified runtime function name such
// as "example.com/mod/pkg.(*Type).Method" into an owner
// ("example.com/mod/pkg.(*Type)") and a method ("Method") for
// matching against the Exclusion Registry.
func splitFunction(fn string) (owner, method string) {
	i := strings.LastIndex(fn, ".")
	if i < 0 {
		return "", fn
	}
	return fn[:i], fn[i+1:]
}

func formatFrame(frame runtime.Frame) string {
	return fmt.Sprintf("%s(%s:%d)", frame.Function, trimPath(frame.File), frame.Line)
}

// trimPath keeps only the final path element of a source file so
// rendered trails stay legible without leaking the build machine's
// absolute filesystem layout.
func trimPath(file string) string {
	if i := strings.LastIndex(file, "/"); i >= 0 {
		return file[i+1:]
	}
	return file
}
