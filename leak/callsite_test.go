package leak

import (
	"runtime"
	"testing"
)

// captureStack's skip count is calibrated for the Record/RecordHint
// call chain, so these tests reach it through a Tracker rather than
// calling it directly.

func TestCaptureStackReturnsAtLeastOneFrame(t *testing.T) {
	tr := newTestTracker(newTestCore(t, 4))
	tr.Record()
	pcs := tr.head.Load().stack
	if len(pcs) == 0 {
		t.Fatal("expected at least one captured frame")
	}
}

func TestCaptureStackSkipsItsOwnPlumbing(t *testing.T) {
	tr := newTestTracker(newTestCore(t, 4))
	tr.Record()
	pcs := tr.head.Load().stack
	frames := runtime.CallersFrames(pcs)
	frame, _ := frames.Next()
	if frame.Function != "github.com/quillfen/leakwatch/leak.TestCaptureStackSkipsItsOwnPlumbing" {
		t.Fatalf("expected the first captured frame to be this test, got %s", frame.Function)
	}
}
