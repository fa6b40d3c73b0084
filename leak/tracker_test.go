package leak

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zeroSampler(n int) int { return 0 }

func newTestCore(t *testing.T, targetRecords int) *detectorCore {
	t.Helper()
	return &detectorCore{
		resourceType:  "testResource",
		targetRecords: targetRecords,
		trails:        newTrailCache(0, 16),
		sampler:       zeroSampler,
	}
}

func newTestTracker(core *detectorCore) *Tracker {
	obj := new(int)
	return newTrackerFor(core, obj)
}

func TestNilTrackerMethodsAreNoOps(t *testing.T) {
	var tr *Tracker
	tr.Record()
	tr.RecordHint("hint")
	tr.Close()
	assert.NoError(t, tr.CloseResource(new(int)))
	assert.False(t, tr.Alive())
}

func TestAliveReflectsLiveness(t *testing.T) {
	core := newTestCore(t, 4)
	tr := newTestTracker(core)

	assert.True(t, tr.Alive())
}

func TestRenderTrailEmptyWhenNeverTouched(t *testing.T) {
	core := newTestCore(t, 4)
	tr := newTestTracker(core)

	assert.Equal(t, "", tr.renderTrail(nil))
}

func TestRecordBuildsTrail(t *testing.T) {
	core := newTestCore(t, 4)
	tr := newTestTracker(core)

	tr.RecordHint("first touch")
	tr.Record()

	trail := tr.renderTrail(nil)
	assert.Contains(t, trail, "Recent access records")
	assert.Contains(t, trail, "Created at:")
	assert.Contains(t, trail, "first touch")
}

func TestRecordLabelsOldestRecordAsCreatedAt(t *testing.T) {
	core := newTestCore(t, 4)
	tr := newTestTracker(core)

	tr.Record()
	tr.Record()
	tr.RecordHint("decode")

	trail := tr.renderTrail(nil)
	assert.Contains(t, trail, "#1:")
	assert.Contains(t, trail, "#2:")
	assert.Contains(t, trail, "Created at:")
	assert.Contains(t, trail, "Hint: decode")
}

func TestCloseIsIdempotentAndClearsTrail(t *testing.T) {
	core := newTestCore(t, 4)
	tr := newTestTracker(core)
	tr.Record()

	tr.core.active.Store(tr, tr)
	tr.Close()
	tr.Close() // second call must not panic or double-count

	assert.Equal(t, "", tr.renderTrail(nil))
}

func TestCloseResourceRejectsMismatchedObject(t *testing.T) {
	core := newTestCore(t, 4)
	tr := newTestTracker(core)
	core.active.Store(tr, tr)

	err := tr.CloseResource(new(int))
	require.Error(t, err)

	// the tracker must still be open after a rejected close
	assert.True(t, func() bool {
		_, ok := core.active.Load(tr)
		return ok
	}())
}

func TestBackOffDropsRecordsPastTargetWhenSamplerNonZero(t *testing.T) {
	core := newTestCore(t, 2)
	core.sampler = func(n int) int { return 1 } // always "drop"
	tr := newTestTracker(core)

	for i := 0; i < 10; i++ {
		tr.Record()
	}

	assert.Positive(t, tr.droppedRecords.Load())
}

func TestBackOffNeverDropsBelowTarget(t *testing.T) {
	core := newTestCore(t, 100)
	core.sampler = func(n int) int { return 1 }
	tr := newTestTracker(core)

	for i := 0; i < 5; i++ {
		tr.Record()
	}

	assert.Equal(t, uint64(0), tr.droppedRecords.Load())
}

func TestPointerHashRejectsNonPointerValues(t *testing.T) {
	_, err := pointerHash(42)
	require.Error(t, err)
}

func TestPointerHashAcceptsPointer(t *testing.T) {
	v := new(int)
	h, err := pointerHash(v)
	require.NoError(t, err)
	assert.NotZero(t, h)
}
