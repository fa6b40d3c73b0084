package leak

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type demoBuffer struct {
	data []byte
}

func TestNewDetectorRejectsZeroSamplingInterval(t *testing.T) {
	_, err := NewDetector[demoBuffer]("demoBuffer", 0)
	require.Error(t, err)
}

func TestNewDetectorRejectsEmptyResourceType(t *testing.T) {
	_, err := NewDetector[demoBuffer]("", 1)
	require.Error(t, err)
}

func TestTrackReturnsNilWhenDisabled(t *testing.T) {
	d, err := NewDetector[demoBuffer]("demoBuffer", 1, WithLevel(Disabled))
	require.NoError(t, err)
	defer d.Close()

	tr := d.Track(&demoBuffer{})
	assert.Nil(t, tr)
}

func TestTrackAlwaysSamplesWhenIntervalOne(t *testing.T) {
	d, err := NewDetector[demoBuffer]("demoBuffer", 1, WithLevel(Simple))
	require.NoError(t, err)
	defer d.Close()

	tr := d.Track(&demoBuffer{})
	assert.NotNil(t, tr)
	tr.Close()
}

func TestTrackSkipsNonSampledCalls(t *testing.T) {
	calls := 0
	sampler := func(n int) int {
		calls++
		if calls == 1 {
			return 1 // not sampled
		}
		return 0 // sampled
	}
	d, err := NewDetector[demoBuffer]("demoBuffer", 5, WithLevel(Simple), WithSampler(sampler))
	require.NoError(t, err)
	defer d.Close()

	first := d.Track(&demoBuffer{})
	second := d.Track(&demoBuffer{})

	assert.Nil(t, first)
	require.NotNil(t, second)
	second.Close()
}

func TestParanoidLevelAlwaysTracesAndBypassesSampling(t *testing.T) {
	d, err := NewDetector[demoBuffer]("demoBuffer", 1000, WithLevel(Paranoid),
		WithSampler(func(n int) int { return 1 })) // would reject every sample if consulted
	require.NoError(t, err)
	defer d.Close()

	tr := d.Track(&demoBuffer{})
	require.NotNil(t, tr)
	tr.Record()
	assert.Contains(t, tr.renderTrail(nil), "Recent access records")
	tr.Close()
}

func TestSimpleLevelTracesSampledResources(t *testing.T) {
	d, err := NewDetector[demoBuffer]("demoBuffer", 1, WithLevel(Simple))
	require.NoError(t, err)
	defer d.Close()

	tr := d.Track(&demoBuffer{})
	require.NotNil(t, tr)
	tr.Record()

	assert.Contains(t, tr.renderTrail(nil), "Recent access records")
	tr.Close()
}

func TestClosedResourceIsNeverReported(t *testing.T) {
	var mu sync.Mutex
	var reports []Report
	reporter := recordingReporter{mu: &mu, reports: &reports}

	d, err := NewDetector[demoBuffer]("demoBuffer", 1,
		WithLevel(Advanced), WithReporter(reporter), WithReclaimQueueSize(4))
	require.NoError(t, err)
	defer d.Close()

	tr := d.Track(&demoBuffer{})
	require.NotNil(t, tr)
	tr.Close()

	// Simulate the GC-triggered reclaim notification that would
	// normally arrive asynchronously; after Close, reportLeak must
	// decline to report because the active-set entry is already gone.
	d.core.reportLeak(tr)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, reports)
}

func TestUnclosedResourceIsReportedOnReclaim(t *testing.T) {
	var mu sync.Mutex
	var reports []Report
	reporter := recordingReporter{mu: &mu, reports: &reports}

	d, err := NewDetector[demoBuffer]("demoBuffer", 1,
		WithLevel(Advanced), WithReporter(reporter), WithReclaimQueueSize(4))
	require.NoError(t, err)
	defer d.Close()

	tr := d.Track(&demoBuffer{})
	require.NotNil(t, tr)
	tr.RecordHint("allocated here")

	d.core.reportLeak(tr)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Traced)
	assert.Contains(t, reports[0].Message, "allocated here")
}

func TestUntouchedResourceReportsAsUntraced(t *testing.T) {
	var mu sync.Mutex
	var reports []Report
	reporter := recordingReporter{mu: &mu, reports: &reports}

	d, err := NewDetector[demoBuffer]("demoBuffer", 1,
		WithLevel(Simple), WithReporter(reporter), WithReclaimQueueSize(4))
	require.NoError(t, err)
	defer d.Close()

	tr := d.Track(&demoBuffer{})
	require.NotNil(t, tr)
	// Never touched: trail is empty regardless of level.

	d.core.reportLeak(tr)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Traced)
}

func TestDuplicateTrailsAreSuppressed(t *testing.T) {
	var mu sync.Mutex
	var reports []Report
	reporter := recordingReporter{mu: &mu, reports: &reports}

	d, err := NewDetector[demoBuffer]("demoBuffer", 1,
		WithLevel(Simple), WithReporter(reporter), WithReclaimQueueSize(8),
		WithTrailCache(time.Hour, 16))
	require.NoError(t, err)
	defer d.Close()

	first := d.Track(&demoBuffer{})
	second := d.Track(&demoBuffer{})
	require.NotNil(t, first)
	require.NotNil(t, second)

	d.core.reportLeak(first)
	d.core.reportLeak(second)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, reports, 1)
}

func TestActiveCountReflectsOpenTrackers(t *testing.T) {
	d, err := NewDetector[demoBuffer]("demoBuffer", 1, WithLevel(Simple))
	require.NoError(t, err)
	defer d.Close()

	tr1 := d.Track(&demoBuffer{})
	tr2 := d.Track(&demoBuffer{})
	require.NotNil(t, tr1)
	require.NotNil(t, tr2)

	assert.Equal(t, 2, d.ActiveCount())
	tr1.Close()
	assert.Equal(t, 1, d.ActiveCount())
	tr2.Close()
	assert.Equal(t, 0, d.ActiveCount())
}

type recordingReporter struct {
	mu      *sync.Mutex
	reports *[]Report
}

func (r recordingReporter) Submit(rep Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.reports = append(*r.reports, rep)
}

func (r recordingReporter) Close() {}
