package leak

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
	"weak"

	leakerrors "github.com/quillfen/leakwatch/internal/errors"
	"github.com/quillfen/leakwatch/internal/conf"
	"github.com/quillfen/leakwatch/internal/logging"
	"github.com/quillfen/leakwatch/internal/metrics"
)

// detectorCore holds every piece of Detector state that does not
// depend on the tracked resource's concrete type, so a single
// implementation backs every Detector[T] regardless of T. Go's weak
// pointers and cleanups are generic over the tracked type, but
// everything downstream of "an object became unreachable" (the
// active set, the reclaim queue, deduplication, reporting, metrics)
// is not, and is kept here untyped.
type detectorCore struct {
	resourceType     string
	level            atomic.Int32
	samplingInterval int
	targetRecords    int

	active       sync.Map // key == value == *Tracker
	reclaimQueue chan *Tracker

	trails     *trailCache
	reporter   Reporter
	metrics    *metrics.LeakMetrics
	exclusions *ExclusionRegistry

	// sampler returns a pseudo-random value in [0, n). It is
	// overridable so tests can make sampling and back-off decisions
	// deterministic.
	sampler func(n int) int

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func (c *detectorCore) reclaimLoop() {
	defer c.wg.Done()
	for {
		select {
		case t := <-c.reclaimQueue:
			c.reportLeak(t)
		case <-c.stop:
			for {
				select {
				case t := <-c.reclaimQueue:
					c.reportLeak(t)
				default:
					return
				}
			}
		}
	}
}

// onReclaim is invoked by the Go runtime, on a dedicated goroutine,
// once the resource a Tracker was watching becomes unreachable
// without having been closed. It is the Go analogue of draining a
// PhantomReference queue: instead of polling, the runtime pushes.
func (c *detectorCore) onReclaim(t *Tracker) {
	select {
	case c.reclaimQueue <- t:
	default:
		logging.Logger().Warn("leak reclaim queue full, dropping reclaim notification",
			"resource_type", c.resourceType)
	}
}

// reportLeak fires when a tracked resource was garbage collected
// without Close having run. A Tracker that was already closed
// normally loses the active-set race here and reportLeak returns
// immediately: CompareAndDelete making closure and reclaim mutually
// exclusive is what keeps a correctly-closed resource from ever being
// reported, even if its cleanup was already in flight when Close ran.
func (c *detectorCore) reportLeak(t *Tracker) {
	if !c.active.CompareAndDelete(t, t) {
		return
	}
	c.metrics.TrackerClosed()

	if !logging.ReporterEnabled(context.Background()) {
		return
	}

	trail := t.renderTrail(c.exclusions)
	traced := trail != ""

	var message string
	if traced {
		message = fmt.Sprintf(
			"LEAK: %s was garbage collected without close() being called. %s",
			c.resourceType, trail)
	} else {
		message = fmt.Sprintf(
			"LEAK: %s was garbage collected without close() being called. "+
				"Enable advanced leak detection to find where it was allocated.",
			c.resourceType)
	}

	dedupKey := trail
	if !traced {
		dedupKey = "<untraced>"
	}
	if c.trails.seenBefore(dedupKey) {
		c.metrics.ReportDuplicated()
		return
	}

	c.metrics.ReportEmitted(traced)
	c.reporter.Submit(Report{ResourceType: c.resourceType, Traced: traced, Message: message})
}

func (c *detectorCore) close() {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.wg.Wait()
		c.reporter.Close()
	})
}

// Option configures a Detector at construction time.
type Option func(*detectorCore)

func WithLevel(l Level) Option {
	return func(c *detectorCore) { c.level.Store(int32(l)) }
}

func WithReporter(r Reporter) Option {
	return func(c *detectorCore) { c.reporter = r }
}

func WithMetrics(m *metrics.LeakMetrics) Option {
	return func(c *detectorCore) { c.metrics = m }
}

func WithExclusions(r *ExclusionRegistry) Option {
	return func(c *detectorCore) { c.exclusions = r }
}

func WithTargetRecords(n int) Option {
	return func(c *detectorCore) { c.targetRecords = n }
}

func WithTrailCache(ttl time.Duration, capacity int) Option {
	return func(c *detectorCore) { c.trails = newTrailCache(ttl, capacity) }
}

func WithReclaimQueueSize(n int) Option {
	return func(c *detectorCore) { c.reclaimQueue = make(chan *Tracker, n) }
}

// WithSampler overrides the pseudo-random source used for sampling
// gate decisions and back-off drops. Intended for tests.
func WithSampler(f func(n int) int) Option {
	return func(c *detectorCore) { c.sampler = f }
}

// Detector samples resources of type T for leak tracking. The zero
// value is not usable; construct with NewDetector.
type Detector[T any] struct {
	core *detectorCore
}

// NewDetector constructs a Detector for resourceType, sampling on
// average one in samplingInterval calls to Track (a random draw per
// call) at levels below Paranoid.
// samplingInterval must be at least 1: a zero interval has no
// sensible probabilistic meaning and is rejected as invalid
// configuration rather than silently treated as "always" or "never".
func NewDetector[T any](resourceType string, samplingInterval int, opts ...Option) (*Detector[T], error) {
	if resourceType == "" {
		return nil, leakerrors.New(nil).
			Category(leakerrors.CategoryValidation).
			Context("reason", "resourceType must not be empty").
			Build()
	}
	if samplingInterval < 1 {
		return nil, leakerrors.New(nil).
			Category(leakerrors.CategoryConfiguration).
			Context("samplingInterval", samplingInterval).
			Context("reason", "sampling interval must be >= 1").
			Build()
	}

	core := &detectorCore{
		resourceType:     resourceType,
		samplingInterval: samplingInterval,
		targetRecords:    conf.DefaultTargetRecords,
		reclaimQueue:     make(chan *Tracker, 256),
		trails:           newTrailCache(10*time.Minute, 1024),
		reporter:         NewAsyncReporter(nil, 256, 2),
		exclusions:       GlobalExclusions(),
		sampler:          rand.Intn,
		stop:             make(chan struct{}),
	}
	core.level.Store(int32(GlobalLevel()))

	for _, opt := range opts {
		opt(core)
	}
	if core.targetRecords < 1 {
		return nil, leakerrors.New(nil).
			Category(leakerrors.CategoryConfiguration).
			Context("targetRecords", core.targetRecords).
			Context("reason", "target records must be >= 1").
			Build()
	}

	core.wg.Add(1)
	go core.reclaimLoop()

	return &Detector[T]{core: core}, nil
}

// NewDetectorFromSettings builds a Detector using a resolved
// conf.Settings value, translating its Level string and TargetRecords
// into the matching options.
func NewDetectorFromSettings[T any](resourceType string, samplingInterval int, s conf.Settings, opts ...Option) (*Detector[T], error) {
	level, err := ParseLevel(s.Level)
	if err != nil {
		return nil, err
	}
	all := append([]Option{WithLevel(level), WithTargetRecords(s.TargetRecords)}, opts...)
	return NewDetector[T](resourceType, samplingInterval, all...)
}

// Track begins following obj for leak detection, returning nil if the
// Detector is Disabled or this call was not selected by sampling.
// Paranoid-level detectors bypass sampling entirely; every other
// level samples at the configured interval. Once a Tracker is
// created, it records the same way regardless of level. Simple and
// Advanced are handled identically here: both sample at the configured
// interval, and a sampled resource traces at either level.
func (d *Detector[T]) Track(obj *T) *Tracker {
	level := Level(d.core.level.Load())
	if level == Disabled {
		return nil
	}

	if level != Paranoid {
		if d.core.sampler(d.core.samplingInterval) != 0 {
			return nil
		}
	}

	t := newTrackerFor(d.core, obj)
	d.core.active.Store(t, t)
	d.core.metrics.TrackerOpened()
	return t
}

// newTrackerFor is a free function rather than a Detector method
// because it needs its own type parameter tied to obj, distinct from
// (and in practice identical to) Detector's T. Go methods cannot
// introduce additional type parameters.
func newTrackerFor[T any](core *detectorCore, obj *T) *Tracker {
	t := &Tracker{
		core:        core,
		trackedHash: uintptr(unsafe.Pointer(obj)),
	}
	t.head.Store(bottomRecord)

	wp := weak.Make(obj)
	t.alive = func() bool { return wp.Value() != nil }
	t.cleanup = runtime.AddCleanup(obj, core.onReclaim, t)

	return t
}

// Level returns the Detector's current level.
func (d *Detector[T]) Level() Level {
	return Level(d.core.level.Load())
}

// SetLevel changes the Detector's level at runtime.
func (d *Detector[T]) SetLevel(l Level) {
	d.core.level.Store(int32(l))
}

// ActiveCount returns the number of resources currently tracked
// without having been closed or reclaimed. Intended for diagnostics
// and tests; it walks the whole active set.
func (d *Detector[T]) ActiveCount() int {
	n := 0
	d.core.active.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close stops the Detector's background reclaim processing and closes
// its Reporter. Trackers that are already tracking continue to exist,
// but leaks discovered after Close are no longer reported.
func (d *Detector[T]) Close() {
	d.core.close()
}
