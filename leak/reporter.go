package leak

import (
	"context"
	"log/slog"
	"sync"

	"github.com/quillfen/leakwatch/internal/logging"
)

// Report is a fully-rendered leak observation handed to a Reporter.
type Report struct {
	ResourceType string
	Traced       bool
	Message      string
}

// Reporter consumes leak reports. Implementations must not block the
// caller of Submit for long; AsyncReporter is the default
// implementation used by Detector.
type Reporter interface {
	Submit(r Report)
	Close()
}

// LoggingReporter renders reports straight onto a slog.Logger at
// error level, synchronously. It exists mainly for tests and for
// callers that want reports serialized with the rest of their log
// stream rather than dispatched asynchronously.
type LoggingReporter struct {
	Logger *slog.Logger
}

func (r LoggingReporter) Submit(rep Report) {
	logger := r.Logger
	if logger == nil {
		logger = logging.Logger()
	}
	logger.Error("resource leak detected",
		"resource_type", rep.ResourceType,
		"traced", rep.Traced,
		"report", rep.Message,
	)
}

func (r LoggingReporter) Close() {}

// AsyncReporter dispatches reports through a bounded buffered channel
// drained by a small worker pool, so a burst of leak reports never
// blocks the goroutine that discovered them. Modeled on the teacher's
// internal/events event bus.
type AsyncReporter struct {
	logger  *slog.Logger
	queue   chan Report
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// NewAsyncReporter starts workers workers draining a queue of the
// given capacity. Reports submitted after the queue is full are
// dropped with a warning log rather than blocking the submitter.
func NewAsyncReporter(logger *slog.Logger, capacity, workers int) *AsyncReporter {
	if logger == nil {
		logger = logging.Logger()
	}
	if capacity < 1 {
		capacity = 1
	}
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	ar := &AsyncReporter{
		logger: logger,
		queue:  make(chan Report, capacity),
		ctx:    ctx,
		cancel: cancel,
	}

	ar.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go ar.worker()
	}
	return ar
}

func (ar *AsyncReporter) worker() {
	defer ar.wg.Done()
	for {
		select {
		case rep, ok := <-ar.queue:
			if !ok {
				return
			}
			ar.emit(rep)
		case <-ar.ctx.Done():
			// Drain whatever is already queued before exiting.
			for {
				select {
				case rep, ok := <-ar.queue:
					if !ok {
						return
					}
					ar.emit(rep)
				default:
					return
				}
			}
		}
	}
}

func (ar *AsyncReporter) emit(rep Report) {
	ar.logger.Error("resource leak detected",
		"resource_type", rep.ResourceType,
		"traced", rep.Traced,
		"report", rep.Message,
	)
}

// Submit enqueues rep without blocking. If the queue is full the
// report is dropped and a warning is logged instead, since a stalled
// reporter must never slow down the application being observed.
func (ar *AsyncReporter) Submit(rep Report) {
	select {
	case ar.queue <- rep:
	default:
		ar.logger.Warn("leak report queue full, dropping report",
			"resource_type", rep.ResourceType)
	}
}

// Close stops the workers, lets reports already queued drain, and
// waits for every worker to exit. Safe to call more than once. Submit
// does not check for a closed reporter: a report submitted after
// Close is queued but never emitted.
func (ar *AsyncReporter) Close() {
	ar.closeMu.Lock()
	if ar.closed {
		ar.closeMu.Unlock()
		return
	}
	ar.closed = true
	ar.closeMu.Unlock()

	ar.cancel()
	ar.wg.Wait()
}
