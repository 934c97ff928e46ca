package trace

import (
	"sync"
	"time"

	"github.com/mohitkumar/forge/logger"
	"github.com/mohitkumar/forge/model"
	"github.com/mohitkumar/forge/util"
	"go.uber.org/zap"
)

const DEFAULT_CAPACITY = 1024

// Recorder is the single sink for trace events. Producers on any goroutine
// call Emit; one worker goroutine assigns sequence numbers, appends to the
// history, feeds the cost ledger and fans out to subscribers. Seq is strictly
// increasing across the whole run, parallel steps included.
type Recorder struct {
	worker    *util.Worker
	wg        sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}

	mu          sync.RWMutex
	seq         uint64
	history     []model.TraceEvent
	subscribers []chan model.TraceEvent

	ledger    *CostLedger
	collector Collector
}

type Option func(*Recorder)

func WithCollector(c Collector) Option {
	return func(r *Recorder) {
		r.collector = c
	}
}

func NewRecorder(capacity int, opts ...Option) *Recorder {
	if capacity <= 0 {
		capacity = DEFAULT_CAPACITY
	}
	r := &Recorder{
		ledger: NewCostLedger(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.worker = util.NewWorker("trace-recorder", &r.wg, r.handle, capacity)
	r.worker.Start()
	return r
}

func (r *Recorder) Emit(event model.TraceEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	r.worker.Sender() <- event
}

func (r *Recorder) handle(task util.Task) error {
	if barrier, ok := task.(chan struct{}); ok {
		close(barrier)
		return nil
	}
	event := task.(model.TraceEvent)
	r.mu.Lock()
	r.seq++
	event.Seq = r.seq
	r.history = append(r.history, event)
	subscribers := r.subscribers
	r.mu.Unlock()

	r.ledger.Record(&event)
	recordMetrics(&event)
	if r.collector != nil {
		if err := r.collector.Collect(&event); err != nil {
			return err
		}
	}
	for _, sub := range subscribers {
		select {
		case sub <- event:
		default:
			// slow subscriber, drop rather than stall the sink
		}
	}
	return nil
}

// History returns a copy of all events recorded so far, in seq order.
func (r *Recorder) History() []model.TraceEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.TraceEvent, len(r.history))
	copy(out, r.history)
	return out
}

// Subscribe returns a channel receiving events as they are recorded.
func (r *Recorder) Subscribe() <-chan model.TraceEvent {
	ch := make(chan model.TraceEvent, 64)
	r.mu.Lock()
	r.subscribers = append(r.subscribers, ch)
	r.mu.Unlock()
	return ch
}

func (r *Recorder) Ledger() *CostLedger {
	return r.ledger
}

// Flush blocks until every event emitted before the call has been handled.
// After Close the history is already final and Flush is a no-op.
func (r *Recorder) Flush() {
	barrier := make(chan struct{})
	select {
	case r.worker.Sender() <- barrier:
	case <-r.done:
		return
	}
	select {
	case <-barrier:
	case <-r.done:
	}
}

// Close drains pending events and shuts the worker down. Emit must not be
// called after Close.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.worker.Stop()
		r.wg.Wait()
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, sub := range r.subscribers {
			close(sub)
		}
		r.subscribers = nil
		close(r.done)
		if r.collector != nil {
			if err := r.collector.Close(); err != nil {
				logger.Error("error closing trace collector", zap.Error(err))
			}
		}
	})
}
