package notification

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Metrics tracks delivery statistics across the dispatcher's lifetime
type Metrics struct {
	Dispatched    atomic.Int64
	Persisted     atomic.Int64
	PushFailures  atomic.Int64
	EmailsSent    atomic.Int64
	EmailFailures atomic.Int64
	Dropped       atomic.Int64
	StartTime     time.Time
}

// MetricsSnapshot is the JSON projection served on the health endpoint
type MetricsSnapshot struct {
	Dispatched    int64  `json:"dispatched"`
	Persisted     int64  `json:"persisted"`
	PushFailures  int64  `json:"push_failures"`
	EmailsSent    int64  `json:"emails_sent"`
	EmailFailures int64  `json:"email_failures"`
	Dropped       int64  `json:"dropped"`
	Uptime        string `json:"uptime"`
}

// Snapshot reads the counters once for reporting
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Dispatched:    m.Dispatched.Load(),
		Persisted:     m.Persisted.Load(),
		PushFailures:  m.PushFailures.Load(),
		EmailsSent:    m.EmailsSent.Load(),
		EmailFailures: m.EmailFailures.Load(),
		Dropped:       m.Dropped.Load(),
		Uptime:        time.Since(m.StartTime).Round(time.Second).String(),
	}
}

// dispatchJob is one queued Send invocation
type dispatchJob struct {
	Recipient Recipient
	Type      Type
	Content   string
	URL       string
}

// dispatcher runs deliveries as units of work detached from the request that
// triggered them. Callers enqueue and move on; completion and failure are
// observed only through logs and metrics.
type dispatcher struct {
	id      string
	jobs    chan dispatchJob
	workers int
	deliver func(context.Context, dispatchJob)
	metrics *Metrics
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func newDispatcher(workers, buffer int, deliver func(context.Context, dispatchJob), metrics *Metrics) *dispatcher {
	if workers < 1 {
		workers = 4
	}
	if buffer < 1 {
		buffer = 256
	}
	return &dispatcher{
		id:      uuid.New().String(),
		jobs:    make(chan dispatchJob, buffer),
		workers: workers,
		deliver: deliver,
		metrics: metrics,
	}
}

func (d *dispatcher) start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	log.Printf("notification dispatcher %s started, workers=%d", d.id, d.workers)
}

func (d *dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-d.jobs:
			if !ok {
				return
			}
			d.deliver(ctx, job)
		}
	}
}

// enqueue hands a job to the pool without ever blocking the caller. A
// saturated or stopped queue drops the job and counts it; the triggering
// request must not stall on fan-out.
func (d *dispatcher) enqueue(job dispatchJob) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.metrics.Dropped.Add(1)
		log.Printf("dispatcher %s: stopped, dropped %s notification for recipient %d", d.id, job.Type, job.Recipient.ID)
		return
	}

	select {
	case d.jobs <- job:
		d.metrics.Dispatched.Add(1)
	default:
		d.metrics.Dropped.Add(1)
		log.Printf("dispatcher %s: queue full, dropped %s notification for recipient %d", d.id, job.Type, job.Recipient.ID)
	}
}

// stop closes the queue once and waits for in-flight deliveries. Safe to
// call more than once and concurrently with enqueue.
func (d *dispatcher) stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
