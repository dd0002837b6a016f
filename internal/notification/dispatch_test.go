package notification

import (
	"context"
	"testing"
	"time"
)

func TestDispatcherRunsJobsDetached(t *testing.T) {
	t.Parallel()

	delivered := make(chan dispatchJob, 4)
	metrics := &Metrics{StartTime: time.Now()}
	d := newDispatcher(2, 4, func(_ context.Context, job dispatchJob) {
		delivered <- job
	}, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.start(ctx)

	d.enqueue(dispatchJob{Recipient: Recipient{ID: 1}, Type: TypeDonation})

	select {
	case job := <-delivered:
		if job.Recipient.ID != 1 {
			t.Errorf("delivered recipient %d, want 1", job.Recipient.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("enqueued job never ran")
	}

	if got := metrics.Dispatched.Load(); got != 1 {
		t.Errorf("Dispatched = %d, want 1", got)
	}
}

func TestDispatcherNeverBlocksTheCaller(t *testing.T) {
	t.Parallel()

	// No workers started: the queue fills and further enqueues must drop
	// instead of stalling the triggering request
	metrics := &Metrics{StartTime: time.Now()}
	d := newDispatcher(1, 1, func(_ context.Context, _ dispatchJob) {}, metrics)

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.enqueue(dispatchJob{Recipient: Recipient{ID: 1}})
		d.enqueue(dispatchJob{Recipient: Recipient{ID: 2}})
		d.enqueue(dispatchJob{Recipient: Recipient{ID: 3}})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked the caller")
	}

	if got := metrics.Dropped.Load(); got != 2 {
		t.Errorf("Dropped = %d, want 2", got)
	}
	if got := metrics.Dispatched.Load(); got != 1 {
		t.Errorf("Dispatched = %d, want 1", got)
	}
}

func TestDispatcherEnqueueAfterStopDropsTheJob(t *testing.T) {
	t.Parallel()

	metrics := &Metrics{StartTime: time.Now()}
	d := newDispatcher(2, 4, func(_ context.Context, _ dispatchJob) {}, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.start(ctx)

	d.stop()
	d.stop() // idempotent

	// A producer that raced past the shutdown must be dropped, not panic
	// the process on the closed queue
	d.enqueue(dispatchJob{Recipient: Recipient{ID: 1}, Type: TypeDonation})

	if got := metrics.Dropped.Load(); got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
	if got := metrics.Dispatched.Load(); got != 0 {
		t.Errorf("Dispatched = %d, want 0", got)
	}
}
