package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/giftforyoube/giftipie/internal/funding"
	"github.com/giftforyoube/giftipie/internal/notification"
)

// Notifier is the slice of the notification service the sweep uses: a
// fire-and-forget send plus the listings-invalidation capability
type Notifier interface {
	Send(recipient notification.Recipient, notificationType notification.Type, content, url string)
	InvalidateListings()
}

// FundingStore provides the expiry read model
type FundingStore interface {
	FindExpiredActive(ctx context.Context, asOf time.Time) ([]*funding.ExpiredFunding, error)
	MarkFinished(ctx context.Context, id int64) error
}

// Scheduler runs the daily funding-expiry sweep at midnight
type Scheduler struct {
	fundings FundingStore
	notifier Notifier
	baseURL  string
}

// New creates the expiry scheduler
func New(fundings FundingStore, notifier Notifier, baseURL string) *Scheduler {
	return &Scheduler{fundings: fundings, notifier: notifier, baseURL: baseURL}
}

// Run blocks until ctx is cancelled, sweeping once per day at local midnight
func (s *Scheduler) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(time.Until(nextMidnight(time.Now())))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := s.Sweep(ctx); err != nil {
				log.Printf("expiry sweep failed: %v", err)
			}
		}
	}
}

// Sweep finishes every expired active funding and notifies its owner, then
// invalidates cached listings once for the whole batch. Push and email
// failures never interrupt the batch.
func (s *Scheduler) Sweep(ctx context.Context) error {
	expired, err := s.fundings.FindExpiredActive(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to load expired fundings: %w", err)
	}

	for _, f := range expired {
		if err := s.fundings.MarkFinished(ctx, f.ID); err != nil {
			log.Printf("failed to finish funding %d: %v", f.ID, err)
			continue
		}

		url := fmt.Sprintf("%s/fundingdetail/%d", s.baseURL, f.ID)
		s.notifier.Send(f.Owner, notification.TypeFundingTimeOut, "Your funding period has ended.", url)
	}

	s.notifier.InvalidateListings()
	log.Printf("expiry sweep finished, processed=%d", len(expired))

	return nil
}

func nextMidnight(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day+1, 0, 0, 0, 0, now.Location())
}
