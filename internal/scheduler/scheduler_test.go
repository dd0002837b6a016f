package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/giftforyoube/giftipie/internal/funding"
	"github.com/giftforyoube/giftipie/internal/notification"
)

type fakeFundingStore struct {
	expired     []*funding.ExpiredFunding
	findErr     error
	finished    []int64
	finishErrID int64
}

func (f *fakeFundingStore) FindExpiredActive(_ context.Context, _ time.Time) ([]*funding.ExpiredFunding, error) {
	return f.expired, f.findErr
}

func (f *fakeFundingStore) MarkFinished(_ context.Context, id int64) error {
	if id == f.finishErrID {
		return errors.New("update failed")
	}
	f.finished = append(f.finished, id)
	return nil
}

type sentNotification struct {
	recipient notification.Recipient
	kind      notification.Type
	url       string
}

type fakeNotifier struct {
	sent        []sentNotification
	invalidated int
}

func (f *fakeNotifier) Send(recipient notification.Recipient, kind notification.Type, _ string, url string) {
	f.sent = append(f.sent, sentNotification{recipient: recipient, kind: kind, url: url})
}

func (f *fakeNotifier) InvalidateListings() {
	f.invalidated++
}

func expiredFunding(id, userID int64) *funding.ExpiredFunding {
	return &funding.ExpiredFunding{
		Funding: funding.Funding{
			ID:      id,
			UserID:  userID,
			Title:   "test funding",
			EndDate: time.Now().AddDate(0, 0, -1),
			Status:  funding.StatusActive,
		},
		Owner: notification.Recipient{ID: userID, Email: "owner@example.com", EmailOptIn: true},
	}
}

func TestSweepNotifiesEachExpiredFunding(t *testing.T) {
	t.Parallel()

	store := &fakeFundingStore{expired: []*funding.ExpiredFunding{
		expiredFunding(1, 10),
		expiredFunding(2, 20),
	}}
	notifier := &fakeNotifier{}
	s := New(store, notifier, "https://giftipie.me")

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}

	if len(store.finished) != 2 {
		t.Errorf("finished %d fundings, want 2", len(store.finished))
	}
	if len(notifier.sent) != 2 {
		t.Fatalf("sent %d notifications, want 2", len(notifier.sent))
	}
	for _, sent := range notifier.sent {
		if sent.kind != notification.TypeFundingTimeOut {
			t.Errorf("notification type = %s, want FUNDING_TIME_OUT", sent.kind)
		}
		if !strings.HasPrefix(sent.url, "https://giftipie.me/fundingdetail/") {
			t.Errorf("deep link = %q, want a fundingdetail URL", sent.url)
		}
	}
	if notifier.invalidated != 1 {
		t.Errorf("listings invalidated %d times, want exactly 1 per sweep", notifier.invalidated)
	}
}

func TestSweepContinuesPastAFailedUpdate(t *testing.T) {
	t.Parallel()

	store := &fakeFundingStore{
		expired: []*funding.ExpiredFunding{
			expiredFunding(1, 10),
			expiredFunding(2, 20),
		},
		finishErrID: 1,
	}
	notifier := &fakeNotifier{}
	s := New(store, notifier, "https://giftipie.me")

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}

	// The failed funding is skipped without notification, the rest proceed
	if len(notifier.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(notifier.sent))
	}
	if notifier.sent[0].recipient.ID != 20 {
		t.Errorf("notified recipient %d, want 20", notifier.sent[0].recipient.ID)
	}
}

func TestSweepPropagatesLookupFailure(t *testing.T) {
	t.Parallel()

	store := &fakeFundingStore{findErr: errors.New("db down")}
	notifier := &fakeNotifier{}
	s := New(store, notifier, "https://giftipie.me")

	if err := s.Sweep(context.Background()); err == nil {
		t.Fatal("Sweep() succeeded despite a lookup failure")
	}
	if notifier.invalidated != 0 {
		t.Error("listings were invalidated although the sweep never ran")
	}
}
