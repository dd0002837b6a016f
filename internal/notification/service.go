package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Common errors
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotRecipient         = errors.New("not the recipient of this notification")
	ErrNoReadNotifications  = errors.New("no read notifications to delete")
	ErrDeliveryFailed       = errors.New("failed to deliver event to connection")
	ErrEmailDeliveryFailed  = errors.New("failed to send notification email")
)

// Store is the persistence contract the service depends on. The Postgres
// Repository satisfies it; tests substitute a fake.
type Store interface {
	Create(ctx context.Context, recipientID int64, notificationType Type, content, url string) (*Notification, error)
	GetByID(ctx context.Context, id int64) (*Notification, error)
	ListByRecipientID(ctx context.Context, recipientID int64) ([]*Notification, error)
	MarkAsRead(ctx context.Context, id int64) (*Notification, error)
	Delete(ctx context.Context, id int64) error
	DeleteAllRead(ctx context.Context, recipientID int64) (int64, error)
}

// EmailSender is the one-way email trigger invoked after push fan-out.
// Failures are reported, never rolled back into the delivery that triggered
// them.
type EmailSender interface {
	SendNotificationEmail(ctx context.Context, to string, n *Notification) error
}

// Options tunes the notification service
type Options struct {
	// StreamTimeout is the fixed total lifetime of a push stream
	StreamTimeout time.Duration
	// SendBuffer is the per-connection queued-event capacity
	SendBuffer int
	// DispatchWorkers / DispatchBuffer size the fire-and-forget send pool
	DispatchWorkers int
	DispatchBuffer  int
	// ListingCacheSize / ListingCacheTTL bound the cached list results
	ListingCacheSize int
	ListingCacheTTL  time.Duration
}

// Service coordinates notification persistence, push fan-out, replay, and the
// email trigger
type Service struct {
	store    Store
	registry *Registry
	cache    *EventCache
	mailer   EmailSender
	listings *expirable.LRU[int64, []*Notification]
	metrics  *Metrics
	dispatch *dispatcher

	streamTimeout time.Duration
	sendBuffer    int
}

// NewService creates a notification service. The registry and replay cache
// are injected so the same instances can be shared with anything else that
// observes live connections.
func NewService(store Store, registry *Registry, cache *EventCache, mailer EmailSender, opts Options) *Service {
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = time.Hour
	}
	if opts.SendBuffer < 1 {
		opts.SendBuffer = 16
	}
	if opts.ListingCacheSize < 1 {
		opts.ListingCacheSize = 512
	}
	if opts.ListingCacheTTL <= 0 {
		opts.ListingCacheTTL = 5 * time.Minute
	}

	s := &Service{
		store:         store,
		registry:      registry,
		cache:         cache,
		mailer:        mailer,
		listings:      expirable.NewLRU[int64, []*Notification](opts.ListingCacheSize, nil, opts.ListingCacheTTL),
		metrics:       &Metrics{StartTime: time.Now()},
		streamTimeout: opts.StreamTimeout,
		sendBuffer:    opts.SendBuffer,
	}
	s.dispatch = newDispatcher(opts.DispatchWorkers, opts.DispatchBuffer, s.deliver, s.metrics)

	return s
}

// Start launches the dispatch workers; they run until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	s.dispatch.start(ctx)
}

// Close stops accepting sends and waits for in-flight deliveries
func (s *Service) Close() {
	s.dispatch.stop()
}

// Metrics returns a snapshot of the delivery counters
func (s *Service) Metrics() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// Send notifies the recipient. It enqueues a detached delivery and returns
// immediately: the caller never observes persistence, fan-out, or email
// failures.
func (s *Service) Send(recipient Recipient, notificationType Type, content, url string) {
	s.dispatch.enqueue(dispatchJob{
		Recipient: recipient,
		Type:      notificationType,
		Content:   content,
		URL:       url,
	})
}

// deliver is the unit of work behind Send. Persistence precedes fan-out
// precedes the email trigger; a push failure tears down that one connection
// and the rest of the fan-out continues.
func (s *Service) deliver(ctx context.Context, job dispatchJob) {
	n, err := s.store.Create(ctx, job.Recipient.ID, job.Type, job.Content, job.URL)
	if err != nil {
		log.Printf("failed to persist %s notification for recipient %d: %v", job.Type, job.Recipient.ID, err)
		return
	}
	s.metrics.Persisted.Add(1)
	s.listings.Remove(job.Recipient.ID)

	// One event identifier per dispatch, shared by every connection notified
	eventID := newEventID(job.Recipient.ID)
	payload := toResponse(n)

	for connID, conn := range s.registry.AllForRecipient(job.Recipient.ID) {
		s.cache.Record(job.Recipient.ID, Entry{EventID: eventID, Payload: payload})

		if err := conn.Send(Event{ID: eventID, Data: payload}); err != nil {
			s.metrics.PushFailures.Add(1)
			s.registry.Deregister(connID)
			conn.Close()
			log.Printf("push to connection %s failed, deregistered: %v", connID, err)
		}
	}

	if job.Recipient.EmailOptIn {
		if err := s.mailer.SendNotificationEmail(ctx, job.Recipient.Email, n); err != nil {
			s.metrics.EmailFailures.Add(1)
			log.Printf("%v: notification %d for recipient %d: %v", ErrEmailDeliveryFailed, n.ID, job.Recipient.ID, err)
		} else {
			s.metrics.EmailsSent.Add(1)
		}
	}
}

// Subscription is a realized push connection plus everything that must be
// written before the stream goes live: the handshake event and any replay
// backlog.
type Subscription struct {
	Conn    *Connection
	Backlog []Event
	Timeout time.Duration
}

// Subscribe opens and registers a connection for the recipient. The backlog
// starts with a synthetic "connected" event on a fresh identifier; when the
// client supplied a non-empty lastEventID, every cached entry after it
// follows in ascending order under its original identifier.
func (s *Service) Subscribe(recipientID int64, lastEventID string) *Subscription {
	connID := newEventID(recipientID)
	conn := newConnection(connID, s.sendBuffer)
	s.registry.Register(connID, conn)

	backlog := []Event{{
		ID:   newEventID(recipientID),
		Data: connectedPayload{Content: fmt.Sprintf("EventStream created for recipient %d", recipientID)},
	}}
	for _, e := range s.cache.EntriesSince(recipientID, lastEventID) {
		backlog = append(backlog, Event{ID: e.EventID, Data: e.Payload})
	}

	return &Subscription{Conn: conn, Backlog: backlog, Timeout: s.streamTimeout}
}

// Unsubscribe deregisters and closes the connection. Safe to invoke from the
// completion, timeout, and error paths concurrently and repeatedly.
func (s *Service) Unsubscribe(conn *Connection) {
	s.registry.Deregister(conn.ID())
	conn.Close()
}

// GetNotifications returns the recipient's notifications, newest first,
// serving repeated reads from the listings cache
func (s *Service) GetNotifications(ctx context.Context, userID int64) ([]*Notification, error) {
	if cached, ok := s.listings.Get(userID); ok {
		return cached, nil
	}

	notifications, err := s.store.ListByRecipientID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.listings.Add(userID, notifications)

	return notifications, nil
}

// ReadNotification marks a notification as read on behalf of its recipient
func (s *Service) ReadNotification(ctx context.Context, userID, notificationID int64) (*Notification, error) {
	notification, err := s.store.GetByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if notification == nil {
		return nil, ErrNotificationNotFound
	}
	if notification.RecipientID != userID {
		return nil, ErrNotRecipient
	}

	updated, err := s.store.MarkAsRead(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	s.listings.Remove(userID)

	return updated, nil
}

// DeleteNotification removes a single notification owned by the caller
func (s *Service) DeleteNotification(ctx context.Context, userID, notificationID int64) error {
	notification, err := s.store.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if notification == nil {
		return ErrNotificationNotFound
	}
	if notification.RecipientID != userID {
		return ErrNotRecipient
	}

	if err := s.store.Delete(ctx, notificationID); err != nil {
		return err
	}
	s.listings.Remove(userID)

	return nil
}

// DeleteReadNotifications removes every read notification of the caller.
// Asking when nothing is read is an error, mirroring the management API's
// empty-collection contract.
func (s *Service) DeleteReadNotifications(ctx context.Context, userID int64) error {
	deleted, err := s.store.DeleteAllRead(ctx, userID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNoReadNotifications
	}
	s.listings.Remove(userID)

	return nil
}

// InvalidateListings drops every cached listing result. Periodic jobs call
// this after a sweep that may have touched many recipients at once.
func (s *Service) InvalidateListings() {
	s.listings.Purge()
}
