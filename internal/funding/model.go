package funding

import (
	"time"

	"github.com/giftforyoube/giftipie/internal/notification"
)

// Status represents the lifecycle state of a funding
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
)

// Funding is the read-side projection the expiry sweep works with. The full
// funding domain lives elsewhere in the application.
type Funding struct {
	ID      int64     `json:"id"`
	UserID  int64     `json:"user_id"`
	Title   string    `json:"title"`
	EndDate time.Time `json:"end_date"`
	Status  Status    `json:"status"`
}

// ExpiredFunding pairs an expired funding with the contact projection of its
// owner so the sweep can notify without a second lookup
type ExpiredFunding struct {
	Funding
	Owner notification.Recipient
}
