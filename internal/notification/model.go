package notification

import "time"

// Notification represents a notification persisted for a user
type Notification struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipient_id"`
	Type        Type      `json:"notification_type"`
	Content     string    `json:"content"`
	URL         string    `json:"url,omitempty"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

// Type represents the kind of event a notification was created for
type Type string

const (
	TypeDonation       Type = "DONATION"
	TypeFundingSuccess Type = "FUNDING_SUCCESS"
	TypeFundingTimeOut Type = "FUNDING_TIME_OUT"
)

// Recipient is the projection of a user that the delivery path needs:
// identity plus email contact preferences. The full user record lives in the
// surrounding application, outside this package.
type Recipient struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	EmailOptIn bool   `json:"email_opt_in"`
}
