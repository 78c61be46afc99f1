package domain

import "time"

// SubscriberStatus enumerates the lifecycle states a subscriber can be in.
// The status is derived from the persisted flags, never stored directly.
type SubscriberStatus string

const (
	SubscriberPending      SubscriberStatus = "pending_confirmation"
	SubscriberConfirmed    SubscriberStatus = "confirmed"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
)

// Subscriber represents a single newsletter recipient, keyed by normalized
// email address.
type Subscriber struct {
	ID        string `json:"id" db:"id"`
	Email     string `json:"email" db:"email"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`

	// IsConfirmed is set once the subscriber follows the confirmation link.
	IsConfirmed bool `json:"is_confirmed" db:"is_confirmed"`

	// ConfirmToken is a single-use credential present only while the
	// subscriber is pending confirmation. Nulled on confirm so a replayed
	// confirm URL fails instead of silently re-succeeding.
	ConfirmToken *string `json:"-" db:"confirm_token"`

	// UnsubscribeToken is embedded in every outbound campaign email and is
	// valid for the life of the subscription. It survives unsubscribe so that
	// visiting the link twice stays a harmless no-op.
	UnsubscribeToken string `json:"-" db:"unsubscribe_token"`

	SubscribedAt   time.Time  `json:"subscribed_at" db:"subscribed_at"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at" db:"unsubscribed_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// Status derives the lifecycle state from the persisted flags.
func (s *Subscriber) Status() SubscriberStatus {
	switch {
	case s.UnsubscribedAt != nil:
		return SubscriberUnsubscribed
	case s.IsConfirmed:
		return SubscriberConfirmed
	default:
		return SubscriberPending
	}
}

// SendEligible reports whether the subscriber may receive campaign email.
func (s *Subscriber) SendEligible() bool {
	return s.IsConfirmed && s.UnsubscribedAt == nil
}

// Recipient is the projection of a send-eligible subscriber used by the
// dispatch engine: just enough to address the email and build the
// personalized unsubscribe link.
type Recipient struct {
	Email            string `json:"email" db:"email"`
	UnsubscribeToken string `json:"-" db:"unsubscribe_token"`
}
