package notification

import (
	"time"
)

// Kind is the nudge category chosen for a subscriber.
type Kind string

const (
	KindFunctional Kind = "functional"
	KindFlavor     Kind = "flavor"
)

// Style is the tone directive handed to the content generator.
type Style string

const (
	StyleHeckler    Style = "heckler"
	StyleStrategist Style = "strategist"
	StyleCompanion  Style = "companion"
)

// Styles lists every style the selector can draw from.
var Styles = []Style{StyleHeckler, StyleStrategist, StyleCompanion}

type Outcome string

const (
	OutcomeSent        Outcome = "sent"
	OutcomeFailed      Outcome = "failed"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeDeactivated Outcome = "deactivated"
)

// Subscription is a registered Web Push endpoint.
type Subscription struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	Endpoint   string     `json:"endpoint" db:"endpoint"`
	P256dh     string     `json:"keys_p256dh" db:"keys_p256dh"`
	Auth       string     `json:"keys_auth" db:"keys_auth"`
	Timezone   *string    `json:"timezone,omitempty" db:"timezone"`
	IsActive   bool       `json:"is_active" db:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// TimezoneName returns the stored IANA name, or "" when unset.
func (s Subscription) TimezoneName() string {
	if s.Timezone == nil {
		return ""
	}
	return *s.Timezone
}

// Task is the read-only projection of an outstanding ledger entry.
type Task struct {
	Description string `json:"description" db:"description"`
	Priority    string `json:"priority" db:"priority"`
}

// HistoryRecord is one row of notification_history.
type HistoryRecord struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Content     string    `json:"content" db:"content"`
	ContentHash string    `json:"content_hash" db:"content_hash"`
	Kind        Kind      `json:"nudge_type" db:"nudge_type"`
	Style       Style     `json:"style" db:"style"`
	PersonaID   *string   `json:"persona_id,omitempty" db:"persona_id"`
	Generated   bool      `json:"generated" db:"generated"`
	SentAt      time.Time `json:"sent_at" db:"sent_at"`
}

// Result is the per-subscription diagnostic entry of a run.
type Result struct {
	Subscriber string  `json:"user"`
	Outcome    Outcome `json:"outcome"`
	Kind       Kind    `json:"type,omitempty"`
	Style      Style   `json:"style,omitempty"`
	Generated  bool    `json:"generated"`
	Error      string  `json:"error,omitempty"`
}

// Summary aggregates one dispatch run.
type Summary struct {
	RunID      string    `json:"run_id"`
	Message    string    `json:"message"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Total      int       `json:"total"`
	Results    []Result  `json:"results"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (s *Summary) add(r Result) {
	switch r.Outcome {
	case OutcomeSent:
		s.Sent++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.Results = append(s.Results, r)
}

// anonymize keeps the first eight characters of a user id.
func anonymize(userID string) string {
	if len(userID) <= 8 {
		return userID
	}
	return userID[:8]
}
