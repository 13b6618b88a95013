package models

import "time"

// PayoutStatus is the terminal outcome of a single payout attempt.
// A record is written once with its status and never retried.
type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutSimulated PayoutStatus = "simulated"
	PayoutCompleted PayoutStatus = "completed"
	PayoutFailed    PayoutStatus = "failed"
)

// Session represents one broadcast's registration and selection window.
// Once Active flips to false the session is soft-closed for good.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"is_active"`
}

// Registrant is a viewer entered into a session's selection pool.
type Registrant struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	Name          string    `json:"name"`
	PayoutAddress string    `json:"speed_address"`
	RegisteredAt  time.Time `json:"checked_in_at"`
}

// PayoutRecord stores the outcome of a single selection event,
// linking the chosen registrant to the amount and delivery status.
type PayoutRecord struct {
	ID           string       `json:"id"`
	SessionID    string       `json:"session_id"`
	RegistrantID string       `json:"registrant_id"`
	Amount       int64        `json:"amount"`
	Status       PayoutStatus `json:"status"`
	RecordedAt   time.Time    `json:"recorded_at"`
}

// SessionStats is a derived per-session aggregate, always computed by
// folding over the live registrant and payout collections.
type SessionStats struct {
	ParticipantCount int   `json:"total_participants"`
	PayoutCount      int   `json:"total_payouts"`
	TotalAmount      int64 `json:"total_amount"`
	CompletedCount   int   `json:"completed_payouts"`
	FailedCount      int   `json:"failed_payouts"`
}

// StoreStatus is a diagnostic snapshot of collection sizes.
type StoreStatus struct {
	SessionCount    int `json:"sessions"`
	RegistrantCount int `json:"participants"`
	PayoutCount     int `json:"payouts"`
}
