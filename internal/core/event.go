package core

import "time"

const (
	OpCreated EventOp = "create"
	OpUpdated EventOp = "update"
	OpDeleted EventOp = "delete"
)

type (
	EventOp string

	// LedgerEvent records one completed mutation of the shared ledger.
	LedgerEvent struct {
		ID            string    `json:"id"`
		Op            EventOp   `json:"op"`
		TransactionID string    `json:"transaction_id"`
		ActorID       string    `json:"actor_id,omitempty"`
		ActorEmail    string    `json:"actor_email,omitempty"`
		Kind          Kind      `json:"type,omitempty"`
		Amount        Amount    `json:"amount"`
		Description   string    `json:"description,omitempty"`
		Category      string    `json:"category,omitempty"`
		CreatedAt     time.Time `json:"created_at,omitempty"`
		OccurredAt    time.Time `json:"occurred_at"`
	}
)

// TransactionDate is the creation time of the transaction, or the event time
// for events recorded without one.
func (e LedgerEvent) TransactionDate() time.Time {
	if e.CreatedAt.IsZero() {
		return e.OccurredAt
	}
	return e.CreatedAt
}

// Valid reports whether op is a known mutation.
func (op EventOp) Valid() bool {
	return op == OpCreated || op == OpUpdated || op == OpDeleted
}
