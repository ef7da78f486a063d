package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hisab/internal/core"
)

// LedgerEventMessage carries one ledger event. The event is self-contained so
// the worker never has to read the hosted table.
type LedgerEventMessage struct {
	core.LedgerEvent
	PublishedAt time.Time `json:"published_at"`
}

// NewLedgerEventMessage wraps e for publishing
func NewLedgerEventMessage(e core.LedgerEvent) *LedgerEventMessage {
	return &LedgerEventMessage{
		LedgerEvent: e,
		PublishedAt: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON decodes and validates a message.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("ledger event without id")
	}
	if !msg.Op.Valid() {
		return nil, fmt.Errorf("ledger event with unknown op %q", msg.Op)
	}
	return &msg, nil
}
