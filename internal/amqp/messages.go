package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Change kinds carried by LedgerChangedMessage.
const (
	ChangeMovementAppended = "movement_appended"
	ChangeLedgerImported   = "ledger_imported"
)

// LedgerChangedMessage announces that a user's ledger changed. Consumers
// drop derived state for the user and reload lazily.
type LedgerChangedMessage struct {
	UserID     string    `json:"user_id"`
	MovementID string    `json:"movement_id,omitempty"`
	Change     string    `json:"change"`
	Count      int       `json:"count,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewMovementAppended creates the notification for a single appended movement.
func NewMovementAppended(userID, movementID string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		UserID:     userID,
		MovementID: movementID,
		Change:     ChangeMovementAppended,
		Timestamp:  time.Now().UTC(),
	}
}

// NewLedgerImported creates the notification for a bulk import.
func NewLedgerImported(userID string, count int) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		UserID:    userID,
		Change:    ChangeLedgerImported,
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes and checks a message body.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errors.New("ledger change without user_id")
	}
	return &msg, nil
}
