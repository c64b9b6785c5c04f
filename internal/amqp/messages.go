package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"depositos/internal/core"
)

// EventMessage carries a state change notification. Consumers are expected to
// re-read state from the database rather than trust the payload.
type EventMessage struct {
	MessageID string             `json:"messageId"`
	Type      core.EventType     `json:"type"`
	UID       string             `json:"uid,omitempty"`
	MemberID  string             `json:"memberId,omitempty"`
	Week      string             `json:"week,omitempty"`
	Status    core.PaymentStatus `json:"status,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// NewEventMessage wraps e with a fresh message id.
func NewEventMessage(e core.Event) *EventMessage {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &EventMessage{
		MessageID: uuid.NewString(),
		Type:      e.Type,
		UID:       e.UID,
		MemberID:  e.MemberID,
		Week:      e.Week,
		Status:    e.Status,
		Timestamp: ts.UTC(),
	}
}

// Event returns the domain event carried by the message.
func (m *EventMessage) Event() core.Event {
	return core.Event{
		Type:      m.Type,
		UID:       m.UID,
		MemberID:  m.MemberID,
		Week:      m.Week,
		Status:    m.Status,
		Timestamp: m.Timestamp,
	}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes a message and rejects ones without a type.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, errors.New("message has no event type")
	}
	return &msg, nil
}
