package amqp

import (
	"encoding/json"
	"time"
)

// ReloadMessage tells replicas that the dataset file behind Source was
// swapped and their memoized snapshot is stale. It carries no transaction
// data; consumers reread the source themselves.
type ReloadMessage struct {
	Source      string    `json:"source"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewReloadMessage creates a reload message for the given source path.
func NewReloadMessage(source, requestedBy string) *ReloadMessage {
	return &ReloadMessage{
		Source:      source,
		RequestedBy: requestedBy,
		RequestedAt: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ReloadMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReloadMessageFromJSON creates a message from JSON bytes.
func ReloadMessageFromJSON(data []byte) (*ReloadMessage, error) {
	var msg ReloadMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
