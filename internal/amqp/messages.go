package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidMessage marks a delivery that can never be processed. Such
// deliveries are dropped instead of requeued.
var ErrInvalidMessage = errors.New("invalid snapshot sync message")

// SnapshotSyncMessage announces a new local snapshot. The worker reads the
// records from the database itself; the message only names the version.
type SnapshotSyncMessage struct {
	Version   int64     `json:"version"`
	Records   int       `json:"records"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSnapshotSyncMessage(version int64, records int) *SnapshotSyncMessage {
	return &SnapshotSyncMessage{
		Version:   version,
		Records:   records,
		Timestamp: time.Now().UTC(),
	}
}

func (m *SnapshotSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotSyncMessageFromJSON decodes and checks a delivery body. Snapshot
// versions start at 1.
func SnapshotSyncMessageFromJSON(data []byte) (*SnapshotSyncMessage, error) {
	var msg SnapshotSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.Version < 1 {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidMessage, msg.Version)
	}
	if msg.Records < 0 {
		return nil, fmt.Errorf("%w: negative record count", ErrInvalidMessage)
	}
	return &msg, nil
}
