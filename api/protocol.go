package api

import (
	"github.com/bytedance/sonic"
)

// Wire event names. Inbound names match what clients emit; outbound names are
// what the board UI listens for. `sync:tasks` is both: inbound it is a resync
// request, outbound it carries the full snapshot.
const (
	EventTaskCreate = "task:create"
	EventTaskUpdate = "task:update"
	EventTaskMove   = "task:move"
	EventTaskDelete = "task:delete"
	EventSyncTasks  = "sync:tasks"

	EventTaskCreated = "task:created"
	EventTaskUpdated = "task:updated"
	EventTaskMoved   = "task:moved"
	EventTaskDeleted = "task:deleted"

	// EventError goes to the originating session only, when an update or
	// move names an unknown id or a move names an invalid status.
	EventError = "error"
)

// DefaultMaxMessageSize caps a single inbound frame, base64 attachments
// included.
const DefaultMaxMessageSize = 10 << 20 // 10 MiB

// Envelope frames every message on the wire.
type Envelope struct {
	Event string                 `json:"event"`
	Data  sonic.NoCopyRawMessage `json:"data,omitempty"`
}

// errorPayload is the body of an EventError message.
type errorPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

func decodeEnvelope(msg []byte) (Envelope, error) {
	var env Envelope
	err := sonic.Unmarshal(msg, &env)
	return env, err
}

func encodeEvent(event string, payload any) ([]byte, error) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return sonic.Marshal(Envelope{Event: event, Data: data})
}
