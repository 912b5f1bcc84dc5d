package feed

import (
	"encoding/json"
	"fmt"
)

// Envelope is the frame format of the WebSocket feed. The SSE feed carries
// the same fields as event/id/data lines.
type Envelope struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope wraps msg for the WebSocket transport.
// Data that is not valid JSON is carried as a JSON string.
func NewEnvelope(msg Message) Envelope {
	data := json.RawMessage(msg.Data)
	if !json.Valid(msg.Data) {
		quoted, _ := json.Marshal(string(msg.Data))
		data = quoted
	}
	return Envelope{Event: msg.Name, ID: msg.ID, Data: data}
}

// DecodeEnvelope parses one WebSocket frame
func DecodeEnvelope(frame []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Event == "" {
		env.Event = DefaultEventName
	}
	return Message{Name: env.Event, ID: env.ID, Data: []byte(env.Data)}, nil
}
