// Package hub fans verdicts and annotated frames out to websocket viewers
// using a channel-based broadcast loop. Slow viewers are dropped rather
// than allowed to stall the capture loop.
package hub

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded display state
	JSONMessage MessageType = iota
	// BinaryMessage is a JPEG frame
	BinaryMessage
)

// Message is a payload queued for every viewer.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage creates a JSON message from pre-encoded bytes
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage creates a binary message
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}
