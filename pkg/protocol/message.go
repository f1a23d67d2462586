// Package protocol defines the WebSocket message types exchanged with browser
// cameras (/ws/camera) and result viewers (/ws/results).
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-fishid/pkg/segment"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Camera → Server messages
	TypeHello MessageType = "hello" // Client announces itself
	TypeFrame MessageType = "frame" // Video frame
	TypeError MessageType = "error" // getUserMedia failure

	// Server → Camera messages
	TypeStart MessageType = "start" // Open the camera with constraints
	TypeStop  MessageType = "stop"  // Stop every track

	// Server → Viewer messages
	TypeResult MessageType = "result" // Recognition result

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Camera → Server Message Types
// =============================================================================

// HelloData describes a connecting camera client
type HelloData struct {
	UserAgent string `json:"user_agent,omitempty"`
	Mobile    bool   `json:"mobile"`
}

// FrameData contains a video frame
type FrameData struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Format  string `json:"format"` // "jpeg"
	Data    string `json:"data"`   // base64 encoded
	FrameID uint64 `json:"frame_id,omitempty"`
}

// ErrorData reports a camera failure. Name is the browser DOMException
// name, e.g. "NotAllowedError".
type ErrorData struct {
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

// =============================================================================
// Server → Camera Message Types
// =============================================================================

// StartData asks the client to open its camera
type StartData struct {
	Facing string `json:"facing"` // "environment" or "user"
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// =============================================================================
// Server → Viewer Message Types
// =============================================================================

// ResultData carries one committed recognition result
type ResultData struct {
	Session  string            `json:"session"`
	Ticket   uint64            `json:"ticket"`
	Results  string            `json:"results"`
	Document *segment.Document `json:"document"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
