package protocol

import (
	"encoding/base64"
	"time"

	"github.com/teslashibe/go-fishid/pkg/segment"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewHelloMessage creates a hello message
func NewHelloMessage(userAgent string, mobile bool) (*Message, error) {
	return NewMessage(TypeHello, HelloData{UserAgent: userAgent, Mobile: mobile})
}

// NewFrameMessage creates a frame message from raw JPEG data
func NewFrameMessage(width, height int, jpegData []byte, frameID uint64) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		Width:   width,
		Height:  height,
		Format:  "jpeg",
		Data:    base64.StdEncoding.EncodeToString(jpegData),
		FrameID: frameID,
	})
}

// NewErrorMessage creates a camera error message
func NewErrorMessage(name, message string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Name: name, Message: message})
}

// NewStartMessage creates a start message
func NewStartMessage(facing string, width, height int) (*Message, error) {
	return NewMessage(TypeStart, StartData{Facing: facing, Width: width, Height: height})
}

// NewStopMessage creates a stop message
func NewStopMessage() (*Message, error) {
	return NewMessage(TypeStop, nil)
}

// NewResultMessage creates a result message
func NewResultMessage(session string, ticket uint64, raw string, doc *segment.Document) (*Message, error) {
	return NewMessage(TypeResult, ResultData{
		Session:  session,
		Ticket:   ticket,
		Results:  raw,
		Document: doc,
	})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetHelloData extracts hello data from a message
func (m *Message) GetHelloData() (*HelloData, error) {
	var data HelloData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetFrameData extracts frame data from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	var data FrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeFrameData decodes the base64 image data
func (f *FrameData) DecodeFrameData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.Data)
}

// GetErrorData extracts error data from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStartData extracts start data from a message
func (m *Message) GetStartData() (*StartData, error) {
	var data StartData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetResultData extracts result data from a message
func (m *Message) GetResultData() (*ResultData, error) {
	var data ResultData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
