package recognize

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// MockTransport implements Transport for testing.
type MockTransport struct {
	// SendFunc is called when Send is invoked.
	SendFunc func(ctx context.Context, req *Request) (*Response, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a Send invocation.
type MockCall struct {
	MIMEType string
	Bytes    int
	Time     time.Time
}

// NewMockTransport returns a transport that always answers text with 200.
func NewMockTransport(text string) *MockTransport {
	return &MockTransport{
		SendFunc: func(ctx context.Context, req *Request) (*Response, error) {
			return &Response{StatusCode: http.StatusOK, Text: text}, nil
		},
	}
}

// Send implements Transport.
func (m *MockTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	m.record(req)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, req)
	}
	return &Response{StatusCode: http.StatusOK}, nil
}

func (m *MockTransport) record(req *Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{MIMEType: req.MIMEType, Bytes: len(req.Data), Time: time.Now()})
}

// Calls returns all recorded calls.
func (m *MockTransport) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of Send calls.
func (m *MockTransport) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears recorded calls.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithStatus makes the mock answer status with text.
func (m *MockTransport) WithStatus(status int, text string) *MockTransport {
	m.SendFunc = func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{StatusCode: status, Text: text}, nil
	}
	return m
}

// WithError makes the mock fail without a response.
func (m *MockTransport) WithError(err error) *MockTransport {
	m.SendFunc = func(ctx context.Context, req *Request) (*Response, error) {
		return nil, err
	}
	return m
}

var _ Transport = (*MockTransport)(nil)
