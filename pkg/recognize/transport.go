package recognize

import "context"

// Request is one image sent for identification.
type Request struct {
	Data     []byte
	MIMEType string
}

// Response is what a transport got back. Text is the identification on a
// 2xx status and the service's error detail otherwise.
type Response struct {
	StatusCode int
	Text       string
}

// OK reports whether StatusCode is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport carries a Request to a recognition service. It returns an error
// only when no response was obtained; status failures come back in Response.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
