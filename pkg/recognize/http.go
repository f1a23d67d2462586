package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/teslashibe/go-fishid/internal/httpc"
	"github.com/teslashibe/go-fishid/internal/log"
)

// RecognizePath is the upload endpoint of a fishid server.
const RecognizePath = "/api/recognize-fish"

// FileField is the multipart field carrying the image.
const FileField = "file"

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// HTTP is a Transport that uploads to a running fishid server.
type HTTP struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// HTTPOption configures an HTTP transport.
type HTTPOption func(*HTTP)

// WithHTTPClient replaces the shared client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTP) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHTTP creates a transport for the server at baseURL,
// e.g. "http://localhost:3000".
func NewHTTP(baseURL string, opts ...HTTPOption) (*HTTP, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrNoRemoteURL
	}
	h := &HTTP{
		baseURL: baseURL,
		client:  httpc.Client,
		logger:  log.Component("recognize-http"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type recognizeResponse struct {
	Results string `json:"results"`
	Error   string `json:"error"`
}

// Send posts req as multipart form data.
func (h *HTTP) Send(ctx context.Context, req *Request) (*Response, error) {
	body, contentType, err := encodeUpload(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+RecognizePath, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed recognizeResponse
	jsonErr := json.Unmarshal(data, &parsed)

	out := &Response{StatusCode: resp.StatusCode}
	switch {
	case out.OK() && jsonErr != nil:
		return nil, fmt.Errorf("decode response: %w", jsonErr)
	case out.OK():
		out.Text = parsed.Results
	case jsonErr == nil && parsed.Error != "":
		out.Text = parsed.Error
	default:
		out.Text = string(data)
	}

	h.logger.Debug("upload finished", "url", h.baseURL, "status", resp.StatusCode, "bytes", len(req.Data))
	return out, nil
}

func encodeUpload(req *Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, FileField, uploadName(req.MIMEType)))
	if req.MIMEType != "" {
		header.Set("Content-Type", req.MIMEType)
	}
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, "", fmt.Errorf("write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func uploadName(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "image.jpg"
	case "image/png":
		return "image.png"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return "image" + exts[0]
	}
	return "image"
}

var _ Transport = (*HTTP)(nil)
