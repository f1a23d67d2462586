package recognize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/teslashibe/go-fishid/internal/log"
)

func testGemini(fn generateFunc) *Gemini {
	cfg := DefaultGeminiConfig()
	cfg.Logger = log.Discard()
	return &Gemini{config: cfg, generate: fn}
}

func textResponse(parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

func TestGemini_Send(t *testing.T) {
	var got []genai.Part
	g := testGemini(func(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
		got = parts
		return textResponse(genai.Text("Species: "), genai.Text("Clownfish")), nil
	})

	resp, err := g.Send(context.Background(), &Request{Data: []byte{1, 2, 3}, MIMEType: "image/png"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Species: Clownfish", resp.Text)

	require.Len(t, got, 2)
	assert.Equal(t, genai.Text(DefaultPrompt), got[0])
	blob, ok := got[1].(genai.Blob)
	require.True(t, ok, "second part should be the image")
	assert.Equal(t, "image/png", blob.MIMEType)
	assert.Equal(t, []byte{1, 2, 3}, blob.Data)
}

func TestGemini_APIError(t *testing.T) {
	g := testGemini(func(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
		return nil, fmt.Errorf("generate: %w", &googleapi.Error{Code: 429, Message: "quota exceeded"})
	})

	resp, err := g.Send(context.Background(), &Request{Data: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, 429, resp.StatusCode)
	assert.Equal(t, "quota exceeded", resp.Text)

	_, err = New(g, WithLogger(log.Discard())).Recognize(context.Background(), testPayload(t))
	var te *TransferError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.IsRateLimited())
}

func TestGemini_Blocked(t *testing.T) {
	g := testGemini(func(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
		return nil, &genai.BlockedError{PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety}}
	})

	_, err := New(g, WithLogger(log.Discard())).Recognize(context.Background(), testPayload(t))
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGemini_NetworkError(t *testing.T) {
	netErr := errors.New("dial tcp: no route to host")
	g := testGemini(func(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
		return nil, netErr
	})

	resp, err := g.Send(context.Background(), &Request{Data: []byte{1}})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, netErr)
}

func TestGemini_Config(t *testing.T) {
	_, err := NewGemini(context.Background())
	assert.ErrorIs(t, err, ErrNoAPIKey)

	cfg := DefaultGeminiConfig()
	for _, opt := range []GeminiOption{WithModel("gemini-2.0-flash"), WithPrompt(""), WithTemperature(0.2)} {
		opt(cfg)
	}
	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
	assert.Equal(t, DefaultPrompt, cfg.Prompt, "empty prompt keeps the default")
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.2, *cfg.Temperature, 1e-6)
}

func TestResponseText(t *testing.T) {
	assert.Empty(t, responseText(nil))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}))
	assert.Equal(t, "a", responseText(textResponse(genai.Text("a"), genai.Blob{MIMEType: "image/png"})))
}

func TestHTTP_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, RecognizePath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		f, header, err := r.FormFile(FileField)
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, []byte{0xFF, 0xD8}, data)
		assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))
		assert.Equal(t, "image.jpg", header.Filename)

		json.NewEncoder(w).Encode(map[string]string{"results": "Species: Clownfish"})
	}))
	defer server.Close()

	h, err := NewHTTP(server.URL+"/", WithHTTPLogger(log.Discard()))
	require.NoError(t, err)

	resp, err := h.Send(context.Background(), &Request{Data: []byte{0xFF, 0xD8}, MIMEType: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Species: Clownfish", resp.Text)
}

func TestHTTP_Statuses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind error
		wantText string
	}{
		{"missing results", 200, `{}`, ErrEmptyResponse, ""},
		{"empty results", 200, `{"results":""}`, ErrEmptyResponse, ""},
		{"json error body", 502, `{"error":"upstream down"}`, ErrTransferFailed, ""},
		{"plain error body", 500, `Internal Server Error`, ErrTransferFailed, ""},
		{"malformed success", 200, `not json`, ErrTransferFailed, ""},
		{"ok", 200, `{"results":"Habitat"}`, nil, "Habitat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			h, err := NewHTTP(server.URL, WithHTTPClient(server.Client()))
			require.NoError(t, err)
			o := New(h, WithLogger(log.Discard()))

			got, err := o.Recognize(context.Background(), testPayload(t))
			if tt.wantKind == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.wantText, got)
				return
			}
			assert.ErrorIs(t, err, tt.wantKind)
		})
	}
}

func TestHTTP_ErrorDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, `{"error":"upstream down"}`)
	}))
	defer server.Close()

	h, _ := NewHTTP(server.URL)
	resp, err := h.Send(context.Background(), &Request{Data: []byte{1}, MIMEType: "image/png"})
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, "upstream down", resp.Text)
}

func TestNewHTTP_RequiresURL(t *testing.T) {
	_, err := NewHTTP("  ")
	assert.ErrorIs(t, err, ErrNoRemoteURL)
}

func TestUploadName(t *testing.T) {
	assert.Equal(t, "image.jpg", uploadName("image/jpeg"))
	assert.Equal(t, "image.png", uploadName("image/png"))
	assert.Equal(t, "image", uploadName(""))
}
