package recognize

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teslashibe/go-fishid/internal/log"
)

// Gemini defaults.
const (
	DefaultGeminiModel = "gemini-1.5-flash"
	DefaultPrompt      = "Identify the animal in this image and provide information about its species, habitat, and interesting facts."
)

// GeminiConfig configures the Gemini transport.
type GeminiConfig struct {
	APIKey string
	Model  string
	Prompt string

	// Temperature is passed to the model when set.
	Temperature *float32

	Logger *slog.Logger
}

// GeminiOption configures a Gemini transport.
type GeminiOption func(*GeminiConfig)

// WithAPIKey sets the API key.
func WithAPIKey(key string) GeminiOption {
	return func(c *GeminiConfig) { c.APIKey = key }
}

// WithModel sets the model name.
func WithModel(model string) GeminiOption {
	return func(c *GeminiConfig) {
		if model != "" {
			c.Model = model
		}
	}
}

// WithPrompt replaces the identification prompt.
func WithPrompt(prompt string) GeminiOption {
	return func(c *GeminiConfig) {
		if prompt != "" {
			c.Prompt = prompt
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) GeminiOption {
	return func(c *GeminiConfig) { c.Temperature = &t }
}

// WithGeminiLogger sets the logger.
func WithGeminiLogger(l *slog.Logger) GeminiOption {
	return func(c *GeminiConfig) {
		if l != nil {
			c.Logger = l
		}
	}
}

// DefaultGeminiConfig returns the defaults.
func DefaultGeminiConfig() *GeminiConfig {
	return &GeminiConfig{
		Model:  DefaultGeminiModel,
		Prompt: DefaultPrompt,
		Logger: log.Component("gemini"),
	}
}

type generateFunc func(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)

// Gemini is a Transport that asks a Gemini model about the image.
type Gemini struct {
	config   *GeminiConfig
	client   *genai.Client
	generate generateFunc
}

// NewGemini connects to the Gemini API.
func NewGemini(ctx context.Context, opts ...GeminiOption) (*Gemini, error) {
	cfg := DefaultGeminiConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, err
	}
	m := client.GenerativeModel(cfg.Model)
	if cfg.Temperature != nil {
		m.SetTemperature(*cfg.Temperature)
	}

	return &Gemini{config: cfg, client: client, generate: m.GenerateContent}, nil
}

// Send asks the model to identify req's image. API errors are reported as a
// Response carrying their HTTP status.
func (g *Gemini) Send(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	resp, err := g.generate(ctx,
		genai.Text(g.config.Prompt),
		genai.Blob{MIMEType: req.MIMEType, Data: req.Data},
	)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			g.config.Logger.Warn("response blocked", "model", g.config.Model, "error", err)
			return &Response{StatusCode: http.StatusOK}, nil
		}
		if code, msg, ok := statusFromError(err); ok {
			return &Response{StatusCode: code, Text: msg}, nil
		}
		return nil, err
	}

	text := responseText(resp)
	g.config.Logger.Debug("gemini answered",
		"model", g.config.Model,
		"chars", len(text),
		"duration", time.Since(start),
	)
	return &Response{StatusCode: http.StatusOK, Text: text}, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.config.Model }

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range c.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

// statusFromError extracts the HTTP status of a Google API failure.
func statusFromError(err error) (int, string, bool) {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code != 0 {
		return gerr.Code, gerr.Message, true
	}
	var aerr *apierror.APIError
	if errors.As(err, &aerr) && aerr.HTTPCode() > 0 {
		return aerr.HTTPCode(), aerr.Reason(), true
	}
	return 0, "", false
}

var _ Transport = (*Gemini)(nil)
