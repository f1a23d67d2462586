// Package recognize sends one image to an identification service and turns
// the answer into a segment.Document.
//
// The Orchestrator makes exactly one transport call per image. Transports
// talk to Gemini directly (Gemini) or to a running fishid server (HTTP).
package recognize

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-fishid/internal/log"
	"github.com/teslashibe/go-fishid/pkg/media"
	"github.com/teslashibe/go-fishid/pkg/segment"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSegmenter replaces the default segmenter used by Identify.
func WithSegmenter(s segment.Segmenter) Option {
	return func(o *Orchestrator) { o.segmenter = s }
}

// WithTimeout bounds each recognition call. Zero means the caller's context
// alone decides.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// Orchestrator uploads payloads through a Transport. It is safe for
// concurrent use; calls do not share state.
type Orchestrator struct {
	transport Transport
	segmenter segment.Segmenter
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates an Orchestrator over t.
func New(t Transport, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transport: t,
		logger:    log.Component("recognize"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Recognize sends p and returns the raw identification text.
func (o *Orchestrator) Recognize(ctx context.Context, p media.Payload) (string, error) {
	if p.IsZero() {
		return "", media.ErrEmptyInput
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := o.transport.Send(ctx, &Request{Data: p.Bytes(), MIMEType: p.MIMEType()})
	elapsed := time.Since(start)

	switch {
	case err != nil:
		o.logger.Error("recognition failed", "source", p.Source(), "bytes", p.Len(), "duration", elapsed, "error", err)
		return "", failed(0, err)
	case resp == nil:
		o.logger.Error("recognition returned no response", "source", p.Source(), "duration", elapsed)
		return "", failed(0, errors.New("no response"))
	case !resp.OK():
		o.logger.Error("recognition rejected", "status", resp.StatusCode, "detail", resp.Text, "duration", elapsed)
		return "", failed(resp.StatusCode, statusDetail(resp.Text))
	case strings.TrimSpace(resp.Text) == "":
		o.logger.Warn("recognition returned no text", "status", resp.StatusCode, "duration", elapsed)
		return "", empty(resp.StatusCode)
	}

	o.logger.Debug("recognized", "source", p.Source(), "bytes", p.Len(), "chars", len(resp.Text), "duration", elapsed)
	return resp.Text, nil
}

// Identify recognizes p and segments the answer.
func (o *Orchestrator) Identify(ctx context.Context, p media.Payload) (*segment.Document, error) {
	raw, err := o.Recognize(ctx, p)
	if err != nil {
		return nil, err
	}
	return o.Segment(raw), nil
}

const maxDetail = 200

func statusDetail(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) > maxDetail {
		text = text[:maxDetail] + "..."
	}
	return errors.New(text)
}

// Segment splits raw with the orchestrator's segmenter.
func (o *Orchestrator) Segment(raw string) *segment.Document {
	return o.segmenter.Segment(raw)
}
