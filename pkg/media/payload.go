package media

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Source records where a payload came from.
type Source string

const (
	SourceFile    Source = "file"
	SourceCapture Source = "capture"
)

// Payload is one in-memory image. It is immutable: the constructor copies the
// bytes and Bytes returns a copy.
type Payload struct {
	data     []byte
	mimeType string
	source   Source
}

// NewPayload builds a payload from data. An empty mimeType is sniffed.
func NewPayload(data []byte, mimeType string, source Source) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, ErrEmptyInput
	}
	if mimeType == "" {
		mimeType = DetectMIME(data)
	}
	return Payload{
		data:     append([]byte(nil), data...),
		mimeType: mimeType,
		source:   source,
	}, nil
}

// Bytes returns a copy of the image bytes.
func (p Payload) Bytes() []byte { return append([]byte(nil), p.data...) }

// Reader returns a reader over the image bytes without copying them.
func (p Payload) Reader() io.Reader { return bytes.NewReader(p.data) }

// MIMEType returns the media type, e.g. "image/jpeg".
func (p Payload) MIMEType() string { return p.mimeType }

// Source returns SourceFile or SourceCapture.
func (p Payload) Source() Source { return p.source }

// Len returns the number of image bytes.
func (p Payload) Len() int { return len(p.data) }

// IsZero reports whether p is the zero Payload.
func (p Payload) IsZero() bool { return len(p.data) == 0 }

// SelectFile reads r fully and wraps it as a file payload. No validation is
// done beyond requiring at least one byte.
func SelectFile(r io.Reader, mimeType string) (Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Payload{}, fmt.Errorf("media: read file: %w", err)
	}
	// data is already private, skip the copy in NewPayload
	if len(data) == 0 {
		return Payload{}, ErrEmptyInput
	}
	if mimeType == "" {
		mimeType = DetectMIME(data)
	}
	return Payload{data: data, mimeType: mimeType, source: SourceFile}, nil
}

// SelectFilePath opens path and wraps it as a file payload. The MIME type
// comes from the extension when known, otherwise from the content.
func SelectFilePath(path string) (Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return Payload{}, fmt.Errorf("media: open %s: %w", path, err)
	}
	defer f.Close()

	return SelectFile(f, mimeFromExt(path))
}

func mimeFromExt(path string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if t == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return t
}

// DetectMIME sniffs the media type of data. Unrecognised content is reported
// as application/octet-stream.
func DetectMIME(data []byte) string {
	t := http.DetectContentType(data)
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return t
}
