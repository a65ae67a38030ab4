// Package imaging turns user uploads into validated in-memory images.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxBytes bounds a single uploaded photo.
	DefaultMaxBytes = 10 << 20
	// MaxPixels bounds the decoded size; compressed formats can expand far past DefaultMaxBytes.
	MaxPixels = 40_000_000
)

var (
	ErrEmpty      = errors.New("imaging: empty image")
	ErrNotImage   = errors.New("imaging: not an image")
	ErrTooLarge   = errors.New("imaging: image too large")
	ErrBadDataURL = errors.New("imaging: malformed data URL")
)

// Source is an uploaded photo held in memory together with its detected type.
type Source struct {
	Name     string
	MIMEType string
	Data     []byte
}

// ReadFile loads and validates an image from disk.
func ReadFile(path string, limit int64) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return Source{}, fmt.Errorf("imaging: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f, filepath.Base(path), limit)
}

// Read consumes r up to limit bytes and validates the content as an image.
func Read(r io.Reader, name string, limit int64) (Source, error) {
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return Source{}, fmt.Errorf("imaging: read: %w", err)
	}
	if int64(len(data)) > limit {
		return Source{}, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, limit)
	}
	return FromBytes(data, name)
}

// FromBytes validates raw bytes as an image and sniffs their MIME type.
func FromBytes(data []byte, name string) (Source, error) {
	if len(data) == 0 {
		return Source{}, ErrEmpty
	}
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return Source{}, fmt.Errorf("%w: detected %s", ErrNotImage, mime.String())
	}
	if name == "" {
		name = "upload" + mime.Extension()
	}
	return Source{Name: name, MIMEType: baseMIME(mime.String()), Data: data}, nil
}

// DataURL renders the image as a base64 data URL.
func (s Source) DataURL() string {
	return "data:" + s.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(s.Data)
}

// Reader exposes the bytes for uploaders.
func (s Source) Reader() io.Reader {
	return bytes.NewReader(s.Data)
}

// ParseDataURL decodes a base64 data URL into a validated Source.
func ParseDataURL(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "data:") {
		return Source{}, ErrBadDataURL
	}
	header, payload, ok := strings.Cut(raw, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return Source{}, ErrBadDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrBadDataURL, err)
	}
	return FromBytes(data, "")
}

// Decode returns the pixel data of the source. Images over MaxPixels are
// rejected with ErrTooLarge before any pixel is decoded.
func Decode(s Source) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(s.Data))
	if err != nil {
		return nil, "", fmt.Errorf("imaging: decode %s: %w", s.MIMEType, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > MaxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, MaxPixels)
	}
	img, format, err := image.Decode(bytes.NewReader(s.Data))
	if err != nil {
		return nil, "", fmt.Errorf("imaging: decode %s: %w", s.MIMEType, err)
	}
	return img, format, nil
}

func baseMIME(m string) string {
	if i := strings.Index(m, ";"); i >= 0 {
		return strings.TrimSpace(m[:i])
	}
	return m
}
