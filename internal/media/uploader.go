// Package media stores swatch textures and recolor sources and returns URLs an
// image provider can download.
package media

import (
	"context"
	"errors"
	"io"
)

// ErrUploaderDisabled is returned by Disabled().Upload.
var ErrUploaderDisabled = errors.New("media uploader disabled")

// UploadInput is one file to store. Size is a hint; zero means unknown.
type UploadInput struct {
	Filename    string
	ContentType string
	Body        io.Reader
	Size        int64
}

// UploadResult names the stored object. Remote job backends fetch URL, so an
// empty URL means the object cannot be handed to them.
type UploadResult struct {
	Key string
	URL string
}

// Uploader is implemented by the S3, Supabase Storage and local backends.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (UploadResult, error)
}

// Disabled stands in when no storage backend is configured. Swatches then keep
// no texture and every upload fails with ErrUploaderDisabled.
func Disabled() Uploader {
	return noUploads{}
}

type noUploads struct{}

func (noUploads) Upload(context.Context, UploadInput) (UploadResult, error) {
	return UploadResult{}, ErrUploaderDisabled
}
