package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStorage is the part of the Supabase Storage client the uploader needs.
// *storage_go.Client (supabase.Client.Storage) satisfies it.
type SupabaseStorage interface {
	UploadFile(bucketID, relativePath string, data io.Reader, opts ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketID, filePath string, opts ...storage_go.UrlOptions) storage_go.SignedUrlResponse
}

// SupabaseUploader writes objects into a Storage bucket and returns their public URL.
type SupabaseUploader struct {
	// storage-go keeps upload headers on the shared client, so uploads run one at a time.
	mu      sync.Mutex
	storage SupabaseStorage
	bucket  string
	prefix  string
}

// NewSupabaseUploader wraps the project's Storage client for one bucket.
func NewSupabaseUploader(storage SupabaseStorage, bucket, keyPrefix string) (*SupabaseUploader, error) {
	if storage == nil {
		return nil, errors.New("supabase storage: client is required")
	}
	bucket = strings.Trim(bucket, "/")
	if bucket == "" {
		return nil, errors.New("supabase storage: bucket is required")
	}
	return &SupabaseUploader{storage: storage, bucket: bucket, prefix: strings.Trim(keyPrefix, "/")}, nil
}

// Upload stores the body under a fresh key.
func (u *SupabaseUploader) Upload(ctx context.Context, input UploadInput) (UploadResult, error) {
	if input.Body == nil {
		return UploadResult{}, errors.New("upload body is required")
	}
	if err := ctx.Err(); err != nil {
		return UploadResult{}, err
	}
	key := buildKey(u.prefix, input.Filename)
	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := false

	u.mu.Lock()
	_, err := u.storage.UploadFile(u.bucket, key, input.Body, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	u.mu.Unlock()
	if err != nil {
		return UploadResult{}, fmt.Errorf("supabase storage: upload %s: %w", key, err)
	}

	return UploadResult{
		Key: key,
		URL: u.storage.GetPublicUrl(u.bucket, key).SignedURL,
	}, nil
}
