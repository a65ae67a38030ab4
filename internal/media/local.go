package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader stores files on the local filesystem. When BaseURL is set the
// directory is expected to be served there and uploads get a URL; otherwise
// the result carries only the file path.
type LocalUploader struct {
	BaseDir string
	BaseURL string
}

// NewLocalUploader constructs an uploader that writes to the provided directory.
// If baseDir is empty, os.TempDir() is used.
func NewLocalUploader(baseDir, baseURL string) (*LocalUploader, error) {
	dir := baseDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "furnicolor-media")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create local media dir: %w", err)
	}
	return &LocalUploader{BaseDir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload writes the incoming content to a new file under BaseDir.
func (l *LocalUploader) Upload(_ context.Context, input UploadInput) (UploadResult, error) {
	if input.Body == nil {
		return UploadResult{}, fmt.Errorf("upload body is required")
	}

	name := buildKey("", input.Filename)
	target := filepath.Join(l.BaseDir, name)
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create local file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, input.Body); err != nil {
		os.Remove(target)
		return UploadResult{}, fmt.Errorf("write local file: %w", err)
	}

	result := UploadResult{Key: target}
	if l.BaseURL != "" {
		result.URL = l.BaseURL + "/" + name
	}
	return result, nil
}
