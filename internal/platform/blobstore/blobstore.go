// Package blobstore stores the images attached to orders and packages:
// patient photos uploaded from the order form and package artwork uploaded
// from the back office. Backends are in-memory, S3 and a remote image host.
package blobstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
	ErrInvalidPurpose     = errors.New("unknown upload purpose")
	ErrUnsupported        = errors.New("operation not supported by this backend")
)

// MaxFileSize is the largest accepted image (10 MB).
const MaxFileSize = 10 * 1024 * 1024

const (
	PurposePatientPhoto = "patient-photo"
	PurposeExtraPhoto   = "extra-photo"
	PurposePackageImage = "package-image"
)

var allowedPurposes = map[string]bool{
	PurposePatientPhoto: true,
	PurposeExtraPhoto:   true,
	PurposePackageImage: true,
}

var allowedContentTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Object describes a stored image. URL is what gets persisted on the
// application or package.
type Object struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Purpose     string    `json:"purpose"`
	Hash        string    `json:"hash"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"createdAt"`
}

type BlobStore interface {
	Upload(ctx context.Context, obj Object, content io.Reader) (*Object, error)
	Download(ctx context.Context, id string) (io.ReadCloser, *Object, error)
	Delete(ctx context.Context, id string) error
}

// readValidated checks the metadata and reads at most MaxFileSize bytes.
func readValidated(obj *Object, content io.Reader) ([]byte, error) {
	if obj.FileName == "" {
		return nil, ErrMissingFileName
	}
	if !allowedPurposes[obj.Purpose] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPurpose, obj.Purpose)
	}
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(obj.ContentType, ";", 2)[0]))
	if _, ok := allowedContentTypes[ct]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidContentType, obj.ContentType)
	}
	obj.ContentType = ct

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	obj.Size = int64(len(data))
	obj.Hash = fmt.Sprintf("%x", sha256.Sum256(data))
	obj.CreatedAt = time.Now().UTC()
	return data, nil
}

// objectKey places an object under its purpose prefix, keeping the
// extension the browser will need.
func objectKey(purpose, id, contentType string) string {
	return path.Join(purpose, id+allowedContentTypes[contentType])
}
