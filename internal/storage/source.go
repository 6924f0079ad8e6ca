package storage

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/anime-shed/ocr-chat-go/internal/errors"
	"github.com/anime-shed/ocr-chat-go/pkg/validation"
)

// Source is where an upload comes from: raw bytes or a remote URL. Data wins when both are set.
type Source struct {
	Data []byte
	URL  string
}

// Resolver turns a Source into a decoded image.
type Resolver interface {
	Resolve(ctx context.Context, src Source) (*UploadedImage, error)
}

type resolver struct {
	validator *validation.URLValidator
	fetcher   ImageFetcher
	blobs     BlobStorage
}

// NewResolver wires the remote sources. blobs may be nil when Azure is not configured.
func NewResolver(validator *validation.URLValidator, fetcher ImageFetcher, blobs BlobStorage) Resolver {
	return &resolver{
		validator: validator,
		fetcher:   fetcher,
		blobs:     blobs,
	}
}

func (r *resolver) Resolve(ctx context.Context, src Source) (*UploadedImage, error) {
	if len(src.Data) > 0 {
		return DecodeUpload(src.Data)
	}
	if strings.TrimSpace(src.URL) == "" {
		return nil, apperrors.NewInvalidImageError("no image provided", nil)
	}
	if err := r.validator.ValidateImageURL(src.URL); err != nil {
		return nil, err
	}

	var (
		data []byte
		err  error
	)
	if r.blobs != nil && IsBlobURL(src.URL) {
		data, err = r.blobs.GetImage(ctx, src.URL)
	} else {
		data, err = r.fetcher.FetchImage(ctx, src.URL)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("image fetch timeout", err)
		}
		return nil, apperrors.NewNetworkError("failed to fetch image", err)
	}

	return DecodeUpload(data)
}
