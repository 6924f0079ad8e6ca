package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/anime-shed/ocr-chat-go/internal/analyzer"
	apperrors "github.com/anime-shed/ocr-chat-go/internal/errors"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// maxImagePixels bounds width*height before the pixel buffer is allocated.
const maxImagePixels = 89478485

// allowedMIMETypes lists the raster formats accepted for extraction.
var allowedMIMETypes = []string{
	"image/png",
	"image/jpeg",
	"image/webp",
	"image/bmp",
	"image/gif",
}

// UploadedImage is a decoded upload held only for the duration of one request.
type UploadedImage struct {
	Data     []byte      `json:"-"`
	Decoded  image.Image `json:"-"`
	MIMEType string      `json:"mime_type"`
	Format   string      `json:"format"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	Size     int         `json:"size"`

	// Readability is advisory and never blocks extraction.
	Readability *analyzer.Report `json:"readability,omitempty"`
}

// DecodeUpload checks that data is a supported raster image that fully decodes.
func DecodeUpload(data []byte) (*UploadedImage, error) {
	if len(data) == 0 {
		return nil, apperrors.NewInvalidImageError("image is empty", nil)
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedMIMETypes...) {
		return nil, apperrors.NewInvalidImageError("unsupported image type", nil).WithDetails(mt.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewInvalidImageError("image could not be decoded", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, apperrors.NewInvalidImageError("image dimensions too large", nil).
			WithDetails(fmt.Sprintf("%dx%d", cfg.Width, cfg.Height))
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewInvalidImageError("image could not be decoded", err)
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, apperrors.NewInvalidImageError("image has no pixels", nil)
	}

	return &UploadedImage{
		Data:     data,
		Decoded:  img,
		MIMEType: mt.String(),
		Format:   format,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Size:     len(data),
	}, nil
}
