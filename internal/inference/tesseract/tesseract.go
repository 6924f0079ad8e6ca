// Package tesseract provides a local OCR extractor backed by libtesseract.
package tesseract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anime-shed/ocr-chat-go/internal/logger"

	"github.com/otiai10/gosseract/v2"
)

// Extractor runs OCR locally through libtesseract. It has no notion of
// an instruction; the text comes back as plain lines rather than markdown.
type Extractor struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewExtractor creates an extractor for the given tesseract language codes.
func NewExtractor(languages []string) *Extractor {
	return &Extractor{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

// ExtractText recognises text in the image. The instruction is ignored.
func (e *Extractor) ExtractText(ctx context.Context, image []byte, instruction string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(image) == 0 {
		return "", errors.New("empty image")
	}

	c := e.clientFactory()
	defer c.Close()

	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}

	logger.WithField("languages", strings.Join(e.languages, "+")).Debug("Tesseract extraction completed")
	return strings.TrimSpace(text), nil
}
