package analyzer

import (
	"image"

	"github.com/anime-shed/ocr-chat-go/pkg/validation"
)

// ReadabilityAnalyzer judges whether an image is likely to yield usable text
type ReadabilityAnalyzer interface {
	Analyze(img image.Image) *Report

	// Lifecycle management
	Close() error
}

// MetricsCalculator handles image metrics computation
type MetricsCalculator interface {
	Grayscale(img image.Image) *image.Gray
	CalculateLaplacianVariance(gray *image.Gray) float64
	CalculateBrightness(gray *image.Gray) float64
	CalculateContrast(gray *image.Gray) float64
}

// Report is the advisory readability result attached to an upload
type Report struct {
	Brightness   float64                   `json:"brightness"`
	Contrast     float64                   `json:"contrast"`
	LaplacianVar float64                   `json:"laplacian_variance"`
	Issues       []validation.QualityIssue `json:"issues,omitempty"`
	Readable     bool                      `json:"readable"`
}
