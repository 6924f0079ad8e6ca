package analyzer

import (
	"image"

	"github.com/anime-shed/ocr-chat-go/pkg/validation"
)

type readabilityAnalyzer struct {
	pool      *WorkerPool
	metrics   MetricsCalculator
	validator *validation.QualityValidator
}

// NewReadabilityAnalyzer creates an analyzer backed by a worker pool of the given size (0 means NumCPU)
func NewReadabilityAnalyzer(workers int) ReadabilityAnalyzer {
	pool := NewWorkerPool(workers)
	pool.Start()
	return &readabilityAnalyzer{
		pool:      pool,
		metrics:   NewMetricsCalculator(pool),
		validator: validation.NewQualityValidator(),
	}
}

// Analyze measures sharpness, brightness and contrast and lists readability issues
func (a *readabilityAnalyzer) Analyze(img image.Image) *Report {
	gray := a.metrics.Grayscale(img)
	bounds := gray.Bounds()

	report := &Report{
		Brightness:   a.metrics.CalculateBrightness(gray),
		Contrast:     a.metrics.CalculateContrast(gray),
		LaplacianVar: a.metrics.CalculateLaplacianVariance(gray),
	}
	report.Issues = a.validator.Validate(validation.ReadabilityMetrics{
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		LaplacianVar: report.LaplacianVar,
		Brightness:   report.Brightness,
		Contrast:     report.Contrast,
	})
	report.Readable = !a.validator.HasWarnings(report.Issues)
	return report
}

func (a *readabilityAnalyzer) Close() error {
	a.pool.Close()
	return nil
}
