package validation

// ReadabilityThresholds bound the image metrics that make printed text hard to recognise
type ReadabilityThresholds struct {
	// Sharpness
	MinLaplacianVariance float64

	// Mean gray level, 0-255
	MinBrightness float64
	MaxBrightness float64

	// Standard deviation of gray levels
	MinContrast float64

	// Resolution
	MinShortSide   int
	MinTotalPixels int
}

// DefaultReadabilityThresholds returns the default thresholds
func DefaultReadabilityThresholds() ReadabilityThresholds {
	return ReadabilityThresholds{
		MinLaplacianVariance: 100.0,
		MinBrightness:        60.0,
		MaxBrightness:        235.0,
		MinContrast:          20.0,
		MinShortSide:         300,
		MinTotalPixels:       150000,
	}
}

// Issue severities
const (
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// QualityIssue describes one readability concern
type QualityIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"`
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// ReadabilityMetrics are the measurements the validator judges
type ReadabilityMetrics struct {
	Width        int
	Height       int
	LaplacianVar float64
	Brightness   float64
	Contrast     float64
}

// QualityValidator turns metrics into readability issues
type QualityValidator struct {
	thresholds ReadabilityThresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		thresholds: DefaultReadabilityThresholds(),
	}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds ReadabilityThresholds) *QualityValidator {
	return &QualityValidator{
		thresholds: thresholds,
	}
}

// Validate lists everything likely to degrade text extraction. An empty result means no concerns.
func (qv *QualityValidator) Validate(m ReadabilityMetrics) []QualityIssue {
	var issues []QualityIssue
	t := qv.thresholds

	shortSide := m.Width
	if m.Height < shortSide {
		shortSide = m.Height
	}
	if shortSide < t.MinShortSide || m.Width*m.Height < t.MinTotalPixels {
		issues = append(issues, QualityIssue{
			Type:        "low_resolution",
			Message:     "Image is small; small print may not be recognised.",
			Severity:    SeverityWarning,
			ActualValue: float64(m.Width * m.Height),
			Threshold:   float64(t.MinTotalPixels),
		})
	}

	// Flat images have no edges at all, so blur is only meaningful with some contrast.
	if m.Contrast >= t.MinContrast && m.LaplacianVar < t.MinLaplacianVariance {
		issues = append(issues, QualityIssue{
			Type:        "blurriness",
			Message:     "Image looks blurry. Text edges may not be readable.",
			Severity:    SeverityWarning,
			ActualValue: m.LaplacianVar,
			Threshold:   t.MinLaplacianVariance,
		})
	}

	if m.Brightness < t.MinBrightness {
		issues = append(issues, QualityIssue{
			Type:        "too_dark",
			Message:     "Image is too dark.",
			Severity:    SeverityWarning,
			ActualValue: m.Brightness,
			Threshold:   t.MinBrightness,
		})
	} else if m.Brightness > t.MaxBrightness {
		issues = append(issues, QualityIssue{
			Type:        "too_bright",
			Message:     "Image is washed out.",
			Severity:    SeverityWarning,
			ActualValue: m.Brightness,
			Threshold:   t.MaxBrightness,
		})
	}

	if m.Contrast < t.MinContrast {
		issues = append(issues, QualityIssue{
			Type:        "low_contrast",
			Message:     "Image has very little contrast; there may be no visible text.",
			Severity:    SeverityInfo,
			ActualValue: m.Contrast,
			Threshold:   t.MinContrast,
		})
	}

	return issues
}

// ConvertIssuesToMessages flattens issues to their messages
func (qv *QualityValidator) ConvertIssuesToMessages(issues []QualityIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasWarnings reports whether any issue is at warning severity
func (qv *QualityValidator) HasWarnings(issues []QualityIssue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityWarning {
			return true
		}
	}
	return false
}
