package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func issueTypes(issues []QualityIssue) []string {
	types := make([]string, 0, len(issues))
	for _, i := range issues {
		types = append(types, i.Type)
	}
	return types
}

func TestQualityValidator_Validate(t *testing.T) {
	good := ReadabilityMetrics{Width: 1200, Height: 1600, LaplacianVar: 800, Brightness: 180, Contrast: 60}

	tests := []struct {
		name    string
		modify  func(m *ReadabilityMetrics)
		want    []string
		warning bool
	}{
		{"clean scan", func(m *ReadabilityMetrics) {}, []string{}, false},
		{"thumbnail", func(m *ReadabilityMetrics) { m.Width, m.Height = 200, 150 }, []string{"low_resolution"}, true},
		{"blurry", func(m *ReadabilityMetrics) { m.LaplacianVar = 12 }, []string{"blurriness"}, true},
		{"dark", func(m *ReadabilityMetrics) { m.Brightness = 20 }, []string{"too_dark"}, true},
		{"washed out", func(m *ReadabilityMetrics) { m.Brightness = 250 }, []string{"too_bright"}, true},
		{"blank page", func(m *ReadabilityMetrics) { m.Contrast = 2; m.LaplacianVar = 0 }, []string{"low_contrast"}, false},
	}

	v := NewQualityValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := good
			tt.modify(&m)
			issues := v.Validate(m)
			assert.Equal(t, tt.want, issueTypes(issues))
			assert.Equal(t, tt.warning, v.HasWarnings(issues))
		})
	}
}

func TestQualityValidator_CustomThresholds(t *testing.T) {
	th := DefaultReadabilityThresholds()
	th.MinShortSide = 10
	th.MinTotalPixels = 100
	v := NewQualityValidatorWithThresholds(th)

	issues := v.Validate(ReadabilityMetrics{Width: 20, Height: 20, LaplacianVar: 500, Brightness: 128, Contrast: 50})
	assert.Empty(t, issues)
	assert.Empty(t, v.ConvertIssuesToMessages(issues))
}
