package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHTML(t *testing.T) {
	r := NewRenderer()

	tests := []struct {
		name     string
		source   string
		contains []string
	}{
		{"heading", "# Invoice", []string{"<h1>Invoice</h1>"}},
		{"list", "- one\n- two", []string{"<ul>", "<li>one</li>"}},
		{"table", "| a | b |\n|---|---|\n| 1 | 2 |", []string{"<table>", "<td>1</td>"}},
		{"raw html is not passed through", "<script>alert(1)</script>", []string{"<!-- raw HTML omitted -->"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, err := r.ToHTML(tt.source)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, html, want)
			}
			assert.NotContains(t, html, "<script>")
		})
	}
}
