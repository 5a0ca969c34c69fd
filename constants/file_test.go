package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"invoice.pdf", PDF},
		{"INVOICE.PDF", PDF},
		{"scan.jpg", IMAGE},
		{"scan.tiff", IMAGE},
		{"notes.docx", Format("")},
		{"noext", Format("")},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatOf(tt.path))
		})
	}
}

func TestIsVisionModel(t *testing.T) {
	assert.True(t, IsVisionModel("moondream"))
	assert.True(t, IsVisionModel("llava:13b"))
	assert.True(t, IsVisionModel("Moondream:latest"))
	assert.False(t, IsVisionModel("llama3.1:latest"))
	assert.False(t, IsVisionModel(""))
}
