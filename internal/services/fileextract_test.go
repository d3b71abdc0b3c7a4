package services

import (
	"strings"
	"testing"
)

func TestNormalizeExtractedText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "trims lines and collapses blank runs",
			input:    "  first line  \n\n\n\n  second line  ",
			expected: "first line\n\nsecond line",
		},
		{
			name:     "windows line endings",
			input:    "a\r\nb\rc",
			expected: "a\nb\nc",
		},
		{
			name:     "whitespace only",
			input:    " \n\t \n ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeExtractedText(tt.input); got != tt.expected {
				t.Fatalf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestStripDOCXML(t *testing.T) {
	xml := `<w:document><w:body><w:p><w:r><w:t>Hello &amp; welcome</w:t></w:r></w:p><w:p><w:r><w:t>Second paragraph</w:t><w:br/><w:t>after break</w:t></w:r></w:p></w:body></w:document>`

	got := stripDOCXML([]byte(xml))

	if !strings.Contains(got, "Hello & welcome") {
		t.Fatalf("entity not decoded: %q", got)
	}
	if !strings.Contains(got, "Second paragraph") {
		t.Fatalf("paragraph text missing: %q", got)
	}
	if strings.Contains(got, "<w:") {
		t.Fatalf("xml tags survived stripping: %q", got)
	}
	// paragraph boundary must become a line break
	if !strings.Contains(got, "welcome\n") {
		t.Fatalf("paragraph break missing: %q", got)
	}
}

func TestExtractTextFromPath_UnsupportedExtension(t *testing.T) {
	s := NewExtractorService()
	_, err := s.ExtractTextFromPath("/tmp/lecture.mp3")
	if err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
}
