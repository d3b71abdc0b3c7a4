package models

import "testing"

func TestWordCount(t *testing.T) {
	str := func(s string) *string { return &s }

	tests := []struct {
		name string
		text *string
		want int
	}{
		{"no text", nil, 0},
		{"empty text", str(""), 0},
		{"single word", str("hello"), 1},
		{"whitespace runs collapse", str("  one   two\nthree\t four "), 4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := &Content{RawText: tc.text}
			if got := c.WordCount(); got != tc.want {
				t.Errorf("WordCount() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestValidContentType(t *testing.T) {
	for _, ct := range []string{"document", "video", "article", "note"} {
		if !ValidContentType(ct) {
			t.Errorf("ValidContentType(%q) = false", ct)
		}
	}
	if ValidContentType("podcast") {
		t.Error("ValidContentType(\"podcast\") = true")
	}
}
