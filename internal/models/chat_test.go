package models

import "testing"

func TestParseSource(t *testing.T) {
	tests := []struct {
		raw      string
		expected Source
	}{
		{"wolfram", SourceWolfram},
		{"gemini", SourceGemini},
		{"error", SourceError},
		{"", SourceUnset},
		{"openai", SourceUnset},
		{"Wolfram", SourceUnset},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			if got := ParseSource(tc.raw); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestSourceLabel(t *testing.T) {
	tests := []struct {
		source   Source
		expected string
	}{
		{SourceWolfram, "📘 WolframAlpha"},
		{SourceGemini, "🤖 Gemini"},
		{SourceError, "⚠️ Error"},
		{SourceUnset, ""},
	}

	for _, tc := range tests {
		if got := tc.source.Label(); got != tc.expected {
			t.Errorf("Label(%q): expected %q, got %q", tc.source, tc.expected, got)
		}
	}
}
