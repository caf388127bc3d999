package textutil

import (
	"testing"
	"unicode/utf8"
)

func TestCleanString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid", "Hello 世界", "Hello 世界"},
		{"nul bytes", "Al\x00ice\x00", "Alice"},
		{"empty", "", ""},
		{"windows-1252", "Rand\x92s Opponent", "Rand’s Opponent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanString(tt.input)
			if got != tt.want {
				t.Errorf("CleanString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanOptional(t *testing.T) {
	if CleanOptional(nil) != nil {
		t.Error("CleanOptional(nil) should be nil")
	}
	s := "a\x00b"
	if got := CleanOptional(&s); got == nil || *got != "ab" {
		t.Errorf("CleanOptional = %v, want ab", got)
	}
}

func TestEnsureUTF8_AlwaysValid(t *testing.T) {
	inputs := []string{
		"\xff\xfe\xfd",
		"caf\xe9 au lait",
		"\x82\xb1\x82\xf1\x82\xc9\x82\xbf\x82\xcd",
	}
	for _, in := range inputs {
		if got := EnsureUTF8(in); !utf8.ValidString(got) {
			t.Errorf("EnsureUTF8(%q) = %q, not valid UTF-8", in, got)
		}
	}
}

func TestSanitizeUTF8(t *testing.T) {
	if got := SanitizeUTF8("a\xffb"); got != "a\ufffdb" {
		t.Errorf("SanitizeUTF8 = %q", got)
	}
}

func TestFoldForSearch(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Émile", "emile"},
		{"CAFÉ crème", "cafe creme"},
		{"Straße", "straße"},
		{"日本語", "日本語"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FoldForSearch(tt.input); got != tt.want {
			t.Errorf("FoldForSearch(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxRunes int
		want     string
	}{
		{"short", "Hello", 10, "Hello"},
		{"exact", "Hello", 5, "Hello"},
		{"truncate", "Hello World", 8, "Hello..."},
		{"max 3", "Hello", 3, "Hel"},
		{"zero", "Hello", 0, ""},
		{"multibyte", "你好世界！", 4, "你..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateRunes(tt.input, tt.maxRunes); got != tt.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.input, tt.maxRunes, got, tt.want)
			}
		})
	}
}

func TestSanitizeTerminal(t *testing.T) {
	tests := map[string]string{
		"plain":                 "plain",
		"two\nlines":            "two lines",
		"tab\tstop":             "tab stop",
		"carriage\rreturn":      "carriagereturn",
		"\x1b[31mred\x1b[0m":    "[31mred[0m",
		"bell\a":                "bell",
		"emoji 👋 and accents é": "emoji 👋 and accents é",
	}
	for in, want := range tests {
		if got := SanitizeTerminal(in); got != want {
			t.Errorf("SanitizeTerminal(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateWidth(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxWidth int
		want     string
	}{
		{"fits", "Hello", 10, "Hello"},
		{"truncate", "Hello World", 8, "Hello..."},
		{"narrow", "Hello", 2, "He"},
		{"wide runes", "你好世界", 7, "你好..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateWidth(tt.input, tt.maxWidth); got != tt.want {
				t.Errorf("TruncateWidth(%q, %d) = %q, want %q", tt.input, tt.maxWidth, got, tt.want)
			}
		})
	}
}
