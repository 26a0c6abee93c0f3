package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestPadRight(t *testing.T) {
	tests := []struct {
		input  string
		length int
		want   string
	}{
		{"id", 4, "id  "},
		{"exact", 5, "exact"},
		{"longer", 3, "longer"},
		{"", 2, "  "},
	}

	for _, tt := range tests {
		if got := padRight(tt.input, tt.length); got != tt.want {
			t.Errorf("padRight(%q, %d) = %q, want %q", tt.input, tt.length, got, tt.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world", 8, "hello..."},
		{"tiny max", "hello", 2, "he"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateString(tt.input, tt.maxLen); got != tt.expected {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
			}
		})
	}
}

func stubTerminal(t *testing.T, isTTY bool) {
	t.Helper()

	orig := stdinIsTerminal
	stdinIsTerminal = func() bool { return isTTY }

	t.Cleanup(func() { stdinIsTerminal = orig })
}

func TestPromptConfirm(t *testing.T) {
	tests := []struct {
		name  string
		tty   bool
		input string
		want  bool
	}{
		{"yes", true, "y\n", true},
		{"upper yes", true, "Y\n", true},
		{"no", true, "n\n", false},
		{"empty", true, "\n", false},
		{"eof", true, "", false},
		{"not a terminal", false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubTerminal(t, tt.tty)

			var out bytes.Buffer

			if got := promptConfirm(strings.NewReader(tt.input), &out, "Continue? [y/N]: "); got != tt.want {
				t.Errorf("promptConfirm() = %v, want %v", got, tt.want)
			}

			if tt.tty && !strings.Contains(out.String(), "Continue?") {
				t.Errorf("prompt not written, got %q", out.String())
			}
		})
	}
}

func TestPrintInfoBox(t *testing.T) {
	var out bytes.Buffer

	printInfoBox(&out, "Organization chaoss", map[string]string{
		"Repos": "12",
		"Group": "14",
		"Extra": "ignored",
	}, []string{"Group", "Repos", "Missing"})

	got := out.String()

	for _, want := range []string{"Organization chaoss", "Group:", "14", "Repos:", "12"} {
		if !strings.Contains(got, want) {
			t.Errorf("info box missing %q:\n%s", want, got)
		}
	}

	if strings.Contains(got, "ignored") || strings.Contains(got, "Missing") {
		t.Errorf("info box printed keys outside the order:\n%s", got)
	}

	if strings.Index(got, "Group:") > strings.Index(got, "Repos:") {
		t.Errorf("info box did not follow the order:\n%s", got)
	}
}
