package ui

import (
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
)

// forceColor enables colored output for one test.
func forceColor(t *testing.T) {
	t.Helper()
	t.Setenv("NO_COLOR", "")
	os.Unsetenv("NO_COLOR")
	original := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = original })
}

func TestFormatterWithColor(t *testing.T) {
	forceColor(t)

	result := Code.Sprint("pkgseal decrypt --silent")
	if strings.Contains(result, "`") {
		t.Errorf("Code.Sprint should not contain backticks when color is enabled, got: %s", result)
	}
	if !strings.Contains(result, "\x1b[") {
		t.Errorf("Code.Sprint should contain ANSI escape codes when color is enabled, got: %s", result)
	}

	result = Highlight.Sprintf("package %s", "Contoso.Library")
	if strings.HasPrefix(result, "'") || !strings.Contains(result, "package Contoso.Library") {
		t.Errorf("Highlight.Sprintf should color without quotes, got: %s", result)
	}
}

func TestFormatterWithNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	tests := []struct {
		name      string
		formatter Formatter
		input     string
		want      string
	}{
		{"Code adds backticks", Code, "pkgseal store list", "`pkgseal store list`"},
		{"Path has no decoration", Path, "encryption.config", "encryption.config"},
		{"Flag has no decoration", Flag, "--isolate", "--isolate"},
		{"Success has no decoration", Success, SuccessMark, SuccessMark},
		{"Error has no decoration", Error, ErrorMark, ErrorMark},
		{"Highlight adds quotes", Highlight, "Contoso.Library", "'Contoso.Library'"},
		{"Muted adds parentheses", Muted, "ManifestResource", "(ManifestResource)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.formatter.Sprint(tt.input); got != tt.want {
				t.Errorf("Sprint(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	if got := Code.Sprintf("pkgseal store %s", "log"); got != "`pkgseal store log`" {
		t.Errorf("Code.Sprintf() = %q", got)
	}
	if got := Code.Sprint("pkgseal", " ", "unpack"); got != "`pkgseal unpack`" {
		t.Errorf("Code.Sprint with multiple args = %q", got)
	}
}

func TestNoColorFunction(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	if !noColor() {
		t.Error("noColor() should return true when NO_COLOR is set, even empty")
	}
	os.Unsetenv("NO_COLOR")

	original := color.NoColor
	defer func() { color.NoColor = original }()
	color.NoColor = true
	if !noColor() {
		t.Error("noColor() should return true when color.NoColor is true")
	}
}

func TestEnsureNewline(t *testing.T) {
	for input, want := range map[string]string{"": "\n", "done": "done\n", "done\n": "done\n"} {
		if got := EnsureNewline(input); got != want {
			t.Errorf("EnsureNewline(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestStatusLines(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Succeeded", Succeeded("Decrypted 2 file(s)"), "✓ Decrypted 2 file(s)"},
		{"Failed", Failed("certificate not found"), "✗ certificate not found"},
		{"Warned", Warned("no private key"), "⚠ no private key"},
		{"Noted", Noted("Nothing to decrypt"), "ℹ Nothing to decrypt"},
		{"Hint", Hint("Pass --config"), "→ Pass --config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
