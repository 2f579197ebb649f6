package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Formatter applies semantic formatting to text.
type Formatter struct {
	color  *color.Color
	prefix string
	suffix string
}

// Sprint renders the arguments in the formatter's style.
func (f Formatter) Sprint(a ...any) string {
	return f.render(fmt.Sprint(a...))
}

// Sprintf renders a formatted string in the formatter's style.
func (f Formatter) Sprintf(format string, a ...any) string {
	return f.render(fmt.Sprintf(format, a...))
}

func (f Formatter) render(text string) string {
	if noColor() {
		return f.prefix + text + f.suffix
	}
	return f.color.Sprint(text)
}

// EnsureNewline ensures the string ends with a newline character.
func EnsureNewline(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\n' {
		return s + "\n"
	}
	return s
}

// Status markers prefixed to result lines.
const (
	SuccessMark = "✓"
	ErrorMark   = "✗"
	WarningMark = "⚠"
	InfoMark    = "ℹ"
	HintMark    = "→"
)

// Succeeded returns msg behind a green check mark.
func Succeeded(msg string) string { return Success.Sprint(SuccessMark) + " " + msg }

// Failed returns msg behind a red cross.
func Failed(msg string) string { return Error.Sprint(ErrorMark) + " " + msg }

// Warned returns msg behind a yellow warning sign.
func Warned(msg string) string { return Warning.Sprint(WarningMark) + " " + msg }

// Noted returns msg behind an informational marker.
func Noted(msg string) string { return Info.Sprint(InfoMark) + " " + msg }

// Hint returns msg behind an arrow, for suggestions that follow an error.
func Hint(msg string) string { return Info.Sprint(HintMark) + " " + msg }

// noColor honours NO_COLOR (https://no-color.org/) and fatih/color's
// terminal detection.
func noColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set || color.NoColor
}

// Formatters by role. Without color, only Code, Highlight and Muted
// decorate their text.
var (
	// Code renders commands to run, such as pkgseal store import.
	Code = Formatter{color.New(color.FgYellow), "`", "`"}

	// Path renders files: configurations, manifests, staged package paths.
	Path = Formatter{color.New(color.FgYellow), "", ""}

	// Flag renders command flags such as --certificate.
	Flag = Formatter{color.New(color.FgYellow), "", ""}

	Success = Formatter{color.New(color.FgGreen), "", ""}
	Error   = Formatter{color.New(color.FgRed), "", ""}
	Warning = Formatter{color.New(color.FgYellow), "", ""}
	Info    = Formatter{color.New(color.FgCyan), "", ""}

	// Highlight renders package ids, certificate subjects and thumbprints.
	Highlight = Formatter{color.New(color.FgCyan), "'", "'"}

	// Muted renders secondary details like storage kinds.
	Muted = Formatter{color.New(color.FgHiBlack), "(", ")"}
)
