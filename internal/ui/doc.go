// Package ui provides semantic text formatting for CLI output.
//
// Formatters render content by role (commands, paths, package values,
// status). With a color-capable terminal the content is colorized; when
// NO_COLOR is set or the terminal lacks colors, text decorations are used
// instead.
//
//	ui.Code.Sprint("pkgseal store list")   // Commands and code
//	ui.Path.Sprint("encryption.config")    // File paths
//	ui.Highlight.Sprint("Contoso.Library") // Package ids, subjects
//	ui.Muted.Sprint("no private key")      // De-emphasized text
//
// Result lines start with a status marker:
//
//	ui.Succeeded("Decrypted 3 file(s)")
//	ui.Failed("certificate not found")
//	ui.Hint("Pass --certificate")
//
// Without colors, Code gets `backticks`, Highlight gets 'single quotes' and
// Muted gets (parentheses). Other formatters leave text undecorated.
package ui
