// Package isolated extracts carrier payloads either in-process or in a
// short-lived child process running the hidden unpack command.
package isolated
