// Package utils provides shared utility functions for pkgseal.
//
// # Filesystem Utilities
//
//   - FindUpward: collects every file with a given name from a directory up to the root
//   - CopyFile: copies a file, creating the destination directory
//   - FileExists: reports whether a regular file exists
//
// # System Utilities
//
//   - GetUsername: returns the current account name for audit entries
//
// # String Utilities
//
//   - FormatPaths: lists paths for human-readable output, relative to a base
//
// # I/O Utilities
//
//   - ReadPiped: reads a piped certificate container, bounded by MaxPipedSize
//
// # Terminal Utilities
//
//   - ReadPassphrase: prompts for a certificate password without echo
//   - IsTerminal: checks whether a file is a terminal
//   - WaitForEnter: holds the console open at the end of a decrypt run
package utils
