// Package audit records changes to certificate stores.
//
// Importing, creating or removing a certificate, and sealing a package
// with a store certificate, append an entry to the audit log at the root
// of the store location:
//
//	<stores>/audit.jsonl
//
// Each entry contains:
//   - Timestamp (RFC3339 with microseconds, UTC)
//   - Local user name
//   - Operation name
//   - Store, certificate and package details where relevant
//
// # Failure Handling
//
// Audit logging is best-effort. If logging fails (permissions, disk full,
// etc.), the operation continues without error.
//
// # Reading Logs
//
// Use ReadEntries() to parse a log for display. Malformed entries are
// silently skipped to handle partial writes.
package audit
