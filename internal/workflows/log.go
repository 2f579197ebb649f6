package workflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PolarWolf314/pkgseal/internal/audit"
	"github.com/PolarWolf314/pkgseal/internal/certificates"
	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"
)

const auditTimestampLayout = "2006-01-02T15:04:05.000000Z"

// LogOptions configures the store log workflow.
type LogOptions struct {
	// Location selects whose audit log is read. Defaults to CurrentUser.
	Location string

	// Limit is the maximum number of entries to return. 0 means no limit.
	Limit int

	// Reverse orders entries from most recent to oldest when true.
	Reverse bool

	// Operations filters entries by operation (comma-separated).
	Operations string

	// Thumbprint filters entries by certificate.
	Thumbprint string

	// Since and Until bound entries by date (YYYY-MM-DD, inclusive).
	Since string
	Until string
}

// LogResult contains the outcome of a log operation.
type LogResult struct {
	Path    string
	Entries []audit.Entry

	// Total is the number of entries before filtering.
	Total int
}

// Log reads and filters the audit log of a store location.
//
// Returns ErrInvalidDateFormat if Since or Until cannot be parsed.
func Log(ctx context.Context, opts LogOptions) (*LogResult, error) {
	location, err := certificates.ParseLocation(opts.Location)
	if err != nil {
		return nil, err
	}

	path := audit.StoreLogPath(location == certificates.LocalMachine)
	entries, err := audit.ReadEntries(path)
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	result := &LogResult{Path: path, Total: len(entries)}

	if opts.Operations != "" {
		ops := make(map[string]bool)
		for _, op := range strings.Split(opts.Operations, ",") {
			ops[strings.ToLower(strings.TrimSpace(op))] = true
		}
		entries = filterEntries(entries, func(e audit.Entry) bool {
			return ops[strings.ToLower(e.Operation)]
		})
	}

	if opts.Thumbprint != "" {
		entries = filterEntries(entries, func(e audit.Entry) bool {
			return strings.EqualFold(e.Thumbprint, opts.Thumbprint)
		})
	}

	if opts.Since != "" {
		since, err := time.Parse(time.DateOnly, opts.Since)
		if err != nil {
			return nil, fmt.Errorf("%w: --since must be YYYY-MM-DD", kerrors.ErrInvalidDateFormat)
		}
		entries = filterEntries(entries, func(e audit.Entry) bool {
			t, ok := parseTimestamp(e.Timestamp)
			return ok && !t.Before(since)
		})
	}

	if opts.Until != "" {
		until, err := time.Parse(time.DateOnly, opts.Until)
		if err != nil {
			return nil, fmt.Errorf("%w: --until must be YYYY-MM-DD", kerrors.ErrInvalidDateFormat)
		}
		// Include the whole day.
		until = until.Add(24*time.Hour - time.Nanosecond)
		entries = filterEntries(entries, func(e audit.Entry) bool {
			t, ok := parseTimestamp(e.Timestamp)
			return ok && !t.After(until)
		})
	}

	if opts.Reverse {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}

	// The limit always keeps the most recent entries.
	if opts.Limit > 0 && len(entries) > opts.Limit {
		if opts.Reverse {
			entries = entries[:opts.Limit]
		} else {
			entries = entries[len(entries)-opts.Limit:]
		}
	}

	result.Entries = entries
	return result, nil
}

func filterEntries(entries []audit.Entry, keep func(audit.Entry) bool) []audit.Entry {
	var kept []audit.Entry
	for _, e := range entries {
		if keep(e) {
			kept = append(kept, e)
		}
	}
	return kept
}

func parseTimestamp(ts string) (time.Time, bool) {
	t, err := time.Parse(auditTimestampLayout, ts)
	if err != nil {
		t, err = time.Parse(time.RFC3339, ts)
	}
	return t, err == nil
}

// FormatDate formats an audit timestamp as YYYY-MM-DD HH:MM.
func FormatDate(ts string) string {
	t, ok := parseTimestamp(ts)
	if !ok {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04")
}
