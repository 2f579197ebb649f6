package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/PolarWolf314/pkgseal/internal/configs"
	"github.com/PolarWolf314/pkgseal/internal/utils"
)

// FileName is the audit log kept at the root of every store location.
const FileName = "audit.jsonl"

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp string `json:"ts"`   // RFC3339 with microseconds.
	User      string `json:"user"` // Local account performing the action.
	Operation string `json:"op"`   // Operation name.

	// Optional fields depending on operation.
	Location   string   `json:"location,omitempty"`   // For store operations.
	Store      string   `json:"store,omitempty"`      // For store operations.
	Thumbprint string   `json:"thumbprint,omitempty"` // Certificate involved.
	Subject    string   `json:"subject,omitempty"`    // Certificate subject.
	PackageID  string   `json:"package,omitempty"`    // For encrypt.
	Files      []string `json:"files,omitempty"`      // For encrypt.
}

// Log appends an entry to the audit log at path.
// Operations should not fail just because audit logging failed, so
// errors are ignored.
func Log(path string, entry Entry) {
	if path == "" {
		return
	}

	// Set timestamp if not already set.
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
	}
	if entry.User == "" {
		if name, err := utils.GetUsername(); err == nil {
			entry.User = name
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return
	}

	// #nosec G306 -- the log holds no secrets.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	_, _ = f.Write(append(data, '\n'))
}

// StoreLogPath returns the audit log of a store location.
func StoreLogPath(machine bool) string {
	settings, err := configs.ResolveStores()
	if err != nil {
		return ""
	}
	if machine {
		return filepath.Join(settings.MachineStoresPath, FileName)
	}
	return filepath.Join(settings.UserStoresPath, FileName)
}

// ReadEntries reads all entries from the audit log at path.
// Returns an empty slice if the log doesn't exist.
func ReadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return ParseEntries(data)
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are silently skipped.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	start := 0

	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}

			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}
