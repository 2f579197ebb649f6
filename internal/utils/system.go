package utils

import (
	"os"
	"os/user"
)

// GetUsername returns the current username, falling back to the USER or
// USERNAME environment variables when the account database is unavailable.
func GetUsername() (string, error) {
	u, err := user.Current()
	if err == nil {
		return u.Username, nil
	}
	for _, key := range []string{"USER", "USERNAME"} {
		if name := os.Getenv(key); name != "" {
			return name, nil
		}
	}
	return "", err
}
