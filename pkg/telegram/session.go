package telegram

import (
	"fmt"
	"os"
	"path/filepath"
)

const sessionFileName = "tgscraper_session.json"

// SessionPath ensures the session directory exists and returns the path of
// the session file inside it. The file is opaque session state written by
// the transport; reusing it across runs skips re-authentication.
func SessionPath(dir string) (string, error) {
	if dir == "" {
		dir = "sessions"
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create session directory: %w", err)
	}
	return filepath.Join(dir, sessionFileName), nil
}
