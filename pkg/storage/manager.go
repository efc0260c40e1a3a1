// Package storage manages the media download directory layout: one
// filesystem-safe subfolder per channel, filenames derived from message
// timestamp and id, and detection of files already fetched by earlier runs.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// unsafeChars matches every character that may not appear in a channel
// subfolder name.
var unsafeChars = regexp.MustCompile(`[^\w-]`)

// SanitizeHandle maps a channel handle to a filesystem-safe folder name by
// replacing every character outside [A-Za-z0-9_-] with an underscore.
func SanitizeHandle(handle string) string {
	return unsafeChars.ReplaceAllString(handle, "_")
}

// Manager owns one channel's download folder.
type Manager struct {
	dir        string
	downloaded map[int]bool
}

// NewManager creates the download folder for a channel under baseDir and
// indexes media files left behind by previous runs.
func NewManager(baseDir, handle string) (*Manager, error) {
	dir := filepath.Join(baseDir, SanitizeHandle(handle))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	m := &Manager{
		dir:        dir,
		downloaded: make(map[int]bool),
	}
	if err := m.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing downloads: %w", err)
	}
	return m, nil
}

// scanExistingFiles recovers message ids from filenames shaped
// {timestamp}_{id}.{ext}
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		i := strings.LastIndex(stem, "_")
		if i < 0 {
			continue
		}
		if id, err := strconv.Atoi(stem[i+1:]); err == nil {
			m.downloaded[id] = true
		}
	}
	return nil
}

// BasePath returns the extension-less target path for a message's media,
// named for uniqueness from the message date and id.
func (m *Manager) BasePath(date time.Time, messageID int) string {
	name := fmt.Sprintf("%s_%d", date.Format("20060102_150405"), messageID)
	return filepath.Join(m.dir, name)
}

// IsDownloaded reports whether a message's media is already on disk.
func (m *Manager) IsDownloaded(messageID int) bool {
	return m.downloaded[messageID]
}

// MarkDownloaded records a completed download.
func (m *Manager) MarkDownloaded(messageID int) {
	m.downloaded[messageID] = true
}

// Dir returns the channel's download directory.
func (m *Manager) Dir() string {
	return m.dir
}

// DownloadedCount returns the number of media files known to be on disk.
func (m *Manager) DownloadedCount() int {
	return len(m.downloaded)
}
