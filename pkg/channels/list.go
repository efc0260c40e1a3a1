// Package channels reads the channel list file driving a run.
package channels

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	errs "tgscraper/pkg/errors"
	"tgscraper/pkg/logger"
)

const listTemplate = "# Add one channel username per line (with or without @)\n"

// Read returns the channel handles listed in the file at path, one per
// line. Blank lines and #-prefixed comment lines are skipped. When the file
// does not exist a template is written for the user to fill in and a
// configuration error is returned; the run cannot proceed without targets.
func Read(path string, log logger.Logger) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read channel list: %w", err)
		}

		if werr := os.WriteFile(path, []byte(listTemplate), 0644); werr != nil {
			return nil, fmt.Errorf("failed to create channel list template: %w", werr)
		}
		log.InfoWithFields("created empty channel list, please add channel usernames and run again", map[string]interface{}{
			"path": path,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeConfig,
			Message: fmt.Sprintf("channel list file %q not found", path),
		}
	}
	defer file.Close()

	var handles []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		handles = append(handles, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read channel list: %w", err)
	}

	if len(handles) == 0 {
		log.WarnWithFields("no channels found in list", map[string]interface{}{
			"path": path,
		})
	}
	return handles, nil
}
