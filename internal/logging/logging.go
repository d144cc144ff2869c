// Package logging sets up slog and zerolog output for the extension.
package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath returns <logsDir>/<name>.<start>.log.
func LogFilePath(logsDir, extensionName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", extensionName, sessionStart.UTC().Format("20060102_150405")),
	)
}
