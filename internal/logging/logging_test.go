package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	start := time.Date(2026, 2, 12, 21, 38, 36, 0, time.FixedZone("CET", 3600))

	tests := []struct {
		name    string
		logsDir string
		want    string
	}{
		{"relative", "coillogs", filepath.Join("coillogs", "coil_extension.20260212_203836.log")},
		{"dot", "./coillogs", filepath.Join(".", "coillogs", "coil_extension.20260212_203836.log")},
		{"absolute", filepath.Join("/var", "log", "coil"), filepath.Join("/var", "log", "coil", "coil_extension.20260212_203836.log")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogFilePath(tt.logsDir, "coil_extension", start))
		})
	}
}
