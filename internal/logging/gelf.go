package logging

import (
	"fmt"

	"github.com/Graylog2/go-gelf/gelf"
)

// DialGraylog opens a GELF UDP writer. Each slog JSON record becomes one message.
func DialGraylog(address, facility string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("graylog writer %s: %w", address, err)
	}
	if facility != "" {
		w.Facility = facility
	}
	return w, nil
}
