// Package parser converts raw host arguments into fire-control inputs.
// It holds no state besides the coordinate projector.
package parser

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/OCAP2/coil/internal/geo"
	"github.com/OCAP2/coil/internal/util"
	"github.com/OCAP2/coil/pkg/core"
)

// ErrInvalidArgs is wrapped by every argument error.
var ErrInvalidArgs = errors.New("invalid arguments")

// Parser provides pure []string -> struct conversion.
type Parser struct {
	logger    *slog.Logger
	projector *geo.Projector
}

// NewParser returns a parser. A nil projector passes coordinates through.
func NewParser(logger *slog.Logger, projector *geo.Projector) *Parser {
	if projector == nil {
		projector = geo.NewProjector(false, 0, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger, projector: projector}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgs, fmt.Sprintf(format, args...))
}

// clean strips host quoting and checks the argument count.
func clean(cmd string, data []string, min int) ([]string, error) {
	if len(data) < min {
		return nil, invalid("%s expects %d args, got %d", cmd, min, len(data))
	}
	out := make([]string, len(data))
	for i, v := range data {
		out[i] = util.CleanArg(v)
	}
	return out, nil
}

func entityID(cmd, field, s string) (core.EntityID, error) {
	if s == "" {
		return "", invalid("%s: empty %s", cmd, field)
	}
	return core.EntityID(s), nil
}

func float(cmd, field, s string) (float64, error) {
	v, err := util.ParseFloat(s)
	if err != nil {
		return 0, invalid("%s: %s %q is not a number", cmd, field, s)
	}
	return v, nil
}

func boolean(cmd, field, s string) (bool, error) {
	v, err := util.ParseBool(s)
	if err != nil {
		return false, invalid("%s: %s %q is not a boolean", cmd, field, s)
	}
	return v, nil
}

func (p *Parser) position(cmd, field, s string) (core.Position3D, error) {
	pos, err := p.projector.ParsePosition(s)
	if err != nil {
		return core.Position3D{}, fmt.Errorf("%w: %s: %s: %w", ErrInvalidArgs, cmd, field, err)
	}
	return pos, nil
}

// Projector returns the coordinate projector in use.
func (p *Parser) Projector() *geo.Projector {
	return p.projector
}
