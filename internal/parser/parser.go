package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/OCAP2/demotimeline/internal/util"
)

// ErrInsufficientFields is returned when a notification carries fewer
// arguments than its command needs.
var ErrInsufficientFields = errors.New("insufficient data fields")

// Separator splits the fields of a transcript line.
const Separator = "|"

// parseIntFromFloat parses a string that may be an integer ("32") or float ("32.00") into int64.
// Decoders that serialize every number as a float write entity ids that way.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

func need(data []string, n int) error {
	if len(data) < n {
		return fmt.Errorf("%w: got %d, need %d", ErrInsufficientFields, len(data), n)
	}
	return nil
}

// clean strips transport quoting from every field in place.
func clean(data []string) {
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(strings.TrimSpace(v)))
	}
}

// Parser provides pure []string -> intake message conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logger}
}

// Line is one transcript line split into its parts.
type Line struct {
	Time    float64
	Command string
	Args    []string
}

// ParseLine splits "<time>|<COMMAND>|arg|arg...". Blank lines and lines
// starting with '#' report ok=false.
func (p *Parser) ParseLine(raw string) (line Line, ok bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return line, false, nil
	}

	parts := strings.Split(raw, Separator)
	if err := need(parts, 2); err != nil {
		return line, false, fmt.Errorf("error parsing line: %w", err)
	}

	line.Time, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return line, false, fmt.Errorf("error parsing time: %w", err)
	}

	line.Command = strings.TrimSpace(parts[1])
	if line.Command == "" {
		return line, false, errors.New("error parsing line: empty command")
	}
	line.Args = parts[2:]
	return line, true, nil
}
