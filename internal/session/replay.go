package session

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/OCAP2/demotimeline/internal/dispatcher"
)

const maxLineSize = 1 << 20

// Replay feeds a notification transcript through the session in order and
// flushes the emitted events. The first malformed line aborts the replay.
func (s *Session) Replay(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line, ok, err := s.Parser.ParseLine(scanner.Text())
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if !ok {
			continue
		}

		s.deps.Context.setPosition(lineNo, line.Time)
		_, err = s.Dispatcher.Dispatch(dispatcher.Event{
			Command: line.Command,
			Args:    line.Args,
			Time:    line.Time,
			Line:    lineNo,
		})
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading transcript: %w", err)
	}

	return s.Flush()
}
