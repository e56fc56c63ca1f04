package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxLineBytes bounds the length of one line.
const DefaultMaxLineBytes = 1 << 20

// ErrLineTooLong is returned when a line exceeds Options.MaxLineBytes.
var ErrLineTooLong = errors.New("source: line too long")

// Sink receives one event per line. *httpbatch.Handler satisfies it.
type Sink interface {
	Produce(data []byte) error
}

// Options configures how lines become events.
type Options struct {
	// Separator is appended to every event, for example "\n" to keep the
	// payload newline-delimited or "," for a JSON array body.
	Separator []byte

	// SkipEmpty drops blank lines.
	SkipEmpty bool

	// MaxLineBytes bounds one line. 0 means DefaultMaxLineBytes.
	MaxLineBytes int
}

// lineSplitter cuts a byte stream into lines, keeping an incomplete trailing
// line until more data arrives.
type lineSplitter struct {
	opts    Options
	sink    Sink
	pending []byte
	count   int
}

func newLineSplitter(sink Sink, opts Options) *lineSplitter {
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = DefaultMaxLineBytes
	}
	return &lineSplitter{opts: opts, sink: sink}
}

// consume reads r until EOF and emits every complete line.
func (s *lineSplitter) consume(ctx context.Context, r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			s.pending = append(s.pending, chunk...)
			if chunk[len(chunk)-1] == '\n' {
				line := s.pending
				s.pending = nil
				if emitErr := s.emit(line); emitErr != nil {
					return emitErr
				}
			} else if len(s.pending) > s.opts.MaxLineBytes {
				return fmt.Errorf("%w: more than %d bytes", ErrLineTooLong, s.opts.MaxLineBytes)
			}
		}

		switch {
		case err == nil, errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return nil
		default:
			return err
		}
	}
}

// flush emits the incomplete trailing line, if any.
func (s *lineSplitter) flush() error {
	if len(s.pending) == 0 {
		return nil
	}
	line := s.pending
	s.pending = nil
	return s.emit(line)
}

func (s *lineSplitter) emit(line []byte) error {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) > s.opts.MaxLineBytes {
		return fmt.Errorf("%w: more than %d bytes", ErrLineTooLong, s.opts.MaxLineBytes)
	}
	if s.opts.SkipEmpty && len(bytes.TrimSpace(line)) == 0 {
		return nil
	}

	event := line
	if len(s.opts.Separator) > 0 {
		event = make([]byte, 0, len(line)+len(s.opts.Separator))
		event = append(event, line...)
		event = append(event, s.opts.Separator...)
	}
	if err := s.sink.Produce(event); err != nil {
		return fmt.Errorf("produce line %d: %w", s.count+1, err)
	}
	s.count++
	return nil
}

// ReadLines produces one event per line of r until EOF. A final line
// without a newline is produced as well. It returns the number of events
// produced.
func ReadLines(ctx context.Context, r io.Reader, sink Sink, opts Options) (int, error) {
	s := newLineSplitter(sink, opts)
	if err := s.consume(ctx, r); err != nil {
		return s.count, err
	}
	err := s.flush()
	return s.count, err
}
