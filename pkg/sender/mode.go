package sender

import (
	"fmt"
	"strings"
)

// Mode selects how the request body is framed on the wire.
type Mode int

const (
	// ModeNormal sends the body with a Content-Length header.
	ModeNormal Mode = iota
	// ModeChunked sends the body with Transfer-Encoding: chunked.
	ModeChunked
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeChunked:
		return "chunked"
	default:
		return "unknown"
	}
}

// ParseMode parses "normal" or "chunked". The numeric forms "0" and "1"
// are accepted as well.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "0", "":
		return ModeNormal, nil
	case "chunked", "1":
		return ModeChunked, nil
	default:
		return ModeNormal, fmt.Errorf("unknown mode %q (want normal or chunked)", s)
	}
}
