package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoint is the immutable destination batches are posted to.
// The zero value is not valid; use ParseEndpoint.
type Endpoint struct {
	u *url.URL
}

// ParseEndpoint parses and validates raw as an absolute http(s) URL.
// The returned error wraps ErrInvalidEndpoint.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, fmt.Errorf("%w: empty url", ErrInvalidEndpoint)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme == "" {
		return Endpoint{}, fmt.Errorf("%w: %q has no scheme", ErrInvalidEndpoint, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Endpoint{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" || u.Hostname() == "" {
		return Endpoint{}, fmt.Errorf("%w: %q has no host", ErrInvalidEndpoint, raw)
	}

	return Endpoint{u: u}, nil
}

// String returns the URL in string form.
func (e Endpoint) String() string {
	if e.u == nil {
		return ""
	}
	return e.u.String()
}

// URL returns a copy of the parsed URL.
func (e Endpoint) URL() *url.URL {
	if e.u == nil {
		return nil
	}
	cp := *e.u
	return &cp
}

// IsZero returns true if the endpoint was never parsed.
func (e Endpoint) IsZero() bool {
	return e.u == nil
}
