package domain

import (
	"errors"
	"testing"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"http url", "http://localhost:8080", "http://localhost:8080", false},
		{"https url with path", "https://example.com/ingest?x=1", "https://example.com/ingest?x=1", false},
		{"surrounding spaces", "  http://localhost:8080/librb-http ", "http://localhost:8080/librb-http", false},
		{"not a url", "not a url", "", true},
		{"empty", "", "", true},
		{"no scheme", "localhost:8080", "", true},
		{"no host", "http://", "", true},
		{"unsupported scheme", "ftp://example.com", "", true},
		{"port only", "http://:8080", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := ParseEndpoint(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEndpoint(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidEndpoint) {
					t.Errorf("error %v does not wrap ErrInvalidEndpoint", err)
				}
				if !ep.IsZero() {
					t.Error("endpoint not zero on error")
				}
				return
			}
			if ep.String() != tt.want {
				t.Errorf("String() = %q, want %q", ep.String(), tt.want)
			}
		})
	}
}

func TestEndpoint_URLIsCopy(t *testing.T) {
	ep, err := ParseEndpoint("http://localhost:8080/a")
	if err != nil {
		t.Fatal(err)
	}

	u := ep.URL()
	u.Path = "/changed"

	if ep.String() != "http://localhost:8080/a" {
		t.Errorf("endpoint mutated through URL(): %s", ep.String())
	}
}

func TestDispatchError_Retryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{0, true},
		{400, false},
		{404, false},
		{408, true},
		{429, true},
		{500, true},
		{503, true},
	}

	for _, tt := range tests {
		err := &DispatchError{StatusCode: tt.status}
		if got := err.Retryable(); got != tt.want {
			t.Errorf("DispatchError{%d}.Retryable() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
