package sender

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bft-labs/httpbatch/internal/domain"
	"github.com/bft-labs/httpbatch/pkg/log"
)

// DefaultContentType is the structured content type declared on every batch.
const DefaultContentType = "application/json"

// maxErrorBody bounds how much of a failed response body ends up in an error.
const maxErrorBody = 512

// Options configures an HTTPSender.
type Options struct {
	// ContentType is the value of the Content-Type header.
	// Default: application/json
	ContentType string

	// Mode selects body framing.
	Mode Mode

	// Verbose logs every request and response at debug level.
	Verbose bool
}

// HTTPSender posts batches to an endpoint.
type HTTPSender struct {
	client HTTPClient
	opts   Options
	logger log.Logger
}

// NewHTTPSender creates a new HTTP sender.
func NewHTTPSender(client HTTPClient, opts Options, logger log.Logger) *HTTPSender {
	if opts.ContentType == "" {
		opts.ContentType = DefaultContentType
	}
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &HTTPSender{
		client: client,
		opts:   opts,
		logger: logger,
	}
}

// Send posts payload to endpoint. It returns the response status code, and a
// *domain.DispatchError for transport failures and non-2xx responses.
func (s *HTTPSender) Send(ctx context.Context, endpoint domain.Endpoint, payload []byte) (int, error) {
	var body io.Reader = bytes.NewReader(payload)
	if s.opts.Mode == ModeChunked {
		// Hiding the length from net/http forces chunked encoding.
		body = io.MultiReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), body)
	if err != nil {
		return 0, &domain.DispatchError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", s.opts.ContentType)
	if s.opts.Mode == ModeChunked {
		req.ContentLength = -1
	}

	if s.opts.Verbose {
		s.logger.Debug("POST",
			log.String("url", endpoint.String()),
			log.Int("bytes", len(payload)),
			log.String("mode", s.opts.Mode.String()),
		)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, &domain.DispatchError{Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	if s.opts.Verbose {
		s.logger.Debug("POST response",
			log.String("url", endpoint.String()),
			log.Int("status", resp.StatusCode),
		)
	}

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var cause error
		if msg := strings.TrimSpace(string(respBody)); msg != "" {
			cause = fmt.Errorf("%s", msg)
		}
		return resp.StatusCode, &domain.DispatchError{StatusCode: resp.StatusCode, Err: cause}
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
