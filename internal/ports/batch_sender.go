package ports

import (
	"context"

	"github.com/bft-labs/httpbatch/internal/domain"
)

// BatchSender transmits one flushed batch to the endpoint.
type BatchSender interface {
	// Send posts payload to endpoint and returns the HTTP status code.
	// A non-2xx status or a transport failure is returned as a
	// *domain.DispatchError. The status code is 0 when no response arrived.
	Send(ctx context.Context, endpoint domain.Endpoint, payload []byte) (int, error)
}
