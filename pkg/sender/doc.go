// Package sender posts flushed batches to the configured endpoint.
//
// An [HTTPSender] issues exactly one POST per batch with the batch bytes as
// the body and a single Content-Type header. In [ModeNormal] the request
// carries a Content-Length; [ModeChunked] streams the body with chunked
// transfer encoding instead.
//
// # Usage
//
//	client := sender.NewHTTPClient(sender.ClientConfig{Timeout: 10 * time.Second})
//	s := sender.NewHTTPSender(client, sender.Options{ContentType: "application/json"}, logger)
//
//	status, err := s.Send(ctx, endpoint, payload)
//
// Any HTTPClient can be supplied, which makes it easy to test with
// net/http/httptest or to route requests through a custom transport.
package sender
