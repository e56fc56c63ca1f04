// Package domain holds the value types shared by every httpbatch layer.
//
//   - [Endpoint]: a parsed http or https URL that batches are POSTed to
//   - [Event]: one producer payload plus the caller's opaque value
//   - [Batch]: the byte buffer a worker fills and flushes as one request
//
// It also defines the sentinel errors and [DispatchError]. Nothing here
// performs I/O, so the types are tested without fakes.
package domain
