// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// # Port Interfaces
//
//   - [BatchSender]: Dispatches one flushed batch to the endpoint
//   - [Logger]: Structured logging abstraction
//
// The application layer (internal/app) depends only on these interfaces.
// Concrete implementations live in pkg/sender and pkg/log.
package ports
