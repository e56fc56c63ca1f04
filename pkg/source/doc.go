// Package source feeds newline-delimited events from readers and files into
// a handler.
package source
