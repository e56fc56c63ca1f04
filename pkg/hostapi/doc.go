// Package hostapi exposes handlers through opaque integer handles, for hosts
// that cannot hold Go values across calls (plugin loaders, cgo shims, RPC
// bridges).
//
// Every function reports failure through a return code and, when given one,
// a caller-owned error buffer that receives a NUL-terminated diagnostic.
// Calls with a zero or unknown handle fail without side effects; Destroy
// with such a handle is a no-op.
//
//	errbuf := make([]byte, 256)
//	h := hostapi.Create("http://collector:8080/ingest", errbuf)
//	if h == 0 {
//	    // errbuf holds the reason
//	}
//	hostapi.SetOpt(h, "RB_HTTP_MAX_MESSAGES", "512", errbuf)
//	hostapi.Run(h)
//	hostapi.Produce(h, payload, 0, ctx)
//	for hostapi.GetReports(h, onReport, 100*time.Millisecond) != 0 {
//	}
//	hostapi.Destroy(h, errbuf)
package hostapi
