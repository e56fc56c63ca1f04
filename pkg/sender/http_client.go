package sender

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// HTTPClient executes outbound batch requests.
// The standard *http.Client satisfies this interface.
type HTTPClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures the default HTTP client.
type ClientConfig struct {
	// Timeout bounds a whole request, including reading the response.
	Timeout time.Duration

	// ConnectTimeout bounds establishing the TCP connection.
	ConnectTimeout time.Duration

	// MaxIdleConnsPerHost is the number of kept-alive connections to the endpoint.
	MaxIdleConnsPerHost int

	// Insecure disables TLS certificate and host name verification.
	Insecure bool
}

// NewHTTPClient builds an *http.Client from cfg.
func NewHTTPClient(cfg ClientConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ExpectContinueTimeout: time.Second,
	}
	if cfg.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}
