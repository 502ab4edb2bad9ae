// Package transport builds the HTTP client used to reach the seed model server.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/http2"
)

// Options configures NewClient.
type Options struct {
	// Timeout bounds connection setup and waiting for response headers.
	// Zero means 30s. Request deadlines are applied by the caller's context.
	Timeout time.Duration

	// HTTP2 enables HTTP/2 negotiation over TLS.
	HTTP2 bool

	// CAFile is an optional PEM bundle trusted in addition to the system roots.
	CAFile string
}

// NewClient returns an *http.Client whose transport honors opts.
func NewClient(opts Options) (*http.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if opts.CAFile != "" {
		pool, err := loadCertPool(opts.CAFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.RootCAs = pool
	}

	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
	}

	if opts.HTTP2 {
		h2, err := http2.ConfigureTransports(t)
		if err != nil {
			return nil, fmt.Errorf("configure http2: %w", err)
		}
		h2.ReadIdleTimeout = timeout
		h2.PingTimeout = 15 * time.Second
	}

	return &http.Client{Transport: t}, nil
}

// loadCertPool returns the system pool with the certificates in path added.
func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("failed to parse CA certificate %s", path)
	}
	return pool, nil
}
