package objs3

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"

	netutil "github.com/couchbase/tools-common/http/util"

	"github.com/couchbase/webstor/objstore/objerr"
)

// newHTTPClient builds the HTTP engine a connection drives all of its requests through. The engine is created once
// per connection and kept for its entire life so that pooled sockets, the DNS cache and TLS sessions survive between
// operations.
func newHTTPClient(config Config) (*http.Client, error) {
	tlsConfig, err := newTLSConfig(config)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{
		Timeout: config.ConnectTimeout,
		// TCP keepalive probing detects dead connections while a transfer is idle; Nagling is disabled and the socket
		// buffers enlarged in the control hook.
		KeepAliveConfig: net.KeepAliveConfig{
			Enable:   true,
			Idle:     tcpKeepAliveIdle,
			Interval: tcpKeepAliveInterval,
			Count:    tcpKeepAliveCount,
		},
		Control: socketControl,
	}

	transport := &http.Transport{
		DialContext:     dialer.DialContext,
		TLSClientConfig: tlsConfig,
		// The services do not accept chunked uploads and response bodies must reach the loader byte-exact, so bodies
		// always travel with an explicit 'Content-Length' and without content encoding.
		DisableCompression:  true,
		ForceAttemptHTTP2:   false,
		MaxIdleConnsPerHost: MaxWaitAny,
	}

	if config.Proxy != "" {
		proxy, err := url.Parse(config.Proxy)
		if err != nil {
			return nil, fmt.Errorf("failed to parse proxy url: %w", err)
		}

		transport.Proxy = http.ProxyURL(proxy)
	}

	return &http.Client{Transport: transport, Timeout: config.Timeout}, nil
}

// newTLSConfig resolves the certificate trust source of the given configuration: a CA file, peer verification
// disabled entirely, or the compiled-in AWS roots.
func newTLSConfig(config Config) (*tls.Config, error) {
	if !config.IsHTTPS {
		return nil, nil
	}

	switch config.SSLCertFile {
	case CACertIgnore:
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec
	case "":
		return &tls.Config{RootCAs: defaultCACertPool()}, nil
	}

	pem, err := os.ReadFile(config.SSLCertFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate file: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("failed to parse CA certificate file '%s'", config.SSLCertFile)
	}

	return &tls.Config{RootCAs: pool}, nil
}

// execute performs one request through the engine, filling in the response details. The returned error covers the
// transport only; protocol level failures are classified in the details and surfaced when the request is completed.
func (c *Connection) execute(ctx context.Context, req *request) error {
	var body io.Reader
	if req.uploader != nil && req.contentLength != 0 {
		body = &uploaderReader{req: req}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.verb, req.url, body)
	if err != nil {
		return &objerr.TransportError{Err: err}
	}

	// An explicit length, even when zero, keeps the engine from switching to a chunked upload.

	httpReq.ContentLength = req.contentLength

	if body == nil && req.verb != http.MethodGet {
		httpReq.Body = http.NoBody
	}

	for key, values := range req.header {
		httpReq.Header[key] = values
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		// The engine reports a failure when a callback cut the transfer short; the stashed error wins in that case.
		if req.stashed != nil {
			return nil
		}

		return asTransportError(err)
	}

	return c.handleResponse(req, resp)
}

// handleResponse classifies the response and consumes the body in the mode the classification calls for. Failures
// raised by callbacks or the parser are stashed on the request rather than returned; they are re-raised when the
// operation is joined.
func (c *Connection) handleResponse(req *request, resp *http.Response) error {
	req.details.captureHeaders(resp)

	switch req.details.payloadMode(req.visitor.expectsXML()) {
	case payloadXML:
		err := parseXML(&req.details, req.visitor, resp.Body)
		if err != nil {
			req.stashed = err
			resp.Body.Close()

			return nil
		}
	case payloadBinary:
		if req.loader == nil {
			break
		}

		err := loadBinary(&req.details, req.loader, resp.Body)

		switch {
		case errors.Is(err, errAbortBody):
			// The loader refused part of a chunk; abort rather than drain, the remainder may be arbitrarily large.
			resp.Body.Close()
			return nil
		case objerr.IsTransportError(err):
			resp.Body.Close()
			return err
		case err != nil:
			req.stashed = err
			resp.Body.Close()

			return nil
		}
	}

	// Drain whatever remains so the engine can reuse the connection.

	if err := netutil.Close(resp.Body); err != nil {
		return asTransportError(err)
	}

	return nil
}

// asTransportError wraps an engine failure, normalizing the two timeout shapes into a message callers can match on.
func asTransportError(err error) error {
	var netErr net.Error

	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
	if timeout {
		return &objerr.TransportError{Err: fmt.Errorf("the operation timed out: %w", err)}
	}

	return &objerr.TransportError{Err: err}
}
