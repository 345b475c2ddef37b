// Package objs3 implements the S3/Walrus wire client: request composition, AWS v2 signing, streaming response
// parsing and the asynchronous connection driver.
package objs3

import "time"

const (
	// defaultHost is the endpoint used when the configuration does not name one.
	defaultHost = "s3.amazonaws.com"

	// defaultWalrusPort is the port Walrus listens on by default.
	defaultWalrusPort = "8773"

	// walrusServicePath is prefixed to every Walrus resource.
	walrusServicePath = "/services/Walrus"

	// CACertIgnore disables peer verification when passed as the certificate source of a HTTPS configuration.
	CACertIgnore = "none"

	contentTypeBinary = "application/octet-stream"
	contentTypeXML    = "application/xml"
)

// Default timeouts; without them a connection may hang forever if the cable is unplugged or anything else stops all
// socket activity.
const (
	// DefaultTimeout bounds a whole operation including the body transfer.
	DefaultTimeout = 120 * time.Second

	// DefaultConnectTimeout bounds establishing the TCP/TLS connection.
	DefaultConnectTimeout = 30 * time.Second
)

// TCP keepalive probing detects dead connections within roughly idle + interval*count seconds while a transfer sits
// idle.
const (
	tcpKeepAliveIdle     = 5 * time.Second
	tcpKeepAliveInterval = 5 * time.Second
	tcpKeepAliveCount    = 3
)

// socketBufferSize is the socket send/receive buffer size. This gives throughput = window/RTT = 1MiB/100ms = 10MiB/s
// on one connection; the kernel doubles the value for bookkeeping overhead on Linux.
const socketBufferSize = 1024 * 1024

// loadChunkSize is the unit in which response bodies are offered to loaders.
const loadChunkSize = 64 * 1024

// MaxWaitAny is the largest number of connections which may be passed to 'WaitAny' in one call.
const MaxWaitAny = 64

const (
	aclHeaderKey   = "x-amz-acl"
	aclHeaderValue = "public-read"

	encryptHeaderKey   = "x-amz-server-side-encryption"
	encryptHeaderValue = "AES256"
)
