package objs3

import (
	"net/url"
	"strings"
)

// urlBuilder composes request URLs from the immutable connection configuration.
type urlBuilder struct {
	// base is scheme + host + optional port + optional Walrus service path + '/'.
	base string

	// region is extracted from regional endpoints and only used to produce the 'CreateBucketConfiguration' body.
	region string
}

// newURLBuilder derives the base URL and region for the given endpoint configuration.
func newURLBuilder(config Config) *urlBuilder {
	var base strings.Builder

	base.Grow(128)

	if config.IsHTTPS {
		base.WriteString("https://")
	} else {
		base.WriteString("http://")
	}

	host := config.Host
	if host == "" {
		host = defaultHost
	}

	base.WriteString(host)

	port := config.Port
	if config.IsWalrus && port == "" {
		port = defaultWalrusPort
	}

	if port != "" {
		base.WriteByte(':')
		base.WriteString(port)
	}

	if config.IsWalrus {
		base.WriteString(walrusServicePath)
	}

	base.WriteByte('/')

	builder := &urlBuilder{base: base.String()}

	// Extract the region from the host name, 's3-us-west-2.amazonaws.com' => 'us-west-2'; the default endpoint
	// 's3.amazonaws.com' has no region.

	if !config.IsWalrus && strings.HasPrefix(config.Host, "s3-") {
		if idx := strings.Index(config.Host, "."+strings.TrimPrefix(defaultHost, "s3.")); idx != -1 {
			builder.region = config.Host[len("s3-"):idx]
		}
	}

	return builder
}

// escapeKey percent-encodes an object key for use in a request path; slashes are escaped too, the services decode
// them back into key separators.
func escapeKey(key string) string {
	return url.PathEscape(key)
}

// objectURL returns the URL for a key (already escaped, possibly carrying a sub-resource suffix) within a bucket; a
// nil key addresses the bucket itself and a nil bucket addresses the service root.
func (u *urlBuilder) objectURL(bucket, escapedKey *string) string {
	var url strings.Builder

	url.Grow(512)
	url.WriteString(u.base)

	if bucket != nil {
		url.WriteString(*bucket)
	}

	if escapedKey != nil {
		url.WriteByte('/')
		url.WriteString(*escapedKey)
	}

	return url.String()
}

// queryParams accumulates the query portion of a listing URL. Keys are controlled literals and not escaped, values
// are always escaped.
type queryParams struct {
	query strings.Builder
}

// add appends '?key=value' or '&key=value'; an empty value is skipped entirely.
func (q *queryParams) add(key, value string) {
	if value == "" {
		return
	}

	if q.query.Len() == 0 {
		q.query.WriteByte('?')
	} else {
		q.query.WriteByte('&')
	}

	q.query.WriteString(key)
	q.query.WriteByte('=')
	q.query.WriteString(url.QueryEscape(value))
}

// String returns the accumulated query, empty when no parameters were added.
func (q *queryParams) String() string {
	return q.query.String()
}
