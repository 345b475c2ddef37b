package objs3

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/couchbase/tools-common/types/v2/timeprovider"
)

// signer computes AWS signature v2 authorization values; HMAC-SHA1 over a canonicalized request string.
type signer struct {
	accessKey    string
	secretKey    string
	timeProvider timeprovider.TimeProvider
}

// signOptions is the subset of a request which participates in the signature.
type signOptions struct {
	// Verb is the HTTP verb of the request.
	Verb string

	// ContentMD5/ContentType are included in the string to sign when the matching headers are sent.
	ContentMD5  string
	ContentType string

	// Date is the value of the 'Date' header, RFC 1123 GMT.
	Date string

	MakePublic        bool
	ServerSideEncrypt bool

	// Bucket is the bucket portion of the canonical resource.
	Bucket *string

	// Key is the already URL-escaped key portion of the canonical resource, including any sub-resource suffix (e.g.
	// '?uploads'). A non-nil empty key still contributes a trailing '/'.
	Key *string

	IsWalrus bool
}

// date returns the current time formatted for the 'Date' header.
func (s *signer) date() string {
	return s.timeProvider.Now().UTC().Format(http.TimeFormat)
}

// sign returns the value of the 'Authorization' header for the given request; the leading space is intentional. The
// HTTP engine trims surrounding whitespace when writing header values, so the space does not reach the wire.
func (s *signer) sign(opts signOptions) string {
	var toSign strings.Builder

	toSign.Grow(1024)
	toSign.WriteString(opts.Verb)
	toSign.WriteByte('\n')

	// Headers; some contribute only their value, the AMZ ones contribute 'key:value'.

	appendSigHeader(&toSign, "", opts.ContentMD5)
	appendSigHeader(&toSign, "", opts.ContentType)
	appendSigHeader(&toSign, "", opts.Date)

	if opts.MakePublic {
		appendSigHeader(&toSign, aclHeaderKey, aclHeaderValue)
	}

	if opts.ServerSideEncrypt {
		appendSigHeader(&toSign, encryptHeaderKey, encryptHeaderValue)
	}

	// Canonical resource.

	if opts.IsWalrus {
		toSign.WriteString(walrusServicePath)
	}

	if opts.Bucket != nil {
		toSign.WriteByte('/')
		toSign.WriteString(*opts.Bucket)
	}

	if opts.Key != nil {
		toSign.WriteByte('/')
		toSign.WriteString(*opts.Key)
	}

	mac := hmac.New(sha1.New, []byte(s.secretKey))
	mac.Write([]byte(toSign.String()))

	var value strings.Builder

	value.WriteString(" AWS ")
	value.WriteString(s.accessKey)
	value.WriteByte(':')
	value.WriteString(base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	return value.String()
}

// appendSigHeader appends one signed header line; an empty value still contributes its newline.
func appendSigHeader(toSign *strings.Builder, key, value string) {
	if key != "" {
		toSign.WriteString(key)
		toSign.WriteByte(':')
	}

	toSign.WriteString(value)
	toSign.WriteByte('\n')
}
