package objs3

import (
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/couchbase/webstor/objstore/objerr"
)

// responseStatus classifies a response from its HTTP status line, possibly upgraded once the body has been parsed.
type responseStatus int

const (
	statusUnexpected responseStatus = iota - 1
	statusSuccess
	statusFailureWithDetails
	statusHTTPFailure
	statusHTTPResourceNotFound
	statusHTTPOrAWSFailure
)

// responseDetails accumulates everything extracted from a single response: the status classification, the common
// headers, and the common XML body elements.
type responseDetails struct {
	status responseStatus
	url    string

	// Common headers.

	httpStatus        string
	httpDate          string
	httpContentLength int64
	httpContentType   string
	amazonID          string
	requestID         string
	etag              string

	// Common XML body elements.

	errorCode    string
	errorMessage string
	hostID       string
	isTruncated  bool
	uploadID     string

	// loadedContentLength is the number of bytes accepted by the loader for downloads.
	loadedContentLength int64
}

func newResponseDetails(url string) responseDetails {
	return responseDetails{status: statusUnexpected, url: url, httpContentLength: -1}
}

// classifyStatus maps the first line of a response onto a status classification. The not-found and generic failure
// rows may be upgraded to 'statusFailureWithDetails' once an S3 error envelope has been parsed from the body.
func classifyStatus(status string) responseStatus {
	switch {
	case strings.HasPrefix(status, "200 OK"),
		strings.HasPrefix(status, "206 Partial Content"),
		strings.HasPrefix(status, "204 No Content"):
		return statusSuccess
	case strings.HasPrefix(status, "404 Not"):
		return statusHTTPResourceNotFound
	case strings.HasPrefix(status, "301 Moved"),
		strings.HasPrefix(status, "400 Bad"),
		strings.HasPrefix(status, "403 Forbidden"),
		strings.HasPrefix(status, "409 Conflict"),
		strings.HasPrefix(status, "500 Internal"),
		strings.HasPrefix(status, "503 Service"),
		strings.HasPrefix(status, "503 Slow"):
		return statusHTTPOrAWSFailure
	default:
		return statusHTTPFailure
	}
}

// captureHeaders records the status line and the headers of interest.
func (d *responseDetails) captureHeaders(resp *http.Response) {
	d.httpStatus = resp.Status
	d.status = classifyStatus(resp.Status)
	d.httpContentLength = resp.ContentLength
	d.httpContentType = resp.Header.Get("Content-Type")
	d.httpDate = resp.Header.Get("Date")
	d.amazonID = resp.Header.Get("x-amz-id-2")
	d.requestID = resp.Header.Get("x-amz-request-id")

	// Amazon returns the 'ETag' header with quotes, Walrus without.

	if etag := resp.Header.Get("ETag"); etag != "" {
		d.etag = trimETag(etag)
	}
}

// trimETag strips the surrounding quotes from an entity tag if present.
func trimETag(etag string) string {
	if strings.HasPrefix(etag, `"`) {
		return strings.TrimSuffix(strings.TrimPrefix(etag, `"`), `"`)
	}

	return etag
}

// payloadMode selects how the response body is consumed.
type payloadMode int

const (
	payloadDiscard payloadMode = iota
	payloadBinary
	payloadXML
)

// payloadMode returns the mode for this response: successful responses carry either the expected XML or raw data,
// failed responses with an XML content type may carry an S3 error envelope worth parsing, anything else is discarded.
func (d *responseDetails) payloadMode(expectXML bool) payloadMode {
	if d.status == statusSuccess {
		if expectXML {
			return payloadXML
		}

		return payloadBinary
	}

	if d.httpContentLength != 0 && d.httpContentType == contentTypeXML {
		return payloadXML
	}

	return payloadDiscard
}

// The recognized response elements. The names are kept sorted so lookup is a binary search; order must be maintained
// in lockstep between the two declarations.
type responseNode int

const (
	nodeBucket responseNode = iota
	nodeCode
	nodeCommonPrefixes
	nodeContents
	nodeCreationDate
	nodeETag
	nodeError
	nodeHostID
	nodeIsTruncated
	nodeKey
	nodeLastModified
	nodeMessage
	nodeName
	nodeNextMarker
	nodePrefix
	nodeRequestID
	nodeSize
	nodeUpload
	nodeUploadID

	// nodeUnknown is the sentinel for unrecognized elements; they occupy a stack slot but their text is ignored.
	nodeUnknown
)

var responseNodeNames = []string{
	"Bucket",
	"Code",
	"CommonPrefixes",
	"Contents",
	"CreationDate",
	"ETag",
	"Error",
	"HostId",
	"IsTruncated",
	"Key",
	"LastModified",
	"Message",
	"Name",
	"NextMarker",
	"Prefix",
	"RequestId",
	"Size",
	"Upload",
	"UploadId",
}

// lookupNode returns the id for the given element name, or the unknown sentinel.
func lookupNode(name string) responseNode {
	idx, found := slices.BinarySearch(responseNodeNames, name)
	if !found {
		return nodeUnknown
	}

	return responseNode(idx)
}

// maxParseDepth bounds the element nesting a response may use; deeper documents are a parser error. This keeps the
// parse hot path free of per-element allocation.
const maxParseDepth = 8

// nodeStack is the fixed-capacity stack of recognized element ids for the open elements of the document.
type nodeStack struct {
	nodes [maxParseDepth]responseNode
	top   int
}

func (s *nodeStack) push(node responseNode) bool {
	if s.top >= maxParseDepth {
		return false
	}

	s.nodes[s.top] = node
	s.top++

	return true
}

func (s *nodeStack) pop() bool {
	if s.top == 0 {
		return false
	}

	s.top--

	return true
}

// depth returns the number of open elements.
func (s *nodeStack) depth() int {
	return s.top
}

// fromTop returns the id 'n' positions below the innermost open element; fromTop(0) is the innermost.
func (s *nodeStack) fromTop(n int) responseNode {
	return s.nodes[s.top-1-n]
}

// responseVisitor is implemented once per operation; the parser dispatches element events to the active operation so
// it can fill its response-specific fields.
type responseVisitor interface {
	// expectsXML reports whether a successful response carries structured XML rather than raw data.
	expectsXML() bool

	onStartElement(stack *nodeStack) error
	onEndElement(stack *nodeStack) error
	onText(stack *nodeStack, text string) error
}

// baseVisitor is embedded by operations which only need a subset of the hooks.
type baseVisitor struct{}

func (baseVisitor) expectsXML() bool                { return false }
func (baseVisitor) onStartElement(*nodeStack) error { return nil }
func (baseVisitor) onEndElement(*nodeStack) error   { return nil }
func (baseVisitor) onText(*nodeStack, string) error { return nil }

// captureErrorEnvelope extracts the standard S3 error envelope ('<Error>' with '<Code>', '<Message>', '<RequestId>',
// '<HostId>' children) regardless of which operation is active. Populating any of the fields upgrades a plain HTTP
// failure classification to a detailed one.
func (d *responseDetails) captureErrorEnvelope(stack *nodeStack, text string) {
	if stack.depth() != 2 || stack.fromTop(1) != nodeError {
		return
	}

	switch stack.fromTop(0) {
	case nodeCode:
		d.errorCode = text
	case nodeMessage:
		d.errorMessage = text
	case nodeRequestID:
		d.requestID = text
	case nodeHostID:
		d.hostID = text
	default:
		return
	}

	if d.status == statusHTTPResourceNotFound || d.status == statusHTTPOrAWSFailure {
		d.status = statusFailureWithDetails
	}
}

// parseXML incrementally consumes an XML response body, maintaining the element stack and dispatching to the given
// visitor. The returned error is either a 'ParserError', or whatever a visitor hook raised.
func parseXML(details *responseDetails, visitor responseVisitor, body io.Reader) error {
	var (
		decoder = xml.NewDecoder(body)
		stack   nodeStack
	)

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return &objerr.ParserError{Err: err}
		}

		switch token := token.(type) {
		case xml.StartElement:
			if !stack.push(lookupNode(token.Name.Local)) {
				return &objerr.ParserError{}
			}

			if err := visitor.onStartElement(&stack); err != nil {
				return err
			}
		case xml.CharData:
			if stack.depth() == 0 {
				continue
			}

			details.captureErrorEnvelope(&stack, string(token))

			if err := visitor.onText(&stack, string(token)); err != nil {
				return err
			}
		case xml.EndElement:
			if stack.depth() == 0 {
				return &objerr.ParserError{}
			}

			if err := visitor.onEndElement(&stack); err != nil {
				return err
			}

			stack.pop()
		}
	}
}

// errAbortBody is returned by 'loadBinary' when the loader refused part of a chunk; the transfer is cut short and the
// remainder of the body is discarded unread.
var errAbortBody = errors.New("transfer aborted by the loader")

// loadBinary streams a raw response body into the given loader in bounded chunks, tracking how much the loader
// accepted. A loader failure is wrapped so it can cross the engine boundary and be returned to the caller unchanged.
func loadBinary(details *responseDetails, loader GetLoader, body io.Reader) error {
	var hint int64
	if details.httpContentLength != -1 {
		hint = details.httpContentLength
	}

	chunk := make([]byte, loadChunkSize)

	for {
		n, err := body.Read(chunk)

		if n > 0 {
			accepted, lerr := loader.OnLoad(chunk[:n], hint)
			if lerr != nil {
				return &objerr.PassthroughError{Err: lerr}
			}

			details.loadedContentLength += int64(accepted)

			if accepted < n {
				details.isTruncated = true
				return errAbortBody
			}
		}

		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return asTransportError(err)
		}
	}
}

// handleErrors maps a fully parsed response onto the error taxonomy; a successful response maps to <nil>.
func handleErrors(details *responseDetails) error {
	switch details.status {
	case statusSuccess:
		return nil
	case statusHTTPResourceNotFound:
		return &objerr.HTTPNotFoundError{URL: details.url}
	case statusFailureWithDetails:
		return &objerr.AWSError{
			Code:      details.errorCode,
			Message:   details.errorMessage,
			RequestID: details.requestID,
			HostID:    details.hostID,
		}
	case statusHTTPFailure, statusHTTPOrAWSFailure:
		// Could not read more details from the payload, treat as a plain HTTP error.
		return &objerr.HTTPError{Status: details.httpStatus}
	default:
		// The HTTP status line is missing from the response, this should never happen.
		return objerr.ErrUnexpected
	}
}
