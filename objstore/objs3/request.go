package objs3

import (
	"io"
	"net/http"
	"strconv"

	"github.com/couchbase/webstor/objstore/objerr"
	"github.com/couchbase/webstor/objstore/objval"
)

// ObjectEnumFunc is invoked once per object (or synthetic directory entry) while a listing page is being parsed. A
// non-nil error aborts the transfer and is returned to the caller unwrapped.
type ObjectEnumFunc func(object objval.Object) error

// MultipartUploadEnumFunc is invoked once per upload while an upload listing page is being parsed. A non-nil error
// aborts the transfer and is returned to the caller unwrapped.
type MultipartUploadEnumFunc func(upload objval.MultipartUpload) error

// request carries the per-operation state: what to send, how to produce/consume the body, and everything parsed out
// of the response. A request is scoped to exactly one operation.
type request struct {
	// op/name feed the summary error every top-level operation wraps its failure in.
	op   string
	name string

	verb   string
	url    string
	header http.Header

	contentLength int64
	uploader      PutUploader
	loader        GetLoader
	visitor       responseVisitor

	details responseDetails

	// stashed holds a failure raised inside an engine callback; callbacks never unwind through the engine, the error
	// is re-raised when the operation is joined.
	stashed error
}

// uploaderReader adapts a 'PutUploader' to the reader the HTTP engine consumes the request body from. An uploader
// failure is stashed on the request and surfaced to the engine as a read error, aborting the transfer.
type uploaderReader struct {
	req *request
}

func (u *uploaderReader) Read(p []byte) (int, error) {
	n, err := u.req.uploader.OnUpload(p)
	if err != nil {
		u.req.stashed = &objerr.PassthroughError{Err: err}
		return 0, err
	}

	if n == 0 {
		return 0, io.EOF
	}

	return n, nil
}

// getVisitor handles downloads; the body is raw data fed to the loader so no XML is expected.
type getVisitor struct {
	baseVisitor
}

// putVisitor handles uploads and bucket creation; a successful response has no interesting body.
type putVisitor struct {
	baseVisitor
}

// delVisitor handles deletions.
type delVisitor struct {
	baseVisitor
}

// listBucketsVisitor collects the buckets of a service-level listing.
//
// The interesting parts of the document are 'ListAllMyBucketsResult/Buckets/Bucket' nodes with 'Name' and
// 'CreationDate' children.
type listBucketsVisitor struct {
	baseVisitor

	buckets *[]objval.Bucket
	current objval.Bucket
}

func (v *listBucketsVisitor) expectsXML() bool { return true }

func (v *listBucketsVisitor) isBucketNode(stack *nodeStack) bool {
	return (stack.depth() == 3 || stack.depth() == 4) && stack.fromTop(0) == nodeBucket
}

func (v *listBucketsVisitor) onStartElement(stack *nodeStack) error {
	if v.isBucketNode(stack) {
		v.current = objval.Bucket{}
	}

	return nil
}

func (v *listBucketsVisitor) onEndElement(stack *nodeStack) error {
	if v.isBucketNode(stack) {
		*v.buckets = append(*v.buckets, v.current)
	}

	return nil
}

func (v *listBucketsVisitor) onText(stack *nodeStack, text string) error {
	if stack.depth() < 3 {
		return nil
	}

	switch stack.fromTop(0) {
	case nodeName:
		v.current.Name = text
	case nodeCreationDate:
		v.current.CreationDate = text
	}

	return nil
}

// listObjectsVisitor streams the entries of a bucket listing into the caller's enumeration function.
//
// Walrus has two quirks this visitor accounts for: its 'CommonPrefixes' element sits one level deeper in the tree,
// and its 'CommonPrefixes/Prefix' values are relative so the request-level prefix is prepended to give the caller
// absolute keys.
type listObjectsVisitor struct {
	baseVisitor

	details  *responseDetails
	enum     ObjectEnumFunc
	isWalrus bool

	current    objval.Object
	prefix     string
	lastKey    string
	nextMarker string
}

func (v *listObjectsVisitor) expectsXML() bool { return true }

func (v *listObjectsVisitor) isObjectNode(stack *nodeStack) bool {
	if !v.isWalrus {
		return stack.depth() == 2 &&
			(stack.fromTop(0) == nodeContents || stack.fromTop(0) == nodeCommonPrefixes)
	}

	return (stack.depth() == 3 && stack.fromTop(0) == nodeContents) ||
		(stack.depth() == 4 && stack.fromTop(0) == nodePrefix && stack.fromTop(1) == nodeCommonPrefixes)
}

func (v *listObjectsVisitor) onStartElement(stack *nodeStack) error {
	if v.isObjectNode(stack) {
		v.current = objval.Object{Size: -1}
	}

	return nil
}

func (v *listObjectsVisitor) onEndElement(stack *nodeStack) error {
	if !v.isObjectNode(stack) {
		return nil
	}

	v.lastKey = v.current.Key

	return v.enum(v.current)
}

func (v *listObjectsVisitor) onText(stack *nodeStack, text string) error {
	if stack.depth() < 2 {
		return nil
	}

	switch stack.fromTop(0) {
	case nodeIsTruncated:
		v.details.isTruncated = text == "true"
	case nodeKey:
		// Append rather than assign, the decoder may deliver the value in chunks.
		v.current.Key += text
	case nodeLastModified:
		v.current.LastModified = text
	case nodeETag:
		// Skip beginning and trailing quotes.
		if text != `"` {
			v.current.ETag += trimETag(text)
		}
	case nodeSize:
		size, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return &objerr.ParserError{Err: err}
		}

		v.current.Size = size
	case nodePrefix:
		v.onPrefix(stack, text)
	case nodeNextMarker:
		v.nextMarker = text
	}

	return nil
}

// onPrefix handles the two places a 'Prefix' element appears: inside 'CommonPrefixes' it names a synthetic directory
// entry, at the top level of a Walrus listing it echoes the request prefix which the directory entries are relative
// to.
func (v *listObjectsVisitor) onPrefix(stack *nodeStack, text string) {
	if stack.fromTop(1) == nodeCommonPrefixes {
		if v.isWalrus && v.current.Key == "" {
			v.current.Key = v.prefix
		}

		v.current.Key += text
		v.current.IsDir = true

		return
	}

	if v.isWalrus {
		v.prefix = text
	}
}

// marker returns the value to continue the listing after this page: the explicit 'NextMarker' if the service sent
// one, the last key seen otherwise.
func (v *listObjectsVisitor) marker() string {
	if v.nextMarker != "" {
		return v.nextMarker
	}

	return v.lastKey
}

// initiateMultipartUploadVisitor extracts the upload id assigned by the service.
type initiateMultipartUploadVisitor struct {
	baseVisitor

	details *responseDetails
}

func (v *initiateMultipartUploadVisitor) expectsXML() bool { return true }

func (v *initiateMultipartUploadVisitor) onText(stack *nodeStack, text string) error {
	if stack.depth() == 2 && stack.fromTop(0) == nodeUploadID {
		v.details.uploadID = text
	}

	return nil
}

// completeMultipartUploadVisitor extracts the entity tag of the composed object.
type completeMultipartUploadVisitor struct {
	baseVisitor

	details *responseDetails
}

func (v *completeMultipartUploadVisitor) expectsXML() bool { return true }

func (v *completeMultipartUploadVisitor) onText(stack *nodeStack, text string) error {
	if stack.depth() == 2 && stack.fromTop(0) == nodeETag {
		// Skip beginning and trailing quotes.
		if text != `"` {
			v.details.etag += trimETag(text)
		}
	}

	return nil
}

// listMultipartUploadsVisitor streams the entries of an upload listing into the caller's enumeration function.
type listMultipartUploadsVisitor struct {
	baseVisitor

	details *responseDetails
	enum    MultipartUploadEnumFunc

	current objval.MultipartUpload
	last    objval.MultipartUpload
}

func (v *listMultipartUploadsVisitor) expectsXML() bool { return true }

func (v *listMultipartUploadsVisitor) isUploadNode(stack *nodeStack) bool {
	return stack.depth() == 2 &&
		(stack.fromTop(0) == nodeUpload || stack.fromTop(0) == nodeCommonPrefixes)
}

func (v *listMultipartUploadsVisitor) onStartElement(stack *nodeStack) error {
	if v.isUploadNode(stack) {
		v.current = objval.MultipartUpload{}
	}

	return nil
}

func (v *listMultipartUploadsVisitor) onEndElement(stack *nodeStack) error {
	if !v.isUploadNode(stack) {
		return nil
	}

	v.last = v.current

	return v.enum(v.current)
}

func (v *listMultipartUploadsVisitor) onText(stack *nodeStack, text string) error {
	if stack.depth() < 2 {
		return nil
	}

	switch stack.fromTop(0) {
	case nodeIsTruncated:
		v.details.isTruncated = text == "true"
	case nodeKey:
		// Append rather than assign, the decoder may deliver the value in chunks.
		v.current.Key += text
	case nodeUploadID:
		v.current.UploadID = text
	case nodePrefix:
		if stack.fromTop(1) == nodeCommonPrefixes {
			v.current.Key += text
			v.current.IsDir = true
		}
	}

	return nil
}
