package objval

// PutResponse is returned by object and part uploads.
type PutResponse struct {
	// ETag is the entity tag assigned by the service, quotes stripped.
	ETag string

	// PartNumber echoes the uploaded part number; only populated for part uploads.
	PartNumber int
}

// GetResponse is returned by downloads.
type GetResponse struct {
	// LoadedContentLength is the number of bytes accepted by the loader. A value of -1 means the requested key does
	// not exist; a missing key is not an error for downloads.
	LoadedContentLength int64

	// IsTruncated is set when the loader accepted fewer bytes than the service offered on some chunk and the transfer
	// was cut short.
	IsTruncated bool

	// ETag is the entity tag of the object, quotes stripped.
	ETag string
}

// ListObjectsResponse carries the pagination state of a single object listing.
type ListObjectsResponse struct {
	// NextMarker should be passed as the marker of the next listing to continue after this page. For services which
	// do not return an explicit marker this is the last key seen.
	NextMarker string

	// IsTruncated indicates more results are available.
	IsTruncated bool
}

// ListMultipartUploadsResponse carries the pagination state of a single upload listing.
type ListMultipartUploadsResponse struct {
	// NextKeyMarker is the key to continue after.
	NextKeyMarker string

	// NextUploadIDMarker is the upload id to continue after.
	NextUploadIDMarker string

	// IsTruncated indicates more results are available.
	IsTruncated bool
}

// InitiateMultipartUploadResponse is returned when beginning a multipart upload.
type InitiateMultipartUploadResponse struct {
	// UploadID identifies the new upload.
	UploadID string
}

// CompleteMultipartUploadResponse is returned when completing a multipart upload.
type CompleteMultipartUploadResponse struct {
	// ETag is the entity tag of the composed object, quotes stripped.
	ETag string
}
