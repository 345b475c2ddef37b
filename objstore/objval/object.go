// Package objval exposes the value types returned by the webstor object storage client.
package objval

// Bucket represents a bucket as reported by the service-level listing.
type Bucket struct {
	// Name is the globally unique name of the bucket.
	Name string

	// CreationDate is the creation timestamp as returned by the service; it is not parsed because the two supported
	// services do not agree on a format.
	CreationDate string
}

// Object represents an object (or a synthetic directory entry) returned when listing a bucket.
type Object struct {
	// Key is the identifier for the object; a unique path.
	Key string

	// LastModified is the last modification timestamp as returned by the service.
	LastModified string

	// ETag is the entity tag for the object with any surrounding quotes stripped.
	ETag string

	// Size is the content length of the object in bytes. Synthetic directory entries use -1.
	Size int64

	// IsDir indicates this entry was synthesized from a 'CommonPrefixes' element when listing with a delimiter; only
	// 'Key' and 'Size' (-1) are populated.
	IsDir bool
}

// MultipartUpload represents an in-progress multipart upload returned when listing uploads.
type MultipartUpload struct {
	// Key is the key the upload will create once completed.
	Key string

	// UploadID identifies the upload for part/complete/abort requests.
	UploadID string

	// IsDir indicates this entry was synthesized from a 'CommonPrefixes' element.
	IsDir bool
}

// Part identifies a single uploaded part of a multipart upload; the pairs are echoed back when completing the upload.
type Part struct {
	// Number is the part number, the first part is number one.
	Number int

	// ETag is the entity tag returned by the part upload, quotes stripped.
	ETag string
}
