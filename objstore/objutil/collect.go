package objutil

import (
	"context"

	"github.com/couchbase/webstor/objstore/objs3"
	"github.com/couchbase/webstor/objstore/objval"
)

// CollectObjectsOptions encapsulates the options available when using the 'CollectObjects' function.
type CollectObjectsOptions struct {
	// Connection is the connection the listing is performed over.
	//
	// NOTE: This attribute is required.
	Connection *objs3.Connection

	// Bucket is the bucket being operated on.
	Bucket string

	// Prefix restricts the listing to keys with the given prefix.
	Prefix string

	// Delimiter groups keys sharing a prefix up to the delimiter into synthetic directory entries.
	Delimiter string

	// MaxKeysInBatch bounds the size of each listing page, zero leaves the page size to the service.
	MaxKeysInBatch uint
}

// CollectObjects pages through a bucket listing until it is no longer truncated, collecting every entry into a
// slice. For listings which may be very large prefer streaming them with 'Connection.ListAllObjects'.
func CollectObjects(ctx context.Context, opts CollectObjectsOptions) ([]objval.Object, error) {
	objects := make([]objval.Object, 0)

	err := opts.Connection.ListAllObjects(ctx, objs3.ListObjectsOptions{
		Bucket:    opts.Bucket,
		Prefix:    opts.Prefix,
		Delimiter: opts.Delimiter,
		MaxKeys:   opts.MaxKeysInBatch,
		Func:      func(object objval.Object) error { objects = append(objects, object); return nil },
	})
	if err != nil {
		return nil, err
	}

	return objects, nil
}

// CollectMultipartUploadsOptions encapsulates the options available when using the 'CollectMultipartUploads'
// function.
type CollectMultipartUploadsOptions struct {
	// Connection is the connection the listing is performed over.
	//
	// NOTE: This attribute is required.
	Connection *objs3.Connection

	// Bucket is the bucket being operated on.
	Bucket string

	// Prefix restricts the listing to uploads for keys with the given prefix.
	Prefix string

	// MaxUploadsInBatch bounds the size of each listing page, zero leaves the page size to the service.
	MaxUploadsInBatch uint
}

// CollectMultipartUploads pages through the upload listing until it is no longer truncated, collecting every entry
// into a slice.
func CollectMultipartUploads(
	ctx context.Context,
	opts CollectMultipartUploadsOptions,
) ([]objval.MultipartUpload, error) {
	uploads := make([]objval.MultipartUpload, 0)

	err := opts.Connection.ListAllMultipartUploads(ctx, objs3.ListMultipartUploadsOptions{
		Bucket:     opts.Bucket,
		Prefix:     opts.Prefix,
		MaxUploads: opts.MaxUploadsInBatch,
		Func:       func(upload objval.MultipartUpload) error { uploads = append(uploads, upload); return nil },
	})
	if err != nil {
		return nil, err
	}

	return uploads, nil
}
