// Package objutil provides higher level helpers built on top of the wire client: multipart upload of large bodies
// across a set of connections, and pipelined multi-key downloads.
package objutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/couchbase/tools-common/sync/v2/hofp"

	"github.com/couchbase/webstor/objstore/objs3"
	"github.com/couchbase/webstor/objstore/objval"
)

const (
	// MinPartSize is the smallest part the services accept for any part but the last.
	MinPartSize = 5 * 1024 * 1024

	// MaxUploadParts is the hard limit on the number of parts of a single multipart upload.
	MaxUploadParts = 10000
)

// ErrExceededMaxPartCount is returned if the body requires more than 'MaxUploadParts' parts at the chosen part size.
var ErrExceededMaxPartCount = errors.New("exceeded maximum number of upload parts")

// UploadOptions encapsulates the options available when using the 'Upload' function.
type UploadOptions struct {
	// Connections are the connections parts are uploaded over, one worker per connection. Each connection must be
	// otherwise idle; the first one also carries the initiate/complete requests.
	//
	// NOTE: This attribute is required.
	Connections []*objs3.Connection

	// Bucket is the bucket to upload the object to.
	//
	// NOTE: This attribute is required.
	Bucket string

	// Key is the key for the object being uploaded.
	//
	// NOTE: This attribute is required.
	Key string

	// Body is the data that will be uploaded; it is consumed sequentially into parts.
	Body io.Reader

	// PartSize is the size parts are cut at, defaults to (and must be at least) 'MinPartSize'.
	PartSize int64

	// MakePublic grants public read access to the completed object.
	MakePublic bool

	// ServerSideEncrypt asks the service to encrypt the object at rest.
	ServerSideEncrypt bool

	// ContentType is stored with the completed object.
	ContentType string

	// Logger is the passed logger, defaults to the default logger.
	Logger *slog.Logger
}

// defaults fills any missing attributes to a sane default.
func (u *UploadOptions) defaults() {
	if u.PartSize < MinPartSize {
		u.PartSize = MinPartSize
	}

	if u.Logger == nil {
		u.Logger = slog.Default()
	}
}

// Upload uploads the given body as a multipart upload, cutting it into parts and uploading them concurrently over
// the given connections. The upload is aborted if any part fails.
func Upload(ctx context.Context, opts UploadOptions) (*objval.CompleteMultipartUploadResponse, error) {
	opts.defaults()

	lead := opts.Connections[0]

	initiated, err := lead.InitiateMultipartUpload(ctx, objs3.InitiateMultipartUploadOptions{
		Bucket:            opts.Bucket,
		Key:               opts.Key,
		MakePublic:        opts.MakePublic,
		ServerSideEncrypt: opts.ServerSideEncrypt,
		ContentType:       opts.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initiate multipart upload: %w", err)
	}

	parts, err := uploadParts(ctx, opts, initiated.UploadID)
	if err == nil {
		return completeUpload(ctx, opts, initiated.UploadID, parts)
	}

	aopts := objs3.AbortMultipartUploadOptions{Bucket: opts.Bucket, Key: opts.Key, UploadID: initiated.UploadID}

	// We've failed for some reason, try to clean up after ourselves.
	if aerr := lead.AbortMultipartUpload(ctx, aopts); aerr != nil {
		opts.Logger.Error("failed to abort multipart upload, it should be aborted manually",
			"id", initiated.UploadID, "key", opts.Key)
	}

	return nil, err
}

// uploadParts cuts the body into parts and uploads them over a worker pool, one worker per connection.
func uploadParts(ctx context.Context, opts UploadOptions, id string) ([]objval.Part, error) {
	var (
		parts []objval.Part
		lock  sync.Mutex
	)

	// Workers lease a connection for the duration of one part; a connection must not be shared.

	connections := make(chan *objs3.Connection, len(opts.Connections))
	for _, connection := range opts.Connections {
		connections <- connection
	}

	pool := hofp.NewPool(hofp.Options{Context: ctx, Size: len(opts.Connections), LogPrefix: "(objutil)"})

	upload := func(ctx context.Context, number int, data []byte) error {
		connection := <-connections
		defer func() { connections <- connection }()

		resp, err := connection.PutPart(ctx, objs3.PutPartOptions{
			Bucket:     opts.Bucket,
			Key:        opts.Key,
			UploadID:   id,
			PartNumber: number,
			Data:       data,
		})
		if err != nil {
			return err
		}

		lock.Lock()
		defer lock.Unlock()

		parts = append(parts, objval.Part{Number: number, ETag: resp.ETag})

		return nil
	}

	err := queueParts(opts, pool, upload)

	// Stop returns the first error encountered by the pool, which includes queued uploads run during teardown.
	if perr := pool.Stop(); perr != nil {
		return nil, perr
	}

	if err != nil {
		return nil, err
	}

	return parts, nil
}

// queueParts reads the body part by part queueing each one for upload.
func queueParts(
	opts UploadOptions,
	pool *hofp.Pool,
	upload func(ctx context.Context, number int, data []byte) error,
) error {
	for number := 1; ; number++ {
		if number > MaxUploadParts {
			return ErrExceededMaxPartCount
		}

		data := make([]byte, opts.PartSize)

		n, err := io.ReadFull(opts.Body, data)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("failed to read part: %w", err)
		}

		// The first part may legitimately be empty, an empty object is a valid upload.

		if n == 0 && number != 1 {
			return nil
		}

		data = data[:n]

		if qerr := pool.Queue(func(ctx context.Context) error { return upload(ctx, number, data) }); qerr != nil {
			return qerr
		}

		if n < int(opts.PartSize) {
			return nil
		}
	}
}

// completeUpload orders the uploaded parts and composes the final object.
func completeUpload(
	ctx context.Context,
	opts UploadOptions,
	id string,
	parts []objval.Part,
) (*objval.CompleteMultipartUploadResponse, error) {
	slices.SortFunc(parts, func(a, b objval.Part) int { return a.Number - b.Number })

	response, err := opts.Connections[0].CompleteMultipartUpload(ctx, objs3.CompleteMultipartUploadOptions{
		Bucket:   opts.Bucket,
		Key:      opts.Key,
		UploadID: id,
		Parts:    parts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete multipart upload: %w", err)
	}

	return response, nil
}
