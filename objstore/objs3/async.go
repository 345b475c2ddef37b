package objs3

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/couchbase/tools-common/types/v2/ptr"

	"github.com/couchbase/webstor/objstore/objerr"
	"github.com/couchbase/webstor/objstore/objval"
)

// AsyncManOptions encapsulates the options for creating a new AsyncMan.
type AsyncManOptions struct {
	// Logger is the passed logger, defaults to the default logger.
	Logger *slog.Logger
}

// defaults fills any missing attributes to a sane default.
func (a *AsyncManOptions) defaults() {
	if a.Logger == nil {
		a.Logger = slog.Default()
	}
}

// AsyncMan drives pended operations in the background. Each pended operation is serviced by its own goroutine with
// the runtime multiplexing the underlying socket I/O, so a single caller can keep dozens of transfers in flight and
// harvest them with 'WaitAny'.
type AsyncMan struct {
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewAsyncMan creates a new background driver.
func NewAsyncMan(options AsyncManOptions) *AsyncMan {
	options.defaults()

	return &AsyncMan{logger: options.Logger}
}

// Close waits for every operation still in flight; pended operations should normally be completed or cancelled via
// their connection first.
func (a *AsyncMan) Close() {
	a.wg.Wait()
}

// asyncKind tags the operation a connection has in flight so the matching complete function can be enforced.
type asyncKind int

const (
	asyncPut asyncKind = iota
	asyncGet
	asyncDelete
)

// asyncOperation is the in-flight state of a pended request; completion is signalled by closing 'done', which is the
// event 'WaitAny' selects on.
type asyncOperation struct {
	kind   asyncKind
	req    *request
	done   chan struct{}
	cancel context.CancelFunc

	// err is the transport-level outcome of the transfer, protocol outcomes live in the request details.
	err error
}

// completed returns a boolean indicating whether the transfer has finished.
func (a *asyncOperation) completed() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// pend hands the request to the background driver and returns immediately; exactly one operation may be pending on a
// connection at a time.
func (c *Connection) pend(ctx context.Context, asyncMan *AsyncMan, kind asyncKind, req *request) error {
	if c.async != nil {
		return objerr.ErrUnexpected
	}

	c.logger.Debug("pending asynchronous operation", "op", req.op, "name", req.name)

	ctx, cancel := context.WithCancel(ctx)

	op := &asyncOperation{kind: kind, req: req, done: make(chan struct{}), cancel: cancel}
	c.async = op

	asyncMan.wg.Add(1)

	go func() {
		defer asyncMan.wg.Done()

		op.err = c.execute(ctx, req)
		close(op.done)
	}()

	return nil
}

// join detaches and waits for the pending operation, enforcing that it is of the expected kind.
func (c *Connection) join(kind asyncKind) (*asyncOperation, error) {
	op := c.async
	if op == nil || op.kind != kind {
		return nil, objerr.ErrUnexpected
	}

	// Make sure the operation is detached and its context released no matter what happens below.

	c.async = nil

	<-op.done
	op.cancel()

	return op, nil
}

// IsAsyncPending returns a boolean indicating whether an asynchronous operation is outstanding on this connection.
func (c *Connection) IsAsyncPending() bool {
	return c.async != nil
}

// IsAsyncCompleted returns a boolean indicating whether the outstanding asynchronous operation has finished and a
// complete call would not block.
func (c *Connection) IsAsyncCompleted() bool {
	return c.async != nil && c.async.completed()
}

// CancelAsync aborts any in-flight operation and leaves the connection reusable; it never fails and is safe to call
// when nothing is pending. Bytes already accepted by a loader are not rolled back.
func (c *Connection) CancelAsync() {
	op := c.async
	if op == nil {
		return
	}

	c.async = nil

	op.cancel()
	<-op.done

	c.logger.Debug("cancelled asynchronous operation", "op", op.req.op, "name", op.req.name)
}

// PendPut starts an object upload in the background; harvest the result with 'CompletePut'.
func (c *Connection) PendPut(ctx context.Context, asyncMan *AsyncMan, opts PutOptions) error {
	uploader, size := opts.uploader()

	contentType := opts.ContentType
	if contentType == "" {
		contentType = contentTypeBinary
	}

	req := c.newRequest(requestOptions{
		op:                "pendPut",
		name:              opts.Key,
		verb:              http.MethodPut,
		bucket:            ptr.To(opts.Bucket),
		key:               ptr.To(opts.Key),
		contentType:       contentType,
		makePublic:        opts.MakePublic,
		serverSideEncrypt: opts.ServerSideEncrypt,
		visitor:           &putVisitor{},
		uploader:          uploader,
		contentLength:     size,
	})

	return objerr.Summarize("pendPut", opts.Key, c.pend(ctx, asyncMan, asyncPut, req))
}

// CompletePut waits for a pended upload and returns its result.
func (c *Connection) CompletePut() (*objval.PutResponse, error) {
	op, err := c.join(asyncPut)
	if err != nil {
		return nil, objerr.Summarize("completePut", "", err)
	}

	response, err := c.completePut(op.req, op.err)

	return response, objerr.Summarize("completePut", op.req.name, err)
}

// completePut joins an upload, mapping the response details onto the caller-visible response.
func (c *Connection) completePut(req *request, err error) (*objval.PutResponse, error) {
	if err != nil {
		return nil, err
	}

	if err := req.complete(); err != nil {
		return nil, err
	}

	return &objval.PutResponse{ETag: req.details.etag}, nil
}

// PendGet starts an object download into the given buffer in the background; harvest the result with 'CompleteGet'.
func (c *Connection) PendGet(ctx context.Context, asyncMan *AsyncMan, opts GetOptions) error {
	if err := opts.ByteRange.Valid(); err != nil {
		return err // Purposefully not wrapped
	}

	req := c.newRequest(requestOptions{
		op:        "pendGet",
		name:      opts.Key,
		verb:      http.MethodGet,
		bucket:    ptr.To(opts.Bucket),
		key:       ptr.To(opts.Key),
		byteRange: opts.ByteRange,
		visitor:   &getVisitor{},
		loader:    opts.loader(),
	})

	return objerr.Summarize("pendGet", opts.Key, c.pend(ctx, asyncMan, asyncGet, req))
}

// CompleteGet waits for a pended download and returns its result.
func (c *Connection) CompleteGet() (*objval.GetResponse, error) {
	op, err := c.join(asyncGet)
	if err != nil {
		return nil, objerr.Summarize("completeGet", "", err)
	}

	response, err := c.completeGet(op.req, op.err)

	return response, objerr.Summarize("completeGet", op.req.name, err)
}

// PendDelete starts an object deletion in the background; harvest the result with 'CompleteDelete'.
func (c *Connection) PendDelete(ctx context.Context, asyncMan *AsyncMan, opts DeleteOptions) error {
	req := c.newRequest(requestOptions{
		op:      "pendDel",
		name:    opts.Key,
		verb:    http.MethodDelete,
		bucket:  ptr.To(opts.Bucket),
		key:     ptr.To(opts.Key),
		visitor: &delVisitor{},
	})

	return objerr.Summarize("pendDel", opts.Key, c.pend(ctx, asyncMan, asyncDelete, req))
}

// CompleteDelete waits for a pended deletion and returns its result.
func (c *Connection) CompleteDelete() error {
	op, err := c.join(asyncDelete)
	if err != nil {
		return objerr.Summarize("completeDel", "", err)
	}

	return objerr.Summarize("completeDel", op.req.name, c.completeDel(op.req, op.err))
}

// WaitAny blocks until one of the given connections has completed its pended operation, returning the index of a
// completed connection or -1 on timeout. The scan is rotated by 'startFrom' so that repeated calls with an advancing
// start visit all completed connections fairly. A negative timeout blocks indefinitely.
//
// Every connection passed must have an operation pending, and at most 'MaxWaitAny' connections may be waited on in
// one call.
func WaitAny(connections []*Connection, startFrom int, timeout time.Duration) (int, error) {
	count := len(connections)

	if count > MaxWaitAny {
		return -1, objerr.ErrTooManyConnections
	}

	// Fast path: poll in rotated order so already completed connections are harvested fairly.

	for i := range count {
		index := (i + startFrom) % count

		if connections[index].async == nil {
			return -1, objerr.ErrUnexpected
		}

		if connections[index].IsAsyncCompleted() {
			return index, nil
		}
	}

	cases := make([]reflect.SelectCase, 0, count+1)

	for i := range count {
		index := (i + startFrom) % count

		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(connections[index].async.done),
		})
	}

	if timeout >= 0 {
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(time.After(timeout)),
		})
	}

	chosen, _, _ := reflect.Select(cases)
	if chosen == count {
		return -1, nil // timeout
	}

	return (chosen + startFrom) % count, nil
}
