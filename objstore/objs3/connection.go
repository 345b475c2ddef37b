package objs3

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	errdefs "github.com/couchbase/tools-common/errors/definitions"
	"github.com/couchbase/tools-common/types/v2/ptr"
	"github.com/couchbase/tools-common/types/v2/timeprovider"

	"github.com/couchbase/webstor/objstore/objerr"
	"github.com/couchbase/webstor/objstore/objval"
)

// Config is the immutable per-connection configuration.
type Config struct {
	// AccessKey/SecretKey are the credentials requests are signed with.
	AccessKey string
	SecretKey string

	// Host is the endpoint to connect to, defaults to the AWS S3 endpoint.
	Host string

	// Port overrides the scheme default; Walrus deployments listen on 8773 unless told otherwise.
	Port string

	// IsWalrus selects the Walrus dialect: the '/services/Walrus' resource prefix and the service's protocol quirks.
	IsWalrus bool

	// IsHTTPS enables TLS.
	IsHTTPS bool

	// SSLCertFile selects the certificate trust source: a path to a CA bundle, 'none' to disable peer verification,
	// or empty to use the compiled-in AWS roots.
	SSLCertFile string

	// Proxy routes requests through the given proxy URL.
	Proxy string

	// Timeout bounds a whole operation, ConnectTimeout bounds establishing the connection. Without them an operation
	// may hang forever if all socket activity stops.
	Timeout        time.Duration
	ConnectTimeout time.Duration
}

// defaults fills any missing attributes to a sane default.
func (c *Config) defaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}

	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
}

// ConnectionOptions encapsulates the options for creating a new Connection.
type ConnectionOptions struct {
	// Config is the endpoint/credential configuration.
	//
	// NOTE: Required
	Config Config

	// Logger is the passed logger, defaults to the default logger.
	Logger *slog.Logger

	// TimeProvider supplies the clock requests are dated/signed with, defaults to the wall clock.
	TimeProvider timeprovider.TimeProvider
}

// defaults fills any missing attributes to a sane default.
func (c *ConnectionOptions) defaults() {
	c.Config.defaults()

	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	if c.TimeProvider == nil {
		c.TimeProvider = timeprovider.CurrentTimeProvider{}
	}
}

// Connection drives object/bucket operations against a single S3 or Walrus endpoint over one HTTP engine handle.
//
// A connection is single-owner: it must not be shared between goroutines, and at most one asynchronous operation may
// be outstanding at a time. Multiple connections may be driven concurrently.
type Connection struct {
	config Config
	urls   *urlBuilder
	auth   *signer
	client *http.Client
	logger *slog.Logger

	async *asyncOperation
}

// NewConnection creates a connection for the given endpoint; the underlying engine handle lives for as long as the
// connection so pooled sockets, DNS entries and TLS sessions are reused across operations.
func NewConnection(options ConnectionOptions) (*Connection, error) {
	options.defaults()

	client, err := newHTTPClient(options.Config)
	if err != nil {
		return nil, err
	}

	connection := Connection{
		config: options.Config,
		urls:   newURLBuilder(options.Config),
		auth: &signer{
			accessKey:    options.Config.AccessKey,
			secretKey:    options.Config.SecretKey,
			timeProvider: options.TimeProvider,
		},
		client: client,
		logger: options.Logger,
	}

	return &connection, nil
}

// requestOptions collects everything needed to compose and sign one request.
type requestOptions struct {
	op   string
	name string
	verb string

	bucket *string
	key    *string

	// keySuffix carries a sub-resource (e.g. '?uploads') appended after the escaped key; it participates in the
	// signature.
	keySuffix string

	// rawURL overrides the composed URL for the listing endpoints whose query strings do not participate in the
	// signature; signKey is the resource the signature uses instead of the key.
	rawURL  string
	signKey *string

	contentType       string
	makePublic        bool
	serverSideEncrypt bool
	byteRange         *objval.ByteRange

	visitor       responseVisitor
	loader        GetLoader
	uploader      PutUploader
	contentLength int64
}

// newRequest composes a signed request from the given options.
func (c *Connection) newRequest(opts requestOptions) *request {
	var escapedKey *string
	if opts.key != nil {
		escapedKey = ptr.To(escapeKey(*opts.key) + opts.keySuffix)
	}

	url := opts.rawURL
	if url == "" {
		url = c.urls.objectURL(opts.bucket, escapedKey)
	}

	signKey := escapedKey
	if opts.signKey != nil {
		signKey = opts.signKey
	}

	date := c.auth.date()

	authorization := c.auth.sign(signOptions{
		Verb:              opts.verb,
		ContentType:       opts.contentType,
		Date:              date,
		MakePublic:        opts.makePublic,
		ServerSideEncrypt: opts.serverSideEncrypt,
		Bucket:            opts.bucket,
		Key:               signKey,
		IsWalrus:          c.config.IsWalrus,
	})

	header := make(http.Header)

	if opts.contentType != "" {
		header.Set("Content-Type", opts.contentType)
	}

	header.Set("Date", date)

	if opts.makePublic {
		header.Set(aclHeaderKey, aclHeaderValue)
	}

	if opts.serverSideEncrypt {
		header.Set(encryptHeaderKey, encryptHeaderValue)
	}

	if opts.byteRange != nil {
		header.Set("Range", opts.byteRange.ToRangeHeader())
	}

	header.Set("Authorization", authorization)

	// Make sure the connection is kept alive between requests; without the header AWS closes it after each response.

	header.Set("Connection", "Keep-Alive")

	return &request{
		op:            opts.op,
		name:          opts.name,
		verb:          opts.verb,
		url:           url,
		header:        header,
		contentLength: opts.contentLength,
		uploader:      opts.uploader,
		loader:        opts.loader,
		visitor:       opts.visitor,
		details:       newResponseDetails(url),
	}
}

// run executes the request synchronously and joins it: a stashed callback/parser failure takes precedence, then the
// protocol classification is mapped onto the taxonomy.
func (c *Connection) run(ctx context.Context, req *request) error {
	err := c.execute(ctx, req)
	if err != nil {
		return err
	}

	return req.complete()
}

// complete joins a finished request, re-raising any failure stashed by a nofail callback.
func (req *request) complete() error {
	if req.stashed != nil {
		return req.stashed
	}

	return handleErrors(&req.details)
}

// CreateBucketOptions encapsulates the options available when using the 'CreateBucket' function.
type CreateBucketOptions struct {
	// Bucket is the name of the bucket to create.
	Bucket string

	// MakePublic grants public read access to the bucket.
	MakePublic bool
}

// CreateBucket creates a new bucket; on regional endpoints the request carries the location constraint derived from
// the endpoint host.
func (c *Connection) CreateBucket(ctx context.Context, opts CreateBucketOptions) error {
	var payload string

	if !c.config.IsWalrus && c.urls.region != "" {
		payload = "<CreateBucketConfiguration><LocationConstraint>" + c.urls.region +
			"</LocationConstraint></CreateBucketConfiguration>"
	}

	options := requestOptions{
		op:         "createBucket",
		name:       opts.Bucket,
		verb:       http.MethodPut,
		bucket:     ptr.To(opts.Bucket),
		makePublic: opts.MakePublic,
		visitor:    &putVisitor{},
	}

	if payload != "" {
		options.uploader = newBufferUploader([]byte(payload))
		options.contentLength = int64(len(payload))
	}

	err := c.run(ctx, c.newRequest(options))

	return objerr.Summarize("createBucket", opts.Bucket, err)
}

// DeleteBucketOptions encapsulates the options available when using the 'DeleteBucket' function.
type DeleteBucketOptions struct {
	// Bucket is the name of the bucket to delete; it must be empty.
	Bucket string
}

// DeleteBucket deletes an empty bucket.
func (c *Connection) DeleteBucket(ctx context.Context, opts DeleteBucketOptions) error {
	err := c.del(ctx, "delBucket", opts.Bucket, "", "")

	return objerr.Summarize("delBucket", opts.Bucket, err)
}

// ListAllBuckets returns every bucket owned by the configured credentials.
func (c *Connection) ListAllBuckets(ctx context.Context) ([]objval.Bucket, error) {
	buckets := make([]objval.Bucket, 0)

	options := requestOptions{
		op:      "listAllBuckets",
		verb:    http.MethodGet,
		bucket:  ptr.To(""),
		visitor: &listBucketsVisitor{buckets: &buckets},
	}

	err := c.run(ctx, c.newRequest(options))
	if err != nil {
		return nil, objerr.Summarize("listAllBuckets", "", err)
	}

	return buckets, nil
}

// PutOptions encapsulates the options available when using the 'Put' function.
type PutOptions struct {
	// Bucket is the bucket being operated on.
	Bucket string

	// Key is the key (path) for the uploaded object.
	Key string

	// Data is the object body; for bodies which are produced incrementally supply an 'Uploader' and a 'Size' instead.
	Data []byte

	// Uploader produces the body in bounded chunks; 'Size' must hold the total size, it is sent as the request
	// 'Content-Length' because the services do not accept chunked uploads.
	Uploader PutUploader
	Size     int64

	// MakePublic grants public read access to the object.
	MakePublic bool

	// ServerSideEncrypt asks the service to encrypt the object at rest.
	ServerSideEncrypt bool

	// ContentType is stored with the object, defaults to a binary content type.
	ContentType string
}

// uploader returns the body source and total size, wrapping 'Data' in the built-in buffer uploader when no custom
// uploader was supplied.
func (p *PutOptions) uploader() (PutUploader, int64) {
	if p.Uploader != nil {
		return p.Uploader, p.Size
	}

	return newBufferUploader(p.Data), int64(len(p.Data))
}

// Put uploads an object.
func (c *Connection) Put(ctx context.Context, opts PutOptions) (*objval.PutResponse, error) {
	response, err := c.put(ctx, "put", opts, "", 0)

	return response, objerr.Summarize("put", opts.Key, err)
}

// put is the shared upload path; a non-empty upload id targets the part number of that multipart upload.
func (c *Connection) put(
	ctx context.Context,
	op string,
	opts PutOptions,
	uploadID string,
	partNumber int,
) (*objval.PutResponse, error) {
	uploader, size := opts.uploader()

	contentType := opts.ContentType
	if contentType == "" {
		contentType = contentTypeBinary
	}

	var keySuffix string
	if uploadID != "" {
		keySuffix = "?partNumber=" + strconv.Itoa(partNumber) + "&uploadId=" + uploadID
	}

	options := requestOptions{
		op:                op,
		name:              opts.Key,
		verb:              http.MethodPut,
		bucket:            ptr.To(opts.Bucket),
		key:               ptr.To(opts.Key),
		keySuffix:         keySuffix,
		contentType:       contentType,
		makePublic:        opts.MakePublic,
		serverSideEncrypt: opts.ServerSideEncrypt,
		visitor:           &putVisitor{},
		uploader:          uploader,
		contentLength:     size,
	}

	req := c.newRequest(options)

	response, err := c.completePut(req, c.execute(ctx, req))
	if err != nil {
		return nil, err
	}

	response.PartNumber = partNumber

	return response, nil
}

// GetOptions encapsulates the options available when using the 'Get' function.
type GetOptions struct {
	// Bucket is the bucket being operated on.
	Bucket string

	// Key is the key (path) of the object being downloaded.
	Key string

	// Buffer receives the body; a body larger than the buffer truncates the download. For bodies which should be
	// consumed incrementally supply a 'Loader' instead.
	Buffer []byte

	// Loader receives the body in bounded chunks.
	Loader GetLoader

	// ByteRange restricts the download to the half-open range [Start, End) of the object.
	ByteRange *objval.ByteRange
}

// loader returns the body sink, wrapping 'Buffer' in the built-in buffer loader when no custom loader was supplied.
func (g *GetOptions) loader() GetLoader {
	if g.Loader != nil {
		return g.Loader
	}

	return newBufferLoader(g.Buffer)
}

// Get downloads an object. A missing key is not an error: the response reports a loaded content length of -1 and the
// loader is never invoked.
func (c *Connection) Get(ctx context.Context, opts GetOptions) (*objval.GetResponse, error) {
	if err := opts.ByteRange.Valid(); err != nil {
		return nil, err // Purposefully not wrapped
	}

	req := c.newRequest(requestOptions{
		op:        "get",
		name:      opts.Key,
		verb:      http.MethodGet,
		bucket:    ptr.To(opts.Bucket),
		key:       ptr.To(opts.Key),
		byteRange: opts.ByteRange,
		visitor:   &getVisitor{},
		loader:    opts.loader(),
	})

	response, err := c.completeGet(req, c.execute(ctx, req))

	return response, objerr.Summarize("get", opts.Key, err)
}

// completeGet joins a download, applying the missing-key success override before classifying the outcome.
func (c *Connection) completeGet(req *request, err error) (*objval.GetResponse, error) {
	if err != nil {
		return nil, err
	}

	if req.stashed != nil {
		return nil, req.stashed
	}

	details := &req.details

	// Treat a missing key as success with a loaded content length of -1; Amazon reports 'NoSuchKey', Walrus
	// 'NoSuchEntity'.

	if details.status == statusFailureWithDetails &&
		(details.errorCode == "NoSuchKey" || details.errorCode == "NoSuchEntity") {
		details.status = statusSuccess
		details.loadedContentLength = -1
	}

	if err := handleErrors(details); err != nil {
		return nil, err
	}

	response := &objval.GetResponse{
		LoadedContentLength: details.loadedContentLength,
		IsTruncated:         details.isTruncated,
		ETag:                details.etag,
	}

	return response, nil
}

// DeleteOptions encapsulates the options available when using the 'Delete' function.
type DeleteOptions struct {
	// Bucket is the bucket being operated on.
	Bucket string

	// Key is the key (path) of the object being deleted.
	Key string
}

// Delete deletes an object; deleting a missing key succeeds.
func (c *Connection) Delete(ctx context.Context, opts DeleteOptions) error {
	err := c.del(ctx, "del", opts.Bucket, opts.Key, "")

	return objerr.Summarize("del", opts.Key, err)
}

// del is the shared deletion path; the suffix carries the '?uploadId=' sub-resource when aborting an upload.
func (c *Connection) del(ctx context.Context, op, bucket, key, keySuffix string) error {
	req := c.newRequest(requestOptions{
		op:        op,
		name:      key,
		verb:      http.MethodDelete,
		bucket:    ptr.To(bucket),
		key:       ptr.To(key),
		keySuffix: keySuffix,
		visitor:   &delVisitor{},
	})

	return c.completeDel(req, c.execute(ctx, req))
}

// completeDel joins a deletion. Walrus reports deleting a missing key as a 'NoSuchEntity' failure; it is mapped to
// success for consistency with Amazon.
func (c *Connection) completeDel(req *request, err error) error {
	if err != nil {
		return err
	}

	if req.stashed != nil {
		return req.stashed
	}

	details := &req.details

	if details.status == statusFailureWithDetails && details.errorCode == "NoSuchEntity" {
		details.status = statusSuccess
	}

	return handleErrors(details)
}

// DeleteAllOptions encapsulates the options available when using the 'DeleteAll' function.
type DeleteAllOptions struct {
	// Bucket is the bucket being operated on.
	Bucket string

	// Prefix restricts the sweep to keys with the given prefix.
	Prefix string

	// MaxKeysInBatch bounds the size of each listing page, zero leaves the page size to the service.
	MaxKeysInBatch uint
}

// DeleteAll deletes every object matching the given prefix, paging through the bucket until the listing is no longer
// truncated.
func (c *Connection) DeleteAll(ctx context.Context, opts DeleteAllOptions) error {
	var (
		objects  = make([]objval.Object, 0, 64)
		response = &objval.ListObjectsResponse{}
		err      error
	)

	for {
		listOpts := ListObjectsOptions{
			Bucket:  opts.Bucket,
			Prefix:  opts.Prefix,
			Marker:  response.NextMarker,
			MaxKeys: opts.MaxKeysInBatch,
			Func:    func(object objval.Object) error { objects = append(objects, object); return nil },
		}

		response, err = c.ListObjects(ctx, listOpts)
		if err != nil {
			return err // Already summarized
		}

		for _, object := range objects {
			if err := c.Delete(ctx, DeleteOptions{Bucket: opts.Bucket, Key: object.Key}); err != nil {
				return err // Already summarized
			}
		}

		objects = objects[:0]

		if !response.IsTruncated {
			return nil
		}
	}
}

// ListObjectsOptions encapsulates the options available when using the 'ListObjects' function.
type ListObjectsOptions struct {
	// Bucket is the bucket being operated on.
	Bucket string

	// Prefix restricts the listing to keys with the given prefix.
	Prefix string

	// Marker continues the listing after the given key; use the 'NextMarker' of the previous page.
	Marker string

	// Delimiter groups keys sharing a prefix up to the delimiter into a single synthetic directory entry.
	Delimiter string

	// MaxKeys bounds the page size, zero leaves it to the service.
	MaxKeys uint

	// Func is invoked once per entry.
	//
	// NOTE: Required
	Func ObjectEnumFunc
}

// ListObjects fetches a single page of a bucket listing, streaming each entry into the given function as it is
// parsed.
func (c *Connection) ListObjects(ctx context.Context, opts ListObjectsOptions) (*objval.ListObjectsResponse, error) {
	marker := opts.Marker

	// Walrus rejects a listing without a marker.

	if c.config.IsWalrus && marker == "" {
		marker = " "
	}

	var (
		query   queryParams
		maxKeys string
	)

	if opts.MaxKeys != 0 {
		maxKeys = strconv.FormatUint(uint64(opts.MaxKeys), 10)
	}

	query.add("delimiter", opts.Delimiter)
	query.add("marker", marker)
	query.add("max-keys", maxKeys)
	query.add("prefix", opts.Prefix)

	visitor := &listObjectsVisitor{
		enum:     c.passthroughObjectEnum(opts.Func),
		isWalrus: c.config.IsWalrus,
		prefix:   opts.Prefix,
	}

	req := c.newRequest(requestOptions{
		op:      "listObjects",
		name:    opts.Bucket,
		verb:    http.MethodGet,
		bucket:  ptr.To(opts.Bucket),
		signKey: ptr.To(""),
		rawURL:  c.urls.objectURL(ptr.To(opts.Bucket), ptr.To("")) + query.String(),
		visitor: visitor,
	})

	visitor.details = &req.details

	err := c.run(ctx, req)
	if err != nil {
		return nil, objerr.Summarize("listObjects", opts.Bucket, err)
	}

	response := &objval.ListObjectsResponse{
		NextMarker:  visitor.marker(),
		IsTruncated: req.details.isTruncated,
	}

	return response, nil
}

// ListAllObjects pages through a bucket listing until it is no longer truncated, streaming every entry into the
// given function.
func (c *Connection) ListAllObjects(ctx context.Context, opts ListObjectsOptions) error {
	for {
		response, err := c.ListObjects(ctx, opts)
		if err != nil {
			return err // Already summarized
		}

		if !response.IsTruncated {
			return nil
		}

		opts.Marker = response.NextMarker
	}
}

// passthroughObjectEnum marks errors raised by the caller's enumeration function so they cross the engine boundary
// and reach the caller unwrapped.
func (c *Connection) passthroughObjectEnum(fn ObjectEnumFunc) ObjectEnumFunc {
	return func(object objval.Object) error {
		if err := fn(object); err != nil {
			return &objerr.PassthroughError{Err: err}
		}

		return nil
	}
}

// InitiateMultipartUploadOptions encapsulates the options available when using the 'InitiateMultipartUpload'
// function.
type InitiateMultipartUploadOptions struct {
	// Bucket is the bucket being operated on.
	Bucket string

	// Key is the key the completed upload will create.
	Key string

	// MakePublic grants public read access to the completed object.
	MakePublic bool

	// ServerSideEncrypt asks the service to encrypt the object at rest.
	ServerSideEncrypt bool

	// ContentType is stored with the completed object, defaults to a binary content type.
	ContentType string
}

// InitiateMultipartUpload begins a multipart upload; parts are uploaded with 'PutPart' and the object is composed
// with 'CompleteMultipartUpload'.
func (c *Connection) InitiateMultipartUpload(
	ctx context.Context,
	opts InitiateMultipartUploadOptions,
) (*objval.InitiateMultipartUploadResponse, error) {
	contentType := opts.ContentType
	if contentType == "" {
		contentType = contentTypeBinary
	}

	req := c.newRequest(requestOptions{
		op:                "initiateMultipartUpload",
		name:              opts.Key,
		verb:              http.MethodPost,
		bucket:            ptr.To(opts.Bucket),
		key:               ptr.To(opts.Key),
		keySuffix:         "?uploads",
		contentType:       contentType,
		makePublic:        opts.MakePublic,
		serverSideEncrypt: opts.ServerSideEncrypt,
	})

	req.visitor = &initiateMultipartUploadVisitor{details: &req.details}

	err := c.run(ctx, req)
	if err != nil {
		return nil, objerr.Summarize("initiateMultipartUpload", opts.Key, err)
	}

	return &objval.InitiateMultipartUploadResponse{UploadID: req.details.uploadID}, nil
}

// PutPartOptions encapsulates the options available when using the 'PutPart' function.
type PutPartOptions struct {
	// Bucket is the bucket being operated on.
	Bucket string

	// Key is the key of the upload the part belongs to.
	Key string

	// UploadID identifies the upload.
	UploadID string

	// PartNumber orders the part within the object; the first part is number one.
	PartNumber int

	// Data is the part body; for bodies which are produced incrementally supply an 'Uploader' and a 'Size' instead.
	Data []byte

	// Uploader produces the body in bounded chunks; 'Size' must hold the total size.
	Uploader PutUploader
	Size     int64
}

// PutPart uploads one part of a multipart upload. Access and encryption settings were fixed when the upload was
// initiated so none are sent here.
func (c *Connection) PutPart(ctx context.Context, opts PutPartOptions) (*objval.PutResponse, error) {
	putOpts := PutOptions{
		Bucket:   opts.Bucket,
		Key:      opts.Key,
		Data:     opts.Data,
		Uploader: opts.Uploader,
		Size:     opts.Size,
	}

	response, err := c.put(ctx, "putPart", putOpts, opts.UploadID, opts.PartNumber)

	return response, objerr.Summarize("putPart", opts.Key, err)
}

// CompleteMultipartUploadOptions encapsulates the options available when using the 'CompleteMultipartUpload'
// function.
type CompleteMultipartUploadOptions struct {
	// Bucket is the bucket being operated on.
	Bucket string

	// Key is the key of the upload being completed.
	Key string

	// UploadID identifies the upload.
	UploadID string

	// Parts lists the (number, etag) pairs returned by the part uploads, in object order.
	Parts []objval.Part
}

// CompleteMultipartUpload composes the uploaded parts into the final object.
func (c *Connection) CompleteMultipartUpload(
	ctx context.Context,
	opts CompleteMultipartUploadOptions,
) (*objval.CompleteMultipartUploadResponse, error) {
	var payload strings.Builder

	payload.Grow(1024)
	payload.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	payload.WriteString("<CompleteMultipartUpload>")

	for _, part := range opts.Parts {
		payload.WriteString("<Part><PartNumber>")
		payload.WriteString(strconv.Itoa(part.Number))
		payload.WriteString("</PartNumber><ETag>\"")
		payload.WriteString(part.ETag)
		payload.WriteString("\"</ETag></Part>")
	}

	payload.WriteString("</CompleteMultipartUpload>")

	body := payload.String()

	req := c.newRequest(requestOptions{
		op:            "completeMultipartUpload",
		name:          opts.Key,
		verb:          http.MethodPost,
		bucket:        ptr.To(opts.Bucket),
		key:           ptr.To(opts.Key),
		keySuffix:     "?uploadId=" + opts.UploadID,
		contentType:   contentTypeBinary,
		uploader:      newBufferUploader([]byte(body)),
		contentLength: int64(len(body)),
	})

	req.visitor = &completeMultipartUploadVisitor{details: &req.details}

	err := c.run(ctx, req)
	if err != nil {
		return nil, objerr.Summarize("completeMultipartUpload", opts.Key, err)
	}

	return &objval.CompleteMultipartUploadResponse{ETag: req.details.etag}, nil
}

// AbortMultipartUploadOptions encapsulates the options available when using the 'AbortMultipartUpload' function.
type AbortMultipartUploadOptions struct {
	// Bucket is the bucket being operated on.
	Bucket string

	// Key is the key of the upload being aborted.
	Key string

	// UploadID identifies the upload.
	UploadID string
}

// AbortMultipartUpload abandons an in-progress multipart upload, discarding any uploaded parts.
func (c *Connection) AbortMultipartUpload(ctx context.Context, opts AbortMultipartUploadOptions) error {
	err := c.del(ctx, "abortMultipartUpload", opts.Bucket, opts.Key, "?uploadId="+opts.UploadID)

	return objerr.Summarize("abortMultipartUpload", opts.Key, err)
}

// ListMultipartUploadsOptions encapsulates the options available when using the 'ListMultipartUploads' function.
type ListMultipartUploadsOptions struct {
	// Bucket is the bucket being operated on.
	Bucket string

	// Prefix restricts the listing to uploads for keys with the given prefix.
	Prefix string

	// KeyMarker/UploadIDMarker continue the listing after the given entry; use the markers of the previous page.
	KeyMarker      string
	UploadIDMarker string

	// Delimiter groups uploads sharing a prefix up to the delimiter into a single synthetic directory entry.
	Delimiter string

	// MaxUploads bounds the page size, zero leaves it to the service.
	MaxUploads uint

	// Func is invoked once per upload.
	//
	// NOTE: Required
	Func MultipartUploadEnumFunc
}

// ListMultipartUploads fetches a single page of the in-progress multipart uploads of a bucket, streaming each entry
// into the given function as it is parsed.
func (c *Connection) ListMultipartUploads(
	ctx context.Context,
	opts ListMultipartUploadsOptions,
) (*objval.ListMultipartUploadsResponse, error) {
	var (
		query      queryParams
		maxUploads string
	)

	if opts.MaxUploads != 0 {
		maxUploads = strconv.FormatUint(uint64(opts.MaxUploads), 10)
	}

	query.add("delimiter", opts.Delimiter)
	query.add("key-marker", opts.KeyMarker)
	query.add("max-uploads", maxUploads)
	query.add("prefix", opts.Prefix)
	query.add("upload-id-marker", opts.UploadIDMarker)

	enum := func(upload objval.MultipartUpload) error {
		if err := opts.Func(upload); err != nil {
			return &objerr.PassthroughError{Err: err}
		}

		return nil
	}

	visitor := &listMultipartUploadsVisitor{enum: enum}

	req := c.newRequest(requestOptions{
		op:      "listMultipartUploads",
		name:    opts.Prefix,
		verb:    http.MethodGet,
		bucket:  ptr.To(opts.Bucket),
		signKey: ptr.To("?uploads"),
		rawURL:  c.urls.objectURL(ptr.To(opts.Bucket), ptr.To("")) + "?uploads" + queryContinuation(&query),
		visitor: visitor,
	})

	visitor.details = &req.details

	err := c.run(ctx, req)
	if err != nil {
		return nil, objerr.Summarize("listMultipartUploads", opts.Prefix, err)
	}

	response := &objval.ListMultipartUploadsResponse{
		NextKeyMarker:      visitor.last.Key,
		NextUploadIDMarker: visitor.last.UploadID,
		IsTruncated:        req.details.isTruncated,
	}

	return response, nil
}

// queryContinuation re-joins accumulated parameters onto a URL which already carries a '?uploads' sub-resource.
func queryContinuation(query *queryParams) string {
	encoded := query.String()
	if encoded == "" {
		return ""
	}

	return "&" + strings.TrimPrefix(encoded, "?")
}

// ListAllMultipartUploads pages through the upload listing until it is no longer truncated, streaming every entry
// into the given function.
func (c *Connection) ListAllMultipartUploads(ctx context.Context, opts ListMultipartUploadsOptions) error {
	for {
		response, err := c.ListMultipartUploads(ctx, opts)
		if err != nil {
			return err // Already summarized
		}

		if !response.IsTruncated {
			return nil
		}

		opts.KeyMarker = response.NextKeyMarker
		opts.UploadIDMarker = response.NextUploadIDMarker
	}
}

// AbortAllMultipartUploadsOptions encapsulates the options available when using the 'AbortAllMultipartUploads'
// function.
type AbortAllMultipartUploadsOptions struct {
	// Bucket is the bucket being operated on.
	Bucket string

	// Prefix restricts the sweep to uploads for keys with the given prefix.
	Prefix string

	// MaxUploadsInBatch bounds the size of each listing page, zero leaves the page size to the service.
	MaxUploadsInBatch uint
}

// AbortAllMultipartUploads aborts every in-progress multipart upload matching the given prefix. The sweep is best
// effort: aborts which fail do not stop it, the failures are aggregated and returned together.
func (c *Connection) AbortAllMultipartUploads(ctx context.Context, opts AbortAllMultipartUploadsOptions) error {
	var (
		uploads  = make([]objval.MultipartUpload, 0, 64)
		response = &objval.ListMultipartUploadsResponse{}
		errs     errdefs.MultiError
		err      error
	)

	for {
		listOpts := ListMultipartUploadsOptions{
			Bucket:         opts.Bucket,
			Prefix:         opts.Prefix,
			KeyMarker:      response.NextKeyMarker,
			UploadIDMarker: response.NextUploadIDMarker,
			MaxUploads:     opts.MaxUploadsInBatch,
			Func:           func(upload objval.MultipartUpload) error { uploads = append(uploads, upload); return nil },
		}

		response, err = c.ListMultipartUploads(ctx, listOpts)
		if err != nil {
			return err // Already summarized
		}

		for _, upload := range uploads {
			aopts := AbortMultipartUploadOptions{Bucket: opts.Bucket, Key: upload.Key, UploadID: upload.UploadID}

			if err := c.AbortMultipartUpload(ctx, aopts); err != nil {
				c.logger.Error("failed to abort multipart upload", "key", upload.Key, "id", upload.UploadID)
				errs.Add(err)
			}
		}

		uploads = uploads[:0]

		if !response.IsTruncated {
			return errs.ErrOrNil()
		}
	}
}
