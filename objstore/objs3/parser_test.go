package objs3

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couchbase/webstor/objstore/objerr"
	"github.com/couchbase/webstor/objstore/objval"
)

func TestClassifyStatus(t *testing.T) {
	type test struct {
		status   string
		expected responseStatus
	}

	tests := []*test{
		{status: "200 OK", expected: statusSuccess},
		{status: "206 Partial Content", expected: statusSuccess},
		{status: "204 No Content", expected: statusSuccess},
		{status: "404 Not Found", expected: statusHTTPResourceNotFound},
		{status: "301 Moved Permanently", expected: statusHTTPOrAWSFailure},
		{status: "400 Bad Request", expected: statusHTTPOrAWSFailure},
		{status: "403 Forbidden", expected: statusHTTPOrAWSFailure},
		{status: "409 Conflict", expected: statusHTTPOrAWSFailure},
		{status: "500 Internal Server Error", expected: statusHTTPOrAWSFailure},
		{status: "503 Service Unavailable", expected: statusHTTPOrAWSFailure},
		{status: "503 Slow Down", expected: statusHTTPOrAWSFailure},
		{status: "418 I'm a teapot", expected: statusHTTPFailure},
		{status: "100 Continue", expected: statusHTTPFailure},
	}

	for _, test := range tests {
		t.Run(test.status, func(t *testing.T) {
			require.Equal(t, test.expected, classifyStatus(test.status))
		})
	}
}

func TestTrimETag(t *testing.T) {
	require.Equal(t, "abcd", trimETag(`"abcd"`))
	require.Equal(t, "abcd", trimETag("abcd"))
}

func TestLookupNode(t *testing.T) {
	require.Equal(t, nodeBucket, lookupNode("Bucket"))
	require.Equal(t, nodeUploadID, lookupNode("UploadId"))
	require.Equal(t, nodeUnknown, lookupNode("NotARealNode"))

	// The node table must be sorted for the binary search to be valid.
	for i := 1; i < len(responseNodeNames); i++ {
		require.Less(t, responseNodeNames[i-1], responseNodeNames[i])
	}
}

func TestPayloadMode(t *testing.T) {
	type test struct {
		name      string
		details   responseDetails
		expectXML bool
		expected  payloadMode
	}

	tests := []*test{
		{
			name:      "SuccessExpectingXML",
			details:   responseDetails{status: statusSuccess},
			expectXML: true,
			expected:  payloadXML,
		},
		{
			name:     "SuccessBinary",
			details:  responseDetails{status: statusSuccess},
			expected: payloadBinary,
		},
		{
			name: "NotFoundWithXMLBody",
			details: responseDetails{
				status:            statusHTTPResourceNotFound,
				httpContentLength: 128,
				httpContentType:   "application/xml",
			},
			expected: payloadXML,
		},
		{
			name: "FailureWithUnknownLength",
			details: responseDetails{
				status:            statusHTTPOrAWSFailure,
				httpContentLength: -1,
				httpContentType:   "application/xml",
			},
			expected: payloadXML,
		},
		{
			name: "FailureWithEmptyBody",
			details: responseDetails{
				status:            statusHTTPOrAWSFailure,
				httpContentLength: 0,
				httpContentType:   "application/xml",
			},
			expected: payloadDiscard,
		},
		{
			name: "FailureWithNonXMLBody",
			details: responseDetails{
				status:            statusHTTPFailure,
				httpContentLength: 128,
				httpContentType:   "text/html",
			},
			expected: payloadDiscard,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, test.details.payloadMode(test.expectXML))
		})
	}
}

func TestParseXMLErrorEnvelopeUpgradesClassification(t *testing.T) {
	body := `<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message>` +
		`<RequestId>4442587FB7D0A2F9</RequestId><HostId>host</HostId></Error>`

	details := newResponseDetails("http://example.com")
	details.status = statusHTTPResourceNotFound

	require.NoError(t, parseXML(&details, &getVisitor{}, strings.NewReader(body)))

	require.Equal(t, statusFailureWithDetails, details.status)
	require.Equal(t, "NoSuchKey", details.errorCode)
	require.Equal(t, "The specified key does not exist.", details.errorMessage)
	require.Equal(t, "4442587FB7D0A2F9", details.requestID)
	require.Equal(t, "host", details.hostID)
}

func TestParseXMLErrorEnvelopeDoesNotUpgradeSuccess(t *testing.T) {
	body := `<Error><Code>Code</Code></Error>`

	details := newResponseDetails("http://example.com")
	details.status = statusSuccess

	require.NoError(t, parseXML(&details, &getVisitor{}, strings.NewReader(body)))
	require.Equal(t, statusSuccess, details.status)
	require.Equal(t, "Code", details.errorCode)
}

func TestParseXMLDepthOverflow(t *testing.T) {
	body := "<a><b><c><d><e><f><g><h><i></i></h></g></f></e></d></c></b></a>"

	details := newResponseDetails("http://example.com")
	details.status = statusSuccess

	err := parseXML(&details, &listBucketsVisitor{buckets: &[]objval.Bucket{}}, strings.NewReader(body))
	require.True(t, objerr.IsParserError(err))
}

func TestParseXMLMalformed(t *testing.T) {
	details := newResponseDetails("http://example.com")
	details.status = statusSuccess

	err := parseXML(&details, &getVisitor{}, strings.NewReader("<a><mismatched></a>"))
	require.True(t, objerr.IsParserError(err))
}

func TestParseXMLListBuckets(t *testing.T) {
	body := `<ListAllMyBucketsResult><Owner><ID>test</ID></Owner><Buckets>` +
		`<Bucket><Name>first</Name><CreationDate>2023-01-01T00:00:00.000Z</CreationDate></Bucket>` +
		`<Bucket><Name>second</Name><CreationDate>2024-01-01T00:00:00.000Z</CreationDate></Bucket>` +
		`</Buckets></ListAllMyBucketsResult>`

	var (
		details = newResponseDetails("http://example.com")
		buckets []objval.Bucket
		visitor = &listBucketsVisitor{buckets: &buckets}
	)

	details.status = statusSuccess

	require.NoError(t, parseXML(&details, visitor, strings.NewReader(body)))

	expected := []objval.Bucket{
		{Name: "first", CreationDate: "2023-01-01T00:00:00.000Z"},
		{Name: "second", CreationDate: "2024-01-01T00:00:00.000Z"},
	}

	require.Equal(t, expected, buckets)
}

func TestParseXMLListObjects(t *testing.T) {
	body := `<ListBucketResult><Name>bucket</Name><Prefix>tmp/</Prefix><IsTruncated>true</IsTruncated>` +
		`<Contents><Key>tmp/object.dat</Key><LastModified>2024-01-01T00:00:00.000Z</LastModified>` +
		`<ETag>&quot;aabbcc&quot;</ETag><Size>42</Size></Contents>` +
		`<CommonPrefixes><Prefix>tmp/dir/</Prefix></CommonPrefixes>` +
		`</ListBucketResult>`

	var (
		details = newResponseDetails("http://example.com")
		objects []objval.Object
		visitor = &listObjectsVisitor{
			details: &details,
			enum:    func(object objval.Object) error { objects = append(objects, object); return nil },
		}
	)

	details.status = statusSuccess

	require.NoError(t, parseXML(&details, visitor, strings.NewReader(body)))

	expected := []objval.Object{
		{Key: "tmp/object.dat", LastModified: "2024-01-01T00:00:00.000Z", ETag: "aabbcc", Size: 42},
		{Key: "tmp/dir/", Size: -1, IsDir: true},
	}

	require.Equal(t, expected, objects)
	require.True(t, details.isTruncated)

	// No explicit marker in the page, the last key seen is used to continue.
	require.Equal(t, "tmp/dir/", visitor.marker())
}

func TestParseXMLListObjectsNextMarkerPreferred(t *testing.T) {
	body := `<ListBucketResult><IsTruncated>true</IsTruncated><NextMarker>explicit</NextMarker>` +
		`<Contents><Key>a</Key><Size>1</Size></Contents></ListBucketResult>`

	var (
		details = newResponseDetails("http://example.com")
		visitor = &listObjectsVisitor{
			details: &details,
			enum:    func(objval.Object) error { return nil },
		}
	)

	details.status = statusSuccess

	require.NoError(t, parseXML(&details, visitor, strings.NewReader(body)))
	require.Equal(t, "explicit", visitor.marker())
}

// Walrus nests 'Contents' and 'CommonPrefixes' one level deeper than S3 and returns directory prefixes relative to
// the request prefix.
func TestParseXMLListObjectsWalrus(t *testing.T) {
	body := `<ListBucketResponse><ListBucketResult><Name>bucket</Name><Prefix>tmp/</Prefix>` +
		`<IsTruncated>false</IsTruncated>` +
		`<Contents><Key>tmp/object.dat</Key><Size>42</Size></Contents>` +
		`<CommonPrefixes><Prefix>dir/</Prefix></CommonPrefixes>` +
		`</ListBucketResult></ListBucketResponse>`

	var (
		details = newResponseDetails("http://example.com")
		objects []objval.Object
		visitor = &listObjectsVisitor{
			details:  &details,
			isWalrus: true,
			prefix:   "tmp/",
			enum:     func(object objval.Object) error { objects = append(objects, object); return nil },
		}
	)

	details.status = statusSuccess

	require.NoError(t, parseXML(&details, visitor, strings.NewReader(body)))

	expected := []objval.Object{
		{Key: "tmp/object.dat", Size: 42},
		{Key: "tmp/dir/", Size: -1, IsDir: true},
	}

	require.Equal(t, expected, objects)
}

func TestParseXMLListObjectsEnumFailureStopsParsing(t *testing.T) {
	body := `<ListBucketResult>` +
		`<Contents><Key>a</Key><Size>1</Size></Contents>` +
		`<Contents><Key>b</Key><Size>1</Size></Contents>` +
		`</ListBucketResult>`

	var (
		details = newResponseDetails("http://example.com")
		seen    int
		visitor = &listObjectsVisitor{
			details: &details,
			enum:    func(objval.Object) error { seen++; return assertionError },
		}
	)

	details.status = statusSuccess

	err := parseXML(&details, visitor, strings.NewReader(body))
	require.ErrorIs(t, err, assertionError)
	require.Equal(t, 1, seen)
}

func TestParseXMLInitiateMultipartUpload(t *testing.T) {
	body := `<InitiateMultipartUploadResult><Bucket>bucket</Bucket><Key>key</Key>` +
		`<UploadId>VXBsb2FkIElE</UploadId></InitiateMultipartUploadResult>`

	details := newResponseDetails("http://example.com")
	details.status = statusSuccess

	visitor := &initiateMultipartUploadVisitor{details: &details}

	require.NoError(t, parseXML(&details, visitor, strings.NewReader(body)))
	require.Equal(t, "VXBsb2FkIElE", details.uploadID)
}

func TestParseXMLCompleteMultipartUpload(t *testing.T) {
	body := `<CompleteMultipartUploadResult><Location>http://example.com/bucket/key</Location>` +
		`<ETag>&quot;aabbcc-2&quot;</ETag></CompleteMultipartUploadResult>`

	details := newResponseDetails("http://example.com")
	details.status = statusSuccess

	visitor := &completeMultipartUploadVisitor{details: &details}

	require.NoError(t, parseXML(&details, visitor, strings.NewReader(body)))
	require.Equal(t, "aabbcc-2", details.etag)
}

func TestParseXMLListMultipartUploads(t *testing.T) {
	body := `<ListMultipartUploadsResult><Bucket>bucket</Bucket><IsTruncated>true</IsTruncated>` +
		`<Upload><Key>key1</Key><UploadId>id1</UploadId></Upload>` +
		`<Upload><Key>key2</Key><UploadId>id2</UploadId></Upload>` +
		`<CommonPrefixes><Prefix>dir/</Prefix></CommonPrefixes>` +
		`</ListMultipartUploadsResult>`

	var (
		details = newResponseDetails("http://example.com")
		uploads []objval.MultipartUpload
		visitor = &listMultipartUploadsVisitor{
			details: &details,
			enum:    func(upload objval.MultipartUpload) error { uploads = append(uploads, upload); return nil },
		}
	)

	details.status = statusSuccess

	require.NoError(t, parseXML(&details, visitor, strings.NewReader(body)))

	expected := []objval.MultipartUpload{
		{Key: "key1", UploadID: "id1"},
		{Key: "key2", UploadID: "id2"},
		{Key: "dir/", IsDir: true},
	}

	require.Equal(t, expected, uploads)
	require.True(t, details.isTruncated)
	require.Equal(t, objval.MultipartUpload{Key: "dir/", IsDir: true}, visitor.last)
}

func TestLoadBinary(t *testing.T) {
	var (
		details = newResponseDetails("http://example.com")
		loader  = newBufferLoader(make([]byte, 16))
	)

	require.NoError(t, loadBinary(&details, loader, strings.NewReader("FOObar")))
	require.Equal(t, int64(6), details.loadedContentLength)
	require.False(t, details.isTruncated)
	require.Equal(t, "FOObar", string(loader.buffer[:6]))
}

func TestLoadBinaryTruncated(t *testing.T) {
	var (
		details = newResponseDetails("http://example.com")
		loader  = newBufferLoader(make([]byte, 2))
	)

	err := loadBinary(&details, loader, strings.NewReader("FOObar"))
	require.ErrorIs(t, err, errAbortBody)
	require.Equal(t, int64(2), details.loadedContentLength)
	require.True(t, details.isTruncated)
	require.Equal(t, "FO", string(loader.buffer))
}

func TestLoadBinaryLoaderFailure(t *testing.T) {
	details := newResponseDetails("http://example.com")

	err := loadBinary(&details, &failingLoader{}, strings.NewReader("FOObar"))

	var passthrough *objerr.PassthroughError

	require.ErrorAs(t, err, &passthrough)
	require.ErrorIs(t, passthrough.Err, assertionError)
}

func TestHandleErrors(t *testing.T) {
	type test struct {
		name     string
		details  responseDetails
		expected func(t *testing.T, err error)
	}

	tests := []*test{
		{
			name:     "Success",
			details:  responseDetails{status: statusSuccess},
			expected: func(t *testing.T, err error) { require.NoError(t, err) },
		},
		{
			name:    "Unexpected",
			details: responseDetails{status: statusUnexpected},
			expected: func(t *testing.T, err error) {
				require.ErrorIs(t, err, objerr.ErrUnexpected)
			},
		},
		{
			name:    "NotFound",
			details: responseDetails{status: statusHTTPResourceNotFound, url: "http://example.com/b/k"},
			expected: func(t *testing.T, err error) {
				var notFound *objerr.HTTPNotFoundError
				require.ErrorAs(t, err, &notFound)
				require.Equal(t, "http://example.com/b/k", notFound.URL)
			},
		},
		{
			name:    "HTTPFailure",
			details: responseDetails{status: statusHTTPFailure, httpStatus: "418 I'm a teapot"},
			expected: func(t *testing.T, err error) {
				var httpError *objerr.HTTPError
				require.ErrorAs(t, err, &httpError)
				require.Equal(t, "418 I'm a teapot", httpError.Status)
			},
		},
		{
			name:    "FailureWithoutDetailsTreatedAsHTTP",
			details: responseDetails{status: statusHTTPOrAWSFailure, httpStatus: "403 Forbidden"},
			expected: func(t *testing.T, err error) {
				var httpError *objerr.HTTPError
				require.ErrorAs(t, err, &httpError)
			},
		},
		{
			name: "FailureWithDetails",
			details: responseDetails{
				status:       statusFailureWithDetails,
				errorCode:    "AccessDenied",
				errorMessage: "Access Denied",
				requestID:    "request",
				hostID:       "host",
			},
			expected: func(t *testing.T, err error) {
				awsError, ok := objerr.IsAWSError(err)
				require.True(t, ok)
				require.Equal(t, "AccessDenied", awsError.Code)
				require.Equal(t, "Access Denied", awsError.Message)
				require.Equal(t, "request", awsError.RequestID)
				require.Equal(t, "host", awsError.HostID)
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			test.expected(t, handleErrors(&test.details))
		})
	}
}
