package objs3

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/couchbase/webstor/objstore/objerr"
	"github.com/couchbase/webstor/objstore/objtest"
)

func TestConnectionPendGetCompleteGet(t *testing.T) {
	server := objtest.NewServer(t)
	server.PutObject("bucket", "key", []byte("FOObar"))

	var (
		connection = newTestConnection(t, server)
		asyncMan   = NewAsyncMan(AsyncManOptions{})
		buffer     = make([]byte, 16)
	)

	require.False(t, connection.IsAsyncPending())

	err := connection.PendGet(context.Background(), asyncMan, GetOptions{
		Bucket: "bucket",
		Key:    "key",
		Buffer: buffer,
	})
	require.NoError(t, err)
	require.True(t, connection.IsAsyncPending())

	response, err := connection.CompleteGet()
	require.NoError(t, err)
	require.False(t, connection.IsAsyncPending())
	require.Equal(t, int64(6), response.LoadedContentLength)
	require.Equal(t, "FOObar", string(buffer[:6]))

	asyncMan.Close()
}

func TestConnectionPendPutCompletePut(t *testing.T) {
	server := objtest.NewServer(t)
	server.CreateBucket("bucket")

	var (
		connection = newTestConnection(t, server)
		asyncMan   = NewAsyncMan(AsyncManOptions{})
	)

	err := connection.PendPut(context.Background(), asyncMan, PutOptions{
		Bucket: "bucket",
		Key:    "key",
		Data:   []byte("FOObar"),
	})
	require.NoError(t, err)

	response, err := connection.CompletePut()
	require.NoError(t, err)
	require.NotEmpty(t, response.ETag)

	object, ok := server.GetObject("bucket", "key")
	require.True(t, ok)
	require.Equal(t, "FOObar", string(object.Body))

	asyncMan.Close()
}

func TestConnectionPendDeleteCompleteDelete(t *testing.T) {
	server := objtest.NewServer(t)
	server.PutObject("bucket", "key", []byte("FOObar"))

	var (
		connection = newTestConnection(t, server)
		asyncMan   = NewAsyncMan(AsyncManOptions{})
	)

	err := connection.PendDelete(context.Background(), asyncMan, DeleteOptions{Bucket: "bucket", Key: "key"})
	require.NoError(t, err)
	require.NoError(t, connection.CompleteDelete())

	_, ok := server.GetObject("bucket", "key")
	require.False(t, ok)

	asyncMan.Close()
}

func TestConnectionPendWhilePending(t *testing.T) {
	server := objtest.NewServer(t)
	server.PutObject("bucket", "key", []byte("FOObar"))

	var (
		connection = newTestConnection(t, server)
		asyncMan   = NewAsyncMan(AsyncManOptions{})
	)

	err := connection.PendGet(context.Background(), asyncMan, GetOptions{
		Bucket: "bucket",
		Key:    "key",
		Buffer: make([]byte, 16),
	})
	require.NoError(t, err)

	err = connection.PendGet(context.Background(), asyncMan, GetOptions{
		Bucket: "bucket",
		Key:    "key",
		Buffer: make([]byte, 16),
	})
	require.ErrorIs(t, err, objerr.ErrUnexpected)

	_, err = connection.CompleteGet()
	require.NoError(t, err)

	asyncMan.Close()
}

func TestConnectionCompleteGetMismatchedKind(t *testing.T) {
	server := objtest.NewServer(t)
	server.CreateBucket("bucket")

	var (
		connection = newTestConnection(t, server)
		asyncMan   = NewAsyncMan(AsyncManOptions{})
	)

	err := connection.PendPut(context.Background(), asyncMan, PutOptions{Bucket: "bucket", Key: "key"})
	require.NoError(t, err)

	_, err = connection.CompleteGet()
	require.ErrorIs(t, err, objerr.ErrUnexpected)
}

func TestConnectionCancelAsync(t *testing.T) {
	server := objtest.NewServer(t)
	server.PutObject("bucket", "key", []byte("FOObar"))

	var (
		connection = newTestConnection(t, server)
		asyncMan   = NewAsyncMan(AsyncManOptions{})
	)

	// Safe to call when nothing is pending.

	connection.CancelAsync()

	err := connection.PendGet(context.Background(), asyncMan, GetOptions{
		Bucket: "bucket",
		Key:    "key",
		Buffer: make([]byte, 16),
	})
	require.NoError(t, err)

	connection.CancelAsync()
	require.False(t, connection.IsAsyncPending())

	// The connection is reusable for a subsequent operation.

	buffer := make([]byte, 16)

	response, err := connection.Get(context.Background(), GetOptions{Bucket: "bucket", Key: "key", Buffer: buffer})
	require.NoError(t, err)
	require.Equal(t, int64(6), response.LoadedContentLength)
	require.Equal(t, "FOObar", string(buffer[:6]))

	asyncMan.Close()
}

func TestWaitAny(t *testing.T) {
	server := objtest.NewServer(t)

	const count = 4

	var (
		asyncMan    = NewAsyncMan(AsyncManOptions{})
		connections = make([]*Connection, 0, count)
		buffers     = make([][]byte, 0, count)
	)

	for i := range count {
		key := fmt.Sprintf("keys/%d", i)
		server.PutObject("bucket", key, []byte(key))

		connections = append(connections, newTestConnection(t, server))
		buffers = append(buffers, make([]byte, 16))
	}

	for i, connection := range connections {
		err := connection.PendGet(context.Background(), asyncMan, GetOptions{
			Bucket: "bucket",
			Key:    fmt.Sprintf("keys/%d", i),
			Buffer: buffers[i],
		})
		require.NoError(t, err)
	}

	// Harvest every connection; advancing 'startFrom' must visit all of them exactly once.

	var (
		startFrom int
		active    = append([]*Connection{}, connections...)
		harvested = make(map[*Connection]bool)
	)

	for len(active) > 0 {
		index, err := WaitAny(active, startFrom, time.Minute)
		require.NoError(t, err)
		require.False(t, harvested[active[index]])

		harvested[active[index]] = true
		startFrom = index

		response, err := active[index].CompleteGet()
		require.NoError(t, err)
		require.Equal(t, int64(6), response.LoadedContentLength)

		active = append(active[:index], active[index+1:]...)
	}

	require.Len(t, harvested, count)

	asyncMan.Close()
}

func TestWaitAnyTimeout(t *testing.T) {
	server := objtest.NewServer(t)
	server.PutObject("bucket", "key", []byte("FOObar"))

	var (
		release = make(chan struct{})
		once    sync.Once
	)

	// Release the handler even if the test fails early, closing the server would block on it otherwise.
	defer once.Do(func() { close(release) })

	server.OnRequest = func(*http.Request) { <-release }

	var (
		connection = newTestConnection(t, server)
		asyncMan   = NewAsyncMan(AsyncManOptions{})
	)

	err := connection.PendGet(context.Background(), asyncMan, GetOptions{
		Bucket: "bucket",
		Key:    "key",
		Buffer: make([]byte, 16),
	})
	require.NoError(t, err)

	index, err := WaitAny([]*Connection{connection}, 0, 25*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, -1, index)

	once.Do(func() { close(release) })

	_, err = connection.CompleteGet()
	require.NoError(t, err)

	asyncMan.Close()
}

func TestWaitAnyTooManyConnections(t *testing.T) {
	connections := make([]*Connection, MaxWaitAny+1)

	_, err := WaitAny(connections, 0, 0)
	require.ErrorIs(t, err, objerr.ErrTooManyConnections)
}

func TestWaitAnyNotPending(t *testing.T) {
	connection := newTestConnection(t, objtest.NewServer(t))

	_, err := WaitAny([]*Connection{connection}, 0, 0)
	require.ErrorIs(t, err, objerr.ErrUnexpected)
}
