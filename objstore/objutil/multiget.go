package objutil

import (
	"context"
	"fmt"

	"github.com/couchbase/webstor/objstore/objs3"
)

// appendLoader accumulates a downloaded body of unknown size; it never refuses bytes so downloads through it are
// never truncated.
type appendLoader struct {
	data []byte
}

func (a *appendLoader) OnLoad(chunk []byte, totalSizeHint int64) (int, error) {
	if a.data == nil && totalSizeHint > 0 {
		a.data = make([]byte, 0, totalSizeHint)
	}

	a.data = append(a.data, chunk...)

	return len(chunk), nil
}

// MultiGetOptions encapsulates the options available when using the 'MultiGet' function.
type MultiGetOptions struct {
	// Connections are the connections downloads are pipelined over. Each connection must be otherwise idle.
	//
	// NOTE: This attribute is required.
	Connections []*objs3.Connection

	// AsyncMan is the background driver downloads are pended to.
	//
	// NOTE: This attribute is required.
	AsyncMan *objs3.AsyncMan

	// Bucket is the bucket being operated on.
	Bucket string

	// Keys are the keys to fetch.
	Keys []string
}

// MultiGet fetches the given keys over the given connections, keeping every connection busy until all keys have been
// downloaded: as each transfer completes the next key is pended onto the freed connection. Missing keys map to a nil
// body in the result.
func MultiGet(ctx context.Context, opts MultiGetOptions) (map[string][]byte, error) {
	type transfer struct {
		key    string
		loader *appendLoader
	}

	var (
		results   = make(map[string][]byte, len(opts.Keys))
		inflight  = make(map[*objs3.Connection]*transfer)
		active    = make([]*objs3.Connection, 0, len(opts.Connections))
		next      int
		startFrom int
	)

	pend := func(connection *objs3.Connection) error {
		loader := &appendLoader{}

		err := connection.PendGet(ctx, opts.AsyncMan, objs3.GetOptions{
			Bucket: opts.Bucket,
			Key:    opts.Keys[next],
			Loader: loader,
		})
		if err != nil {
			return err
		}

		inflight[connection] = &transfer{key: opts.Keys[next], loader: loader}
		next++

		return nil
	}

	cancelAll := func() {
		for _, connection := range active {
			connection.CancelAsync()
		}
	}

	for _, connection := range opts.Connections {
		if next >= len(opts.Keys) {
			break
		}

		if err := pend(connection); err != nil {
			cancelAll()
			return nil, err
		}

		active = append(active, connection)
	}

	for len(active) > 0 {
		index, err := objs3.WaitAny(active, startFrom, -1)
		if err != nil {
			cancelAll()
			return nil, err
		}

		startFrom = index + 1

		connection := active[index]

		response, err := connection.CompleteGet()
		if err != nil {
			cancelAll()
			return nil, fmt.Errorf("failed to complete download: %w", err)
		}

		completed := inflight[connection]
		delete(inflight, connection)

		// A loaded content length of -1 means the key does not exist; leave a nil body in the results.

		if response.LoadedContentLength != -1 {
			results[completed.key] = completed.loader.data
		} else {
			results[completed.key] = nil
		}

		if next < len(opts.Keys) {
			if err := pend(connection); err != nil {
				cancelAll()
				return nil, err
			}

			continue
		}

		active = append(active[:index], active[index+1:]...)
	}

	return results, nil
}
