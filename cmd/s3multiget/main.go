// Command s3multiget fetches a set of benchmark objects, each once, using the raw pend/wait-any pipeline, keeping
// every connection busy; useful for scan-speed measurements against fixed-size objects.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/couchbase/tools-common/strings/format"

	"github.com/couchbase/webstor/objstore/objs3"
)

func main() {
	var (
		sizeMB      = flag.Int("s", 1, "object size in MiB of the uploaded objects")
		connections = flag.Int("c", 1, "number of concurrent connections")
		objects     = flag.Int("n", 16, "number of objects to fetch")
		prefix      = flag.String("p", "scanspeed", "key prefix the objects were uploaded under")
	)

	flag.Parse()

	config, bucket, err := configFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(config, bucket, *prefix, *sizeMB, *connections, *objects); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configFromEnv builds the connection configuration from the conventional environment variables.
func configFromEnv() (objs3.Config, string, error) {
	config := objs3.Config{
		AccessKey: os.Getenv("AWS_ACCESS_KEY"),
		SecretKey: os.Getenv("AWS_SECRET_KEY"),
		Host:      os.Getenv("AWS_HOST"),
		Proxy:     os.Getenv("AWS_PROXY"),
	}

	if config.AccessKey == "" || config.SecretKey == "" {
		return objs3.Config{}, "", fmt.Errorf("AWS_ACCESS_KEY and AWS_SECRET_KEY must be set")
	}

	bucket := os.Getenv("AWS_BUCKET_NAME")
	if bucket == "" {
		return objs3.Config{}, "", fmt.Errorf("AWS_BUCKET_NAME must be set")
	}

	return config, bucket, nil
}

func run(config objs3.Config, bucket, prefix string, sizeMB, connections, objects int) error {
	var (
		ctx      = context.Background()
		asyncMan = objs3.NewAsyncMan(objs3.AsyncManOptions{})
		size     = sizeMB * 1024 * 1024
	)

	cons := make([]*objs3.Connection, 0, connections)
	buffers := make(map[*objs3.Connection][]byte, connections)

	for range connections {
		connection, err := objs3.NewConnection(objs3.ConnectionOptions{Config: config})
		if err != nil {
			return err
		}

		cons = append(cons, connection)
		buffers[connection] = make([]byte, size)
	}

	key := func(i int) string { return fmt.Sprintf("%s/%d/%dmb", prefix, i, sizeMB) }

	start := time.Now()

	pend := func(connection *objs3.Connection, buffer []byte, i int) error {
		return connection.PendGet(ctx, asyncMan, objs3.GetOptions{Bucket: bucket, Key: key(i), Buffer: buffer})
	}

	// Prime every connection, then harvest and re-pend until all keys have been fetched.

	var (
		active = make([]*objs3.Connection, 0, connections)
		next   int
	)

	for ; next < min(connections, objects); next++ {
		if err := pend(cons[next], buffers[cons[next]], next); err != nil {
			return err
		}

		active = append(active, cons[next])
	}

	var (
		total     uint64
		startFrom int
	)

	for len(active) > 0 {
		index, err := objs3.WaitAny(active, startFrom, -1)
		if err != nil {
			return err
		}

		startFrom = index + 1

		response, err := active[index].CompleteGet()
		if err != nil {
			return err
		}

		if response.LoadedContentLength == -1 {
			slog.Warn("object missing")
		} else {
			total += uint64(response.LoadedContentLength)
		}

		if next < objects {
			if err := pend(active[index], buffers[active[index]], next); err != nil {
				return err
			}

			next++

			continue
		}

		active = append(active[:index], active[index+1:]...)
	}

	asyncMan.Close()

	elapsed := time.Since(start)

	slog.Info("scan complete",
		"objects", objects,
		"bytes", format.Bytes(total),
		"elapsed", elapsed,
		"throughput", format.Bytes(uint64(float64(total)/elapsed.Seconds()))+"/s")

	return nil
}
