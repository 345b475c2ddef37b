// Command s3get downloads benchmark objects over a number of pipelined connections and reports the achieved
// throughput.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/couchbase/tools-common/strings/format"
	"github.com/couchbase/tools-common/utils/v3/system"

	"github.com/couchbase/webstor/objstore/objs3"
	"github.com/couchbase/webstor/objstore/objutil"
)

func main() {
	var (
		sizeMB      = flag.Int("s", 1, "object size in MiB of the uploaded objects")
		connections = flag.Int("c", system.NumWorkers(0), "number of concurrent connections")
		objects     = flag.Int("n", 16, "number of objects to download")
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
	cons := make([]*objs3.Connection, 0, connections)

	for range connections {
		connection, err := objs3.NewConnection(objs3.ConnectionOptions{Config: config})
		if err != nil {
			return err
		}

		cons = append(cons, connection)
	}

	keys := make([]string, 0, objects)
	for i := range objects {
		keys = append(keys, fmt.Sprintf("%s/%d/%dmb", prefix, i, sizeMB))
	}

	var (
		asyncMan = objs3.NewAsyncMan(objs3.AsyncManOptions{})
		start    = time.Now()
	)

	results, err := objutil.MultiGet(context.Background(), objutil.MultiGetOptions{
		Connections: cons,
		AsyncMan:    asyncMan,
		Bucket:      bucket,
		Keys:        keys,
	})
	if err != nil {
		return err
	}

	asyncMan.Close()

	var total uint64

	for key, body := range results {
		if body == nil {
			slog.Warn("object missing", "key", key)
			continue
		}

		total += uint64(len(body))
	}

	elapsed := time.Since(start)

	slog.Info("download complete",
		"objects", len(results),
		"bytes", format.Bytes(total),
		"elapsed", elapsed,
		"throughput", format.Bytes(uint64(float64(total)/elapsed.Seconds()))+"/s")

	return nil
}
