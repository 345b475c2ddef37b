// Command s3put uploads benchmark objects over a number of concurrent connections and reports the achieved
// throughput.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/couchbase/tools-common/strings/format"
	"github.com/couchbase/tools-common/sync/v2/hofp"
	"github.com/couchbase/tools-common/utils/v3/system"

	"github.com/couchbase/webstor/objstore/objs3"
)

func main() {
	var (
		sizeMB      = flag.Int("s", 1, "object size in MiB")
		connections = flag.Int("c", system.NumWorkers(0), "number of concurrent connections")
		objects     = flag.Int("n", 16, "number of objects to upload")
		prefix      = flag.String("p", "scanspeed", "key prefix to upload under")
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
	data := make([]byte, sizeMB*1024*1024)
	if _, err := rand.Read(data); err != nil {
		return err
	}

	leases := make(chan *objs3.Connection, connections)

	for range connections {
		connection, err := objs3.NewConnection(objs3.ConnectionOptions{Config: config})
		if err != nil {
			return err
		}

		leases <- connection
	}

	pool := hofp.NewPool(hofp.Options{Size: connections, LogPrefix: "(s3put)"})
	start := time.Now()

	for i := range objects {
		key := fmt.Sprintf("%s/%d/%dmb", prefix, i, sizeMB)

		err := pool.Queue(func(ctx context.Context) error {
			connection := <-leases
			defer func() { leases <- connection }()

			_, err := connection.Put(ctx, objs3.PutOptions{Bucket: bucket, Key: key, Data: data})

			return err
		})
		if err != nil {
			break
		}
	}

	if err := pool.Stop(); err != nil {
		return err
	}

	elapsed := time.Since(start)
	total := uint64(objects) * uint64(len(data))

	slog.Info("upload complete",
		"objects", objects,
		"bytes", format.Bytes(total),
		"elapsed", elapsed,
		"throughput", format.Bytes(uint64(float64(total)/elapsed.Seconds()))+"/s")

	return nil
}
