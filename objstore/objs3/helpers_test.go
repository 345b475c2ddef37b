package objs3

import (
	"errors"
	"testing"

	"github.com/couchbase/webstor/objstore/objtest"
)

// assertionError stands in for an arbitrary failure raised by caller supplied callbacks.
var assertionError = errors.New("assertion error")

// failingLoader refuses every chunk with an error.
type failingLoader struct{}

func (failingLoader) OnLoad([]byte, int64) (int, error) {
	return 0, assertionError
}

// newTestConnection creates a connection pointed at the given in-memory server.
func newTestConnection(t *testing.T, server *objtest.Server) *Connection {
	connection, err := NewConnection(ConnectionOptions{
		Config: Config{
			AccessKey: "access",
			SecretKey: "secret",
			Host:      server.Host(),
		},
	})
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}

	return connection
}
