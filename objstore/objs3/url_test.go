package objs3

import (
	"testing"

	"github.com/couchbase/tools-common/types/v2/ptr"
	"github.com/stretchr/testify/require"
)

func TestNewURLBuilder(t *testing.T) {
	type test struct {
		name           string
		config         Config
		expectedBase   string
		expectedRegion string
	}

	tests := []*test{
		{
			name:         "Defaults",
			config:       Config{},
			expectedBase: "http://s3.amazonaws.com/",
		},
		{
			name:         "HTTPS",
			config:       Config{IsHTTPS: true},
			expectedBase: "https://s3.amazonaws.com/",
		},
		{
			name:           "RegionalEndpoint",
			config:         Config{Host: "s3-us-west-2.amazonaws.com", IsHTTPS: true},
			expectedBase:   "https://s3-us-west-2.amazonaws.com/",
			expectedRegion: "us-west-2",
		},
		{
			name:         "CustomHostAndPort",
			config:       Config{Host: "storage.example.com", Port: "9000"},
			expectedBase: "http://storage.example.com:9000/",
		},
		{
			name:         "WalrusDefaultPort",
			config:       Config{Host: "cloud.example.com", IsWalrus: true},
			expectedBase: "http://cloud.example.com:8773/services/Walrus/",
		},
		{
			name:         "WalrusCustomPort",
			config:       Config{Host: "cloud.example.com", Port: "8774", IsWalrus: true},
			expectedBase: "http://cloud.example.com:8774/services/Walrus/",
		},
		{
			name: "WalrusHostMatchingRegionPatternHasNoRegion",
			config: Config{
				Host:     "s3-us-west-2.amazonaws.com",
				IsWalrus: true,
			},
			expectedBase: "http://s3-us-west-2.amazonaws.com:8773/services/Walrus/",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			builder := newURLBuilder(test.config)
			require.Equal(t, test.expectedBase, builder.base)
			require.Equal(t, test.expectedRegion, builder.region)
		})
	}
}

func TestURLBuilderObjectURL(t *testing.T) {
	builder := newURLBuilder(Config{})

	require.Equal(t, "http://s3.amazonaws.com/", builder.objectURL(nil, nil))
	require.Equal(t, "http://s3.amazonaws.com/bucket", builder.objectURL(ptr.To("bucket"), nil))
	require.Equal(t, "http://s3.amazonaws.com/bucket/", builder.objectURL(ptr.To("bucket"), ptr.To("")))
	require.Equal(
		t,
		"http://s3.amazonaws.com/bucket/key",
		builder.objectURL(ptr.To("bucket"), ptr.To("key")),
	)
}

func TestEscapeKey(t *testing.T) {
	require.Equal(t, "tmp%2Ff1%2Ft.dat", escapeKey("tmp/f1/t.dat"))
	require.Equal(t, "a%3Fb", escapeKey("a?b"))
	require.Equal(t, "a%23b", escapeKey("a#b"))
	require.Equal(t, "a%25b", escapeKey("a%b"))
}

func TestQueryParams(t *testing.T) {
	var query queryParams

	require.Empty(t, query.String())

	query.add("delimiter", "/")
	query.add("marker", "")
	query.add("max-keys", "10")
	query.add("prefix", "a b&c")

	require.Equal(t, "?delimiter=%2F&max-keys=10&prefix=a+b%26c", query.String())
}
