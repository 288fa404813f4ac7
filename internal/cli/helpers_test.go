package cli

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

const testBaseDN = "DC=example,DC=com"

// fakeBackend answers every search with records.
type fakeBackend struct {
	records  []query.Record
	err      error
	requests []*query.SearchRequest
}

func (f *fakeBackend) Search(_ context.Context, req *query.SearchRequest) (query.RecordSet, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return query.NewRecordSet(f.records...), nil
}

type nopCloser struct{ closed bool }

func (c *nopCloser) Close() error {
	c.closed = true
	return nil
}

type testCLI struct {
	backend *fakeBackend
	closer  *nopCloser
	config  *adldap.ConnectionConfig
	stdout  bytes.Buffer
	stderr  bytes.Buffer
}

// run executes the CLI with args against a fake directory.
func (c *testCLI) run(t *testing.T, args ...string) error {
	t.Helper()
	if c.backend == nil {
		c.backend = &fakeBackend{}
	}
	c.closer = &nopCloser{}

	opts := &RootOptions{
		openDirectory: func(_ context.Context, config *adldap.ConnectionConfig) (query.Backend, string, io.Closer, error) {
			c.config = config
			return c.backend, testBaseDN, c.closer, nil
		},
	}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(&c.stdout)
	cmd.SetErr(&c.stderr)
	return cmd.ExecuteContext(t.Context())
}

// setConnectionEnv configures a minimal valid connection.
func setConnectionEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ADQUERY_DOMAIN", "example.com")
	t.Setenv("ADQUERY_USERNAME", "svc-adquery@example.com")
	t.Setenv("ADQUERY_PASSWORD", "secret")
}

func computerRecord(name, osName string) *query.MapRecord {
	return &query.MapRecord{
		Name: "CN=" + name + ",OU=Servers," + testBaseDN,
		Values: map[string][]any{
			"dNSHostName":     {name + ".example.com"},
			"operatingSystem": {osName},
		},
	}
}

func requireNoError(t *testing.T, c *testCLI, err error) {
	t.Helper()
	require.NoError(t, err, "stderr: %s", c.stderr.String())
}
