package ldap

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"golang.org/x/time/rate"
)

// stubPool fails every Get with err and counts the calls.
type stubPool struct {
	err    error
	gets   int
	closed bool
}

func (p *stubPool) Get(context.Context) (*PooledConnection, error) {
	p.gets++
	return nil, p.err
}

func (p *stubPool) Close() error {
	p.closed = true
	return nil
}

func (p *stubPool) Stats() PoolStats {
	return PoolStats{Created: int64(p.gets)}
}

func testConfig() *ConnectionConfig {
	cfg := DefaultConfig()
	cfg.LDAPURLs = []string{"ldaps://dc1.example.com:636"}
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	return cfg
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		config  func() *ConnectionConfig
		wantErr bool
	}{
		{
			name:   "default config with URLs",
			config: testConfig,
		},
		{
			name: "rate limited",
			config: func() *ConnectionConfig {
				cfg := testConfig()
				cfg.RequestsPerSecond = 10
				cfg.Burst = 5
				return cfg
			},
		},
		{
			name: "invalid config - no domain or URLs",
			config: func() *ConnectionConfig {
				cfg := testConfig()
				cfg.LDAPURLs = nil
				return cfg
			},
			wantErr: true,
		},
		{
			name: "invalid config - bad max connections",
			config: func() *ConnectionConfig {
				cfg := testConfig()
				cfg.MaxConnections = 0
				return cfg
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(t.Context(), tt.config())

			if tt.wantErr {
				if err == nil {
					t.Error("NewClient() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient() unexpected error: %v", err)
			}
			defer c.Close()
		})
	}
}

func TestNewClient_Limiter(t *testing.T) {
	unlimited := newClient(&stubPool{}, testConfig())
	if unlimited.limiter.Limit() != rate.Inf {
		t.Errorf("Limit() = %v, want Inf", unlimited.limiter.Limit())
	}

	cfg := testConfig()
	cfg.RequestsPerSecond = 2.5
	cfg.Burst = 3
	limited := newClient(&stubPool{}, cfg)
	if limited.limiter.Limit() != rate.Limit(2.5) {
		t.Errorf("Limit() = %v, want 2.5", limited.limiter.Limit())
	}
	if limited.limiter.Burst() != 3 {
		t.Errorf("Burst() = %d, want 3", limited.limiter.Burst())
	}

	cfg.Burst = 0
	if b := newClient(&stubPool{}, cfg).limiter.Burst(); b != 1 {
		t.Errorf("Burst() = %d, want at least 1", b)
	}
}

func TestClient_Wait(t *testing.T) {
	cfg := testConfig()
	cfg.RequestsPerSecond = 0.001
	cfg.Burst = 1
	c := newClient(&stubPool{}, cfg)

	if err := c.wait(t.Context()); err != nil {
		t.Fatalf("first wait should use the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	if err := c.wait(ctx); err == nil {
		t.Error("second wait should fail before the next token")
	}
}

func TestClient_Search(t *testing.T) {
	t.Run("nil request", func(t *testing.T) {
		c := newClient(&stubPool{}, testConfig())
		if _, err := c.Search(t.Context(), nil); err == nil {
			t.Error("Search(nil) should fail")
		}
	})

	t.Run("pool errors are retried", func(t *testing.T) {
		pool := &stubPool{err: NewConnectionError("dial failed", true, nil)}
		cfg := testConfig()
		cfg.MaxRetries = 2
		c := newClient(pool, cfg)

		_, err := c.Search(t.Context(), &SearchRequest{BaseDN: "DC=example,DC=com"})
		if err == nil {
			t.Fatal("Search() should fail")
		}
		if pool.gets != 3 {
			t.Errorf("Get called %d times, want 3", pool.gets)
		}
		var ldapErr *LDAPError
		if !errors.As(err, &ldapErr) || ldapErr.Operation != "search" {
			t.Errorf("Search() error = %v, want LDAPError for search", err)
		}
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		pool := &stubPool{err: ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("bad password"))}
		c := newClient(pool, testConfig())

		_, err := c.Search(t.Context(), &SearchRequest{BaseDN: "DC=example,DC=com"})
		if err == nil {
			t.Fatal("Search() should fail")
		}
		if pool.gets != 1 {
			t.Errorf("Get called %d times, want 1", pool.gets)
		}
		if !IsAuthenticationError(err) {
			t.Errorf("Search() error = %v, want authentication error", err)
		}
	})
}

func TestClient_BuildSearchRequest(t *testing.T) {
	tests := []struct {
		name       string
		pageSize   uint32
		req        *SearchRequest
		wantPaging bool
		wantSort   bool
		wantFilter string
		wantLimit  int
		wantTime   int
	}{
		{
			name:       "paged subtree search",
			pageSize:   500,
			req:        &SearchRequest{BaseDN: "DC=example,DC=com", Scope: ScopeWholeSubtree, Filter: "(objectClass=user)"},
			wantPaging: true,
			wantFilter: "(objectClass=user)",
		},
		{
			name:       "size limit below page size is not paged",
			pageSize:   500,
			req:        &SearchRequest{Filter: "(cn=x)", SizeLimit: 10},
			wantFilter: "(cn=x)",
			wantLimit:  10,
		},
		{
			name:       "size limit above page size is paged",
			pageSize:   100,
			req:        &SearchRequest{Filter: "(cn=x)", SizeLimit: 1000},
			wantPaging: true,
			wantFilter: "(cn=x)",
			wantLimit:  1000,
		},
		{
			name:       "paging disabled",
			pageSize:   0,
			req:        &SearchRequest{Filter: "(cn=x)"},
			wantFilter: "(cn=x)",
		},
		{
			name:       "sorted with default filter",
			pageSize:   500,
			req:        &SearchRequest{Sort: &SortKey{Attribute: "sn", Reverse: true}, TimeLimit: 1500 * time.Millisecond},
			wantPaging: true,
			wantSort:   true,
			wantFilter: "(objectClass=*)",
			wantTime:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.PageSize = tt.pageSize
			c := newClient(&stubPool{}, cfg)

			got, paging := c.buildSearchRequest(tt.req)

			if (paging != nil) != tt.wantPaging {
				t.Errorf("paging = %v, want %v", paging != nil, tt.wantPaging)
			}
			if paging != nil && paging.PagingSize != tt.pageSize {
				t.Errorf("PagingSize = %d, want %d", paging.PagingSize, tt.pageSize)
			}
			if got.Filter != tt.wantFilter {
				t.Errorf("Filter = %q, want %q", got.Filter, tt.wantFilter)
			}
			if got.SizeLimit != tt.wantLimit {
				t.Errorf("SizeLimit = %d, want %d", got.SizeLimit, tt.wantLimit)
			}
			if got.TimeLimit != tt.wantTime {
				t.Errorf("TimeLimit = %d, want %d", got.TimeLimit, tt.wantTime)
			}
			if got.DerefAliases != ldap.NeverDerefAliases {
				t.Errorf("DerefAliases = %d, want never", got.DerefAliases)
			}
			if got.Scope != int(tt.req.Scope) {
				t.Errorf("Scope = %d, want %d", got.Scope, tt.req.Scope)
			}

			sortCtrl := ldap.FindControl(got.Controls, ldap.ControlTypeServerSideSorting)
			if (sortCtrl != nil) != tt.wantSort {
				t.Fatalf("sort control = %v, want %v", sortCtrl != nil, tt.wantSort)
			}
			if sortCtrl != nil {
				keys := sortCtrl.(*ldap.ControlServerSideSorting).SortKeys
				if len(keys) != 1 || keys[0].AttributeType != "sn" || !keys[0].Reverse {
					t.Errorf("sort keys = %+v, want sn descending", keys)
				}
			}
		})
	}
}

func TestClient_WithRetry_Logic(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2
	c := newClient(&stubPool{}, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	attempts := 0
	err := c.withRetry(ctx, func() error {
		attempts++
		if attempts < 3 {
			return NewConnectionError("temporary failure", true, nil)
		}
		return nil
	})
	if err != nil {
		t.Errorf("withRetry() should have succeeded after retries, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}

	attempts = 0
	err = c.withRetry(ctx, func() error {
		attempts++
		return NewConnectionError("permanent failure", false, nil)
	})
	if err == nil {
		t.Error("withRetry() should have failed with non-retryable error")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
	}

	attempts = 0
	err = c.withRetry(ctx, func() error {
		attempts++
		return NewConnectionError("still down", true, nil)
	})
	if err == nil || !strings.Contains(err.Error(), "after retries") {
		t.Errorf("withRetry() = %v, want exhausted retries", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestClient_WithRetry_Cancelled(t *testing.T) {
	cfg := testConfig()
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour
	c := newClient(&stubPool{}, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	err := c.withRetry(ctx, func() error {
		cancel()
		return NewConnectionError("temporary failure", true, nil)
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("withRetry() = %v, want context.Canceled", err)
	}
}

func TestClient_IsRetryableError(t *testing.T) {
	c := newClient(&stubPool{}, testConfig())

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"wrapped deadline with network text", NewConnectionError("network", true, context.DeadlineExceeded), false},
		{"retryable connection error", NewConnectionError("dial", true, nil), true},
		{"server busy", ldap.NewError(ldap.LDAPResultBusy, errors.New("busy")), true},
		{"filter error", ldap.NewError(ldap.LDAPResultFilterError, errors.New("bad filter")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_StatsAndClose(t *testing.T) {
	pool := &stubPool{}
	c := newClient(pool, testConfig())

	_, _ = pool.Get(t.Context())
	if got := c.Stats().Created; got != 1 {
		t.Errorf("Stats().Created = %d, want 1", got)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if !pool.closed {
		t.Error("Close() should close the pool")
	}
}

func TestClient_PingError(t *testing.T) {
	c := newClient(&stubPool{err: errors.New("no servers")}, testConfig())

	err := c.Ping(t.Context())
	if err == nil || !strings.Contains(err.Error(), "failed to get connection") {
		t.Errorf("Ping() = %v, want connection error", err)
	}

	if _, err := c.WhoAmI(t.Context()); err == nil {
		t.Error("WhoAmI() should fail without a connection")
	}
}

func TestSearchScope_String(t *testing.T) {
	tests := []struct {
		scope SearchScope
		want  string
		value int
	}{
		{ScopeBaseObject, "base", ldap.ScopeBaseObject},
		{ScopeSingleLevel, "one", ldap.ScopeSingleLevel},
		{ScopeWholeSubtree, "sub", ldap.ScopeWholeSubtree},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if tt.scope.String() != tt.want {
				t.Errorf("String() = %s, want %s", tt.scope.String(), tt.want)
			}
			if int(tt.scope) != tt.value {
				t.Errorf("value = %d, want %d", int(tt.scope), tt.value)
			}
		})
	}
}
