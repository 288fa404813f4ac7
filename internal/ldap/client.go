package ldap

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"golang.org/x/time/rate"
)

// Client runs read-only directory searches over a connection pool.
type Client interface {
	// Connect checks that a connection can be opened and bound.
	Connect(ctx context.Context) error
	// Search starts a streaming search. The stream holds a pooled connection
	// until it is closed.
	Search(ctx context.Context, req *SearchRequest) (*SearchStream, error)
	// GetBaseDN reads defaultNamingContext from the root DSE.
	GetBaseDN(ctx context.Context) (string, error)
	// WhoAmI returns the authorization identity of the bound connection.
	WhoAmI(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
	Stats() PoolStats
	Close() error
}

type client struct {
	pool    ConnectionPool
	config  *ConnectionConfig
	limiter *rate.Limiter
}

// NewClient creates a new LDAP client with connection pooling.
func NewClient(ctx context.Context, config *ConnectionConfig) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	tflog.SubsystemDebug(ctx, Subsystem, "Creating new LDAP client", map[string]any{
		"domain":          config.Domain,
		"ldap_urls_count": len(config.LDAPURLs),
		"auth_method":     config.GetAuthMethod().String(),
		"use_tls":         config.UseTLS,
		"max_connections": config.MaxConnections,
	})

	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		tflog.SubsystemError(ctx, Subsystem, "Failed to create connection pool", map[string]any{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return newClient(pool, config), nil
}

func newClient(pool ConnectionPool, config *ConnectionConfig) *client {
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	return &client{
		pool:    pool,
		config:  config,
		limiter: rate.NewLimiter(limit, max(config.Burst, 1)),
	}
}

func (c *client) Connect(ctx context.Context) error {
	return LogOperation(ctx, Subsystem, "connection_test", map[string]any{
		"domain": c.config.Domain,
	}, func() error {
		conn, err := c.pool.Get(ctx)
		if err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}
		defer conn.Close()

		return c.ping(conn)
	})
}

func (c *client) Close() error {
	return c.pool.Close()
}

func (c *client) Stats() PoolStats {
	return c.pool.Stats()
}

func (c *client) Ping(ctx context.Context) error {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	return c.ping(conn)
}

func (c *client) ping(conn *PooledConnection) error {
	if _, err := conn.Conn().Search(rootDSERequest()); err != nil {
		conn.MarkUnhealthy()
		return NewLDAPError("ping", err)
	}
	return nil
}

// wait blocks until the rate limiter admits another request.
func (c *client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Search opens a stream and reads its first entry, retrying transient
// failures before any entry has been handed out.
func (c *client) Search(ctx context.Context, req *SearchRequest) (*SearchStream, error) {
	if req == nil {
		return nil, fmt.Errorf("search request cannot be nil")
	}

	fields := map[string]any{
		"base_dn":    req.BaseDN,
		"scope":      req.Scope.String(),
		"filter":     req.Filter,
		"attributes": req.Attributes,
		"size_limit": req.SizeLimit,
	}
	if req.Sort != nil {
		fields["sort"] = req.Sort.Attribute
		fields["sort_reverse"] = req.Sort.Reverse
	}

	var stream *SearchStream
	err := c.withRetry(ctx, func() error {
		if err := c.wait(ctx); err != nil {
			return err
		}
		conn, err := c.pool.Get(ctx)
		if err != nil {
			return fmt.Errorf("failed to get connection: %w", err)
		}

		s := c.openStream(ctx, conn, req)
		if err := s.prime(); err != nil {
			s.Close()
			return err
		}
		stream = s
		return nil
	})
	if err != nil {
		LogLDAPError(ctx, Subsystem, "search", err, fields)
		return nil, WrapError("search", err)
	}

	tflog.SubsystemDebug(ctx, Subsystem, "Search started", fields)
	return stream, nil
}

// buildSearchRequest converts req to a go-ldap request carrying the paging
// and sort controls. paging is nil when the search is not paged.
func (c *client) buildSearchRequest(req *SearchRequest) (*ldap.SearchRequest, *ldap.ControlPaging) {
	var controls []ldap.Control
	var paging *ldap.ControlPaging

	pageSize := c.config.PageSize
	if pageSize > 0 && (req.SizeLimit == 0 || req.SizeLimit > int(pageSize)) {
		paging = ldap.NewControlPaging(pageSize)
		controls = append(controls, paging)
	}

	if req.Sort != nil {
		controls = append(controls, ldap.NewControlServerSideSortingWithSortKeys([]*ldap.SortKey{{
			AttributeType: req.Sort.Attribute,
			MatchingRule:  req.Sort.MatchingRule,
			Reverse:       req.Sort.Reverse,
		}}))
	}

	timeLimit := 0
	if req.TimeLimit > 0 {
		timeLimit = int(math.Ceil(req.TimeLimit.Seconds()))
	}

	filter := req.Filter
	if filter == "" {
		filter = "(objectClass=*)"
	}

	return ldap.NewSearchRequest(
		req.BaseDN,
		int(req.Scope),
		ldap.NeverDerefAliases,
		req.SizeLimit,
		timeLimit,
		false,
		filter,
		req.Attributes,
		controls,
	), paging
}

// GetBaseDN reads defaultNamingContext from the root DSE.
func (c *client) GetBaseDN(ctx context.Context) (string, error) {
	stream, err := c.Search(ctx, &SearchRequest{
		Scope:      ScopeBaseObject,
		Filter:     "(objectClass=*)",
		Attributes: []string{"defaultNamingContext"},
		SizeLimit:  1,
		TimeLimit:  5 * time.Second,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get base DN: %w", err)
	}
	defer stream.Close()

	if !stream.Next() {
		if err := stream.Err(); err != nil {
			return "", fmt.Errorf("failed to get base DN: %w", err)
		}
		return "", fmt.Errorf("no root DSE found")
	}

	baseDN := stream.Entry().GetAttributeValue("defaultNamingContext")
	if baseDN == "" {
		return "", fmt.Errorf("no defaultNamingContext found in root DSE")
	}
	return baseDN, nil
}

func (c *client) WhoAmI(ctx context.Context) (string, error) {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	var result *ldap.WhoAmIResult
	err = c.withRetry(ctx, func() error {
		var whoErr error
		result, whoErr = conn.Conn().WhoAmI(nil)
		return whoErr
	})
	if err != nil {
		return "", WrapError("whoami", err)
	}

	// AD answers "u:DOMAIN\user" or "dn:CN=...".
	id := result.AuthzID
	for _, prefix := range []string{"u:", "dn:"} {
		if strings.HasPrefix(id, prefix) {
			return strings.TrimPrefix(id, prefix), nil
		}
	}
	return id, nil
}

// withRetry executes an operation with retry logic.
func (c *client) withRetry(ctx context.Context, operation func() error) error {
	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			tflog.SubsystemDebug(ctx, Subsystem, "Retrying operation", map[string]any{
				"attempt":    attempt,
				"max_retry":  c.config.MaxRetries,
				"backoff_ms": backoff.Milliseconds(),
				"last_error": lastErr.Error(),
			})
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !c.isRetryableError(err) {
			return err
		}

		if attempt == c.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff = min(time.Duration(float64(backoff)*c.config.BackoffFactor), c.config.MaxBackoff)
		}
	}

	tflog.SubsystemError(ctx, Subsystem, "Operation failed after all retries exhausted", map[string]any{
		"total_attempts": c.config.MaxRetries + 1,
		"final_error":    lastErr.Error(),
	})

	return NewConnectionError("operation failed after retries", false, lastErr)
}

// isRetryableError reports whether err is worth another attempt. Context
// cancellation never is.
func (c *client) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return IsRetryableError(err)
}
