package ldap

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// MaxConnectionPoolLimit is the maximum allowed connections in a pool.
const MaxConnectionPoolLimit = 100

// reauthAfter bounds how long a bound connection is reused before binding again.
const reauthAfter = 5 * time.Minute

// ConnectionPool lends authenticated directory connections.
type ConnectionPool interface {
	Get(ctx context.Context) (*PooledConnection, error)
	Close() error
	Stats() PoolStats
}

// PooledConnection is a connection on loan from a pool. Close hands it back.
type PooledConnection struct {
	conn          *ldap.Conn
	lastUsed      time.Time
	healthy       bool
	authenticated bool
	authTime      time.Time
	serverInfo    *ServerInfo
	returnToPool  func(*PooledConnection)
}

// connectionPool implements ConnectionPool.
type connectionPool struct {
	config      *ConnectionConfig
	tlsConfig   *tls.Config
	servers     []*ServerInfo
	connections chan *PooledConnection
	mu          sync.RWMutex
	closed      bool
	discovery   *SRVDiscovery

	// Statistics
	activeConns  int64
	totalCreated int64
	totalErrors  int64
	startTime    time.Time

	healthTicker *time.Ticker
	healthStop   chan struct{}
	healthWg     sync.WaitGroup
}

// NewConnectionPool creates a pool and resolves its servers. No connection is
// opened until the first Get.
func NewConnectionPool(ctx context.Context, config *ConnectionConfig) (ConnectionPool, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	tlsConfig, err := buildTLSConfig(config)
	if err != nil {
		return nil, err
	}

	pool := &connectionPool{
		config:      config,
		tlsConfig:   tlsConfig,
		connections: make(chan *PooledConnection, config.MaxConnections),
		discovery:   NewSRVDiscovery(),
		startTime:   time.Now(),
		healthStop:  make(chan struct{}),
	}

	if err := pool.discoverServers(ctx); err != nil {
		return nil, fmt.Errorf("server discovery failed: %w", err)
	}

	if config.HealthCheck > 0 {
		pool.startHealthChecker(ctx)
	}

	tflog.SubsystemDebug(ctx, Subsystem, "Connection pool created", map[string]any{
		"server_count":    len(pool.servers),
		"max_connections": config.MaxConnections,
	})
	return pool, nil
}

// buildTLSConfig returns the TLS settings shared by LDAPS and StartTLS dials.
func buildTLSConfig(config *ConnectionConfig) (*tls.Config, error) {
	var cfg *tls.Config
	if config.TLSConfig != nil {
		cfg = config.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: config.TLSSkipVerify, //nolint:gosec // explicit opt-in
		}
	}

	if cfg.RootCAs == nil && (config.TLSCACertFile != "" || config.TLSCACert != "") {
		certPool, err := buildCertPool(config.TLSCACertFile, config.TLSCACert)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = certPool
	}

	if config.TLSClientCertFile != "" && config.TLSClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(config.TLSClientCertFile, config.TLSClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cfg.Certificates = append(cfg.Certificates, cert)
	}
	return cfg, nil
}

// buildCertPool extends the system pool with the CA in caFile and PEM content.
func buildCertPool(caFile, caContent string) (*x509.CertPool, error) {
	certPool, err := x509.SystemCertPool()
	if err != nil || certPool == nil {
		certPool = x509.NewCertPool()
	}

	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file %s: %w", caFile, err)
		}
		if !certPool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse CA certificate file %s: invalid PEM format", caFile)
		}
	}

	if caContent != "" {
		if !certPool.AppendCertsFromPEM([]byte(caContent)) {
			return nil, errors.New("failed to parse CA certificate content: invalid PEM format")
		}
	}

	return certPool, nil
}

func (p *connectionPool) discoverServers(ctx context.Context) error {
	var servers []*ServerInfo

	if len(p.config.LDAPURLs) > 0 {
		for _, url := range p.config.LDAPURLs {
			server, err := ParseLDAPURL(url)
			if err != nil {
				return fmt.Errorf("invalid LDAP URL %s: %w", url, err)
			}
			servers = append(servers, server)
		}
	} else {
		dctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()

		discovered, err := p.discovery.DiscoverServers(dctx, p.config.Domain)
		if err != nil {
			return fmt.Errorf("SRV discovery failed: %w", err)
		}
		servers = discovered
	}

	if len(servers) == 0 {
		return errors.New("no servers discovered")
	}

	p.mu.Lock()
	p.servers = servers
	p.mu.Unlock()
	return nil
}

// Get retrieves an idle connection or dials a new one.
func (p *connectionPool) Get(ctx context.Context) (*PooledConnection, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, errors.New("connection pool is closed")
	}
	p.mu.RUnlock()

	select {
	case conn := <-p.connections:
		if p.isConnectionHealthy(conn) {
			if p.config.HasAuthentication() && p.needsReAuthentication(conn) {
				if err := p.authenticateConnection(ctx, conn); err != nil {
					p.closeConnection(conn)
					return p.createConnection(ctx)
				}
			}
			conn.lastUsed = time.Now()
			atomic.AddInt64(&p.activeConns, 1)
			return conn, nil
		}
		p.closeConnection(conn)
	default:
	}

	return p.createConnection(ctx)
}

// createConnection tries every server in order, backing off between rounds.
func (p *connectionPool) createConnection(ctx context.Context) (*PooledConnection, error) {
	var lastErr error
	backoff := p.config.InitialBackoff

	p.mu.RLock()
	servers := p.servers
	p.mu.RUnlock()

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		for _, server := range servers {
			conn, err := p.createSingleConnection(ctx, server)
			if err != nil {
				lastErr = err
				atomic.AddInt64(&p.totalErrors, 1)
				LogConnectionEvent(ctx, "connection_failed", map[string]any{
					"server":  ServerInfoToURL(server),
					"attempt": attempt + 1,
					"error":   err.Error(),
				})
				continue
			}

			atomic.AddInt64(&p.totalCreated, 1)
			atomic.AddInt64(&p.activeConns, 1)
			LogConnectionEvent(ctx, "connection_established", map[string]any{
				"server":      ServerInfoToURL(server),
				"auth_method": p.config.GetAuthMethod().String(),
			})
			return conn, nil
		}

		if attempt < p.config.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff = min(time.Duration(float64(backoff)*p.config.BackoffFactor), p.config.MaxBackoff)
			}
		}
	}

	return nil, NewConnectionError("failed to create connection after retries", true, lastErr)
}

func (p *connectionPool) createSingleConnection(ctx context.Context, server *ServerInfo) (*PooledConnection, error) {
	url := ServerInfoToURL(server)
	tlsConfig := p.tlsConfig.Clone()
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = server.Host
	}

	var conn *ldap.Conn
	var err error

	if server.UseTLS {
		conn, err = ldap.DialURL(url, ldap.DialWithTLSConfig(tlsConfig))
	} else {
		conn, err = ldap.DialURL(url)
		if err == nil && p.config.UseTLS && !p.config.SkipTLS {
			if err = conn.StartTLS(tlsConfig); err != nil {
				conn.Close()
			}
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	conn.SetTimeout(p.config.Timeout)

	pooled := &PooledConnection{
		conn:         conn,
		lastUsed:     time.Now(),
		healthy:      true,
		serverInfo:   server,
		returnToPool: p.returnConnection,
	}

	if p.config.HasAuthentication() {
		if err := p.authenticateConnection(ctx, pooled); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to authenticate connection to %s: %w", url, err)
		}
	}

	return pooled, nil
}

// authenticateConnection binds a connection using the configured method.
func (p *connectionPool) authenticateConnection(ctx context.Context, pooled *PooledConnection) error {
	if pooled == nil || pooled.conn == nil {
		return fmt.Errorf("connection is nil")
	}

	method := p.config.GetAuthMethod()
	var err error

	switch method {
	case AuthMethodSimpleBind:
		err = pooled.conn.Bind(p.config.Username, p.config.Password)
	case AuthMethodKerberos:
		err = performKerberosAuth(ctx, pooled.conn, p.config, pooled.serverInfo)
	case AuthMethodExternal:
		err = pooled.conn.ExternalBind()
	default:
		return fmt.Errorf("unsupported authentication method: %s", method.String())
	}

	if err != nil {
		pooled.authenticated = false
		pooled.authTime = time.Time{}
		LogConnectionEvent(ctx, "authentication_failed", map[string]any{
			"auth_method": method.String(),
			"error":       err.Error(),
		})
		return NewLDAPError("bind", err)
	}

	pooled.authenticated = true
	pooled.authTime = time.Now()
	return nil
}

func (p *connectionPool) needsReAuthentication(conn *PooledConnection) bool {
	if conn == nil || !conn.authenticated {
		return true
	}
	return time.Since(conn.authTime) > reauthAfter
}

// returnConnection keeps a healthy connection for reuse, closing it if the
// pool is closed or full.
func (p *connectionPool) returnConnection(conn *PooledConnection) {
	if conn == nil {
		return
	}

	atomic.AddInt64(&p.activeConns, -1)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || !p.isConnectionHealthy(conn) {
		p.closeConnection(conn)
		return
	}

	conn.lastUsed = time.Now()
	select {
	case p.connections <- conn:
	default:
		p.closeConnection(conn)
	}
}

func (p *connectionPool) isConnectionHealthy(conn *PooledConnection) bool {
	if conn == nil || conn.conn == nil || conn.conn.IsClosing() || p.isStale(conn) {
		return false
	}
	if p.config.HasAuthentication() && !conn.authenticated {
		return false
	}
	return true
}

// isStale reports whether conn was marked unhealthy or sat idle past
// MaxIdleTime.
func (p *connectionPool) isStale(conn *PooledConnection) bool {
	return !conn.IsHealthy() || time.Since(conn.LastUsed()) > p.config.MaxIdleTime
}

func (p *connectionPool) closeConnection(conn *PooledConnection) {
	if conn != nil && conn.conn != nil {
		conn.conn.Close()
		conn.healthy = false
		conn.authenticated = false
		conn.authTime = time.Time{}
	}
}

// Close closes idle connections and stops the health checker. Connections
// on loan are closed as they are returned.
func (p *connectionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.healthTicker != nil {
		close(p.healthStop)
		p.healthWg.Wait()
		p.healthTicker.Stop()
	}

	close(p.connections)
	for conn := range p.connections {
		p.closeConnection(conn)
	}
	return nil
}

// Stats returns pool statistics.
func (p *connectionPool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PoolStats{
		Total:   len(p.connections),
		Active:  atomic.LoadInt64(&p.activeConns),
		Created: atomic.LoadInt64(&p.totalCreated),
		Errors:  atomic.LoadInt64(&p.totalErrors),
		Uptime:  time.Since(p.startTime),
	}
}

func (p *connectionPool) startHealthChecker(ctx context.Context) {
	p.healthTicker = time.NewTicker(p.config.HealthCheck)

	p.healthWg.Go(func() {
		for {
			select {
			case <-p.healthTicker.C:
				p.performHealthCheck(ctx)
			case <-p.healthStop:
				return
			}
		}
	})
}

// performHealthCheck probes up to three idle connections. Stale ones are
// closed without a probe.
func (p *connectionPool) performHealthCheck(ctx context.Context) {
	var toCheck []*PooledConnection

drain:
	for range 3 {
		select {
		case conn := <-p.connections:
			toCheck = append(toCheck, conn)
		default:
			break drain
		}
	}

	for _, conn := range toCheck {
		if p.isStale(conn) || !p.testConnection(ctx, conn) {
			p.closeConnection(conn)
			continue
		}
		select {
		case p.connections <- conn:
		default:
			p.closeConnection(conn)
		}
	}
}

// testConnection reads the root DSE over conn.
func (p *connectionPool) testConnection(ctx context.Context, conn *PooledConnection) bool {
	if conn == nil || conn.conn == nil {
		return false
	}

	if p.config.HasAuthentication() && p.needsReAuthentication(conn) {
		if err := p.authenticateConnection(ctx, conn); err != nil {
			return false
		}
	}

	if _, err := conn.conn.Search(rootDSERequest()); err != nil {
		conn.authenticated = false
		conn.authTime = time.Time{}
		return false
	}
	return true
}

func rootDSERequest() *ldap.SearchRequest {
	return ldap.NewSearchRequest(
		"",
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1, 0, false,
		"(objectClass=*)",
		[]string{"defaultNamingContext", "dnsHostName"},
		nil,
	)
}

// Close hands the connection back to its pool.
func (pc *PooledConnection) Close() {
	if pc.returnToPool != nil {
		pc.returnToPool(pc)
	}
}

// MarkUnhealthy stops the connection from being reused.
func (pc *PooledConnection) MarkUnhealthy() {
	pc.healthy = false
}

func (pc *PooledConnection) Conn() *ldap.Conn {
	return pc.conn
}

func (pc *PooledConnection) ServerInfo() *ServerInfo {
	return pc.serverInfo
}

func (pc *PooledConnection) IsHealthy() bool {
	return pc.healthy
}

func (pc *PooledConnection) LastUsed() time.Time {
	return pc.lastUsed
}
