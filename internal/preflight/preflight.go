// Package preflight checks that registry hosts resolve and accept
// connections before any work starts.
package preflight

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alevsk/quay-ops/internal/logger"
)

// DefaultPort is dialed when a server names no port
const DefaultPort = "443"

const defaultTimeout = 10 * time.Second

// Stage is the check that failed
type Stage string

const (
	StageDNS Stage = "dns"
	StageTCP Stage = "tcp"
)

// Error reports a host that failed a check
type Error struct {
	Host  string
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("preflight %s check of %s failed: %v", e.Stage, e.Host, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Resolver resolves host names
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Dialer opens connections
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Checker runs the reachability checks
type Checker struct {
	resolver Resolver
	dialer   Dialer
	timeout  time.Duration
}

// Option configures a Checker
type Option func(*Checker)

// WithResolver replaces the DNS resolver
func WithResolver(r Resolver) Option {
	return func(c *Checker) { c.resolver = r }
}

// WithDialer replaces the TCP dialer
func WithDialer(d Dialer) Option {
	return func(c *Checker) { c.dialer = d }
}

// WithTimeout bounds each check
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) { c.timeout = d }
}

// New creates a Checker using the system resolver
func New(opts ...Option) *Checker {
	c := &Checker{
		resolver: net.DefaultResolver,
		dialer:   &net.Dialer{},
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SplitServer returns host and port of a registry server setting, which
// may carry a scheme and a path
func SplitServer(server string) (string, string) {
	server = strings.TrimSpace(server)
	if i := strings.Index(server, "//"); i >= 0 {
		server = server[i+2:]
	}
	server, _, _ = strings.Cut(server, "/")
	if host, port, err := net.SplitHostPort(server); err == nil {
		return host, port
	}
	return server, DefaultPort
}

// Check resolves the server's host and opens a TCP connection to it
func (c *Checker) Check(ctx context.Context, server string) error {
	host, port := SplitServer(server)
	log := logger.Logger().With().Str("host", host).Str("port", port).Logger()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	addrs, err := c.resolver.LookupHost(ctx, host)
	if err != nil {
		log.Error().Err(err).Msg("host does not resolve")
		return &Error{Host: host, Stage: StageDNS, Err: err}
	}
	log.Debug().Strs("addresses", addrs).Msg("host resolved")

	conn, err := c.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		log.Error().Err(err).Msg("host is not reachable")
		return &Error{Host: host, Stage: StageTCP, Err: err}
	}
	_ = conn.Close()

	log.Info().Msg("host is reachable")
	return nil
}

// CheckAll checks every server concurrently and returns the first failure
func (c *Checker) CheckAll(ctx context.Context, servers ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, server := range servers {
		g.Go(func() error {
			return c.Check(ctx, server)
		})
	}
	return g.Wait()
}
