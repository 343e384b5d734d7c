// Package health watches whether the backend API host is reachable.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"
)

const (
	DefaultInterval    = 30 * time.Second
	DefaultDialTimeout = 3 * time.Second
)

// DialFunc opens a connection; tests swap in a fake.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Options configures a Monitor.
type Options struct {
	Interval    time.Duration
	DialTimeout time.Duration
	Dial        DialFunc
	OnChange    func(online bool) // fired on the first check and on every transition
	Logger      *slog.Logger
}

// Monitor probes a host:port with a TCP dial.
type Monitor struct {
	addr     string
	interval time.Duration
	timeout  time.Duration
	dial     DialFunc
	onChange func(bool)
	log      *slog.Logger

	mu      sync.Mutex
	checked bool
	online  bool
}

// New creates a Monitor for addr (host:port).
func New(addr string, opts Options) *Monitor {
	m := &Monitor{
		addr:     addr,
		interval: opts.Interval,
		timeout:  opts.DialTimeout,
		dial:     opts.Dial,
		onChange: opts.OnChange,
		log:      opts.Logger,
	}
	if m.interval <= 0 {
		m.interval = DefaultInterval
	}
	if m.timeout <= 0 {
		m.timeout = DefaultDialTimeout
	}
	if m.dial == nil {
		var d net.Dialer
		m.dial = d.DialContext
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

// HostPort extracts the dial address from an http(s) URL, filling in the
// scheme's default port.
func HostPort(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		case "http":
			port = "80"
		default:
			return "", fmt.Errorf("url %q: unsupported scheme %q", rawURL, u.Scheme)
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// Addr returns the probed address.
func (m *Monitor) Addr() string { return m.addr }

// Online reports the last result. It is false before the first check.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Run checks immediately and then every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one probe, records it and fires OnChange if the status moved.
func (m *Monitor) Check(ctx context.Context) bool {
	dctx, cancel := context.WithTimeout(ctx, m.timeout)
	conn, err := m.dial(dctx, "tcp", m.addr)
	cancel()
	online := err == nil
	if conn != nil {
		conn.Close()
	}

	m.mu.Lock()
	changed := !m.checked || online != m.online
	m.checked = true
	m.online = online
	m.mu.Unlock()

	if changed {
		if online {
			m.log.Info("health: backend reachable", "addr", m.addr)
		} else {
			m.log.Warn("health: backend unreachable", "addr", m.addr, "err", err)
		}
		if m.onChange != nil {
			m.onChange(online)
		}
	}
	return online
}
