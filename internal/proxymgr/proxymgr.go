// Package proxymgr rotates engine requests across configured proxies.
// A proxy that keeps failing is benched with exponential backoff and returns
// to rotation once the backoff expires or a health check reaches it.
package proxymgr

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/url"
	"sync"
	"time"

	"vidflow/internal/config"
	"vidflow/internal/errs"
	"vidflow/internal/observability"
)

const (
	// healthCheckTimeout is the timeout for a single proxy dial.
	healthCheckTimeout = 10 * time.Second
	// maxBackoff caps the bench time of a failing proxy.
	maxBackoff = time.Hour
)

type endpoint struct {
	url          string
	failures     int
	lastFailure  time.Time
	benchedUntil time.Time
	lastCheck    time.Time
}

func (e *endpoint) usable(now time.Time) bool {
	return !now.Before(e.benchedUntil)
}

// Stats is a point-in-time view of one proxy.
type Stats struct {
	Failures     int
	LastFailure  time.Time
	BenchedUntil time.Time
	LastCheck    time.Time
}

// Manager manages proxy rotation and health.
type Manager struct {
	log     *slog.Logger
	cfg     config.Proxy
	metrics *observability.Metrics

	mu        sync.Mutex
	endpoints []*endpoint
	byURL     map[string]*endpoint
}

// New creates a proxy manager over cfg.Proxy.Proxies.
func New(log *slog.Logger, cfg *config.Config, metrics *observability.Metrics) *Manager {
	m := &Manager{
		log:     log.With(slog.String("package", "proxymgr")),
		cfg:     cfg.Proxy,
		metrics: metrics,
		byURL:   make(map[string]*endpoint, len(cfg.Proxy.Proxies)),
	}

	for _, proxy := range cfg.Proxy.Proxies {
		if _, dup := m.byURL[proxy]; dup {
			continue
		}

		ep := &endpoint{url: proxy}
		m.endpoints = append(m.endpoints, ep)
		m.byURL[proxy] = ep
	}

	m.metrics.SetProxiesAvailable(len(m.endpoints))

	return m
}

// Len returns the number of configured proxies.
func (m *Manager) Len() int {
	return len(m.endpoints)
}

// Pick returns a random usable proxy.
func (m *Manager) Pick() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	usable := m.usable(time.Now())
	if len(usable) == 0 {
		return "", errs.ErrNoProxiesAvailable
	}

	proxy := usable[rand.IntN(len(usable))]
	m.metrics.RecordProxyRequest(proxy)

	return proxy, nil
}

// Available returns the number of proxies currently in rotation.
func (m *Manager) Available() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.usable(time.Now()))
}

// Report records the outcome of a request made through proxy.
// A nil err clears the failure history.
func (m *Manager) Report(proxy string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ep, ok := m.byURL[proxy]
	if !ok {
		return
	}

	now := time.Now()

	if err == nil {
		ep.failures = 0
		ep.benchedUntil = time.Time{}
		m.metrics.SetProxiesAvailable(len(m.usable(now)))

		return
	}

	ep.failures++
	ep.lastFailure = now
	m.metrics.RecordProxyFailure(proxy)

	if ep.failures < m.cfg.MaxFailures {
		return
	}

	backoff := m.backoff(ep.failures)
	ep.benchedUntil = now.Add(backoff)
	m.metrics.SetProxiesAvailable(len(m.usable(now)))

	m.log.Warn("proxy benched",
		slog.String("proxy", proxy),
		slog.Int("failures", ep.failures),
		slog.Duration("backoff", backoff),
		slog.Any("error", err))
}

// backoff doubles FailureBackoff for every failure past MaxFailures.
func (m *Manager) backoff(failures int) time.Duration {
	backoff := m.cfg.FailureBackoff

	for range failures - max(m.cfg.MaxFailures, 1) {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}

	return min(backoff, maxBackoff)
}

// Stats returns a snapshot of every proxy keyed by URL.
func (m *Manager) Stats() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make(map[string]Stats, len(m.endpoints))
	for _, ep := range m.endpoints {
		stats[ep.url] = Stats{
			Failures:     ep.failures,
			LastFailure:  ep.lastFailure,
			BenchedUntil: ep.benchedUntil,
			LastCheck:    ep.lastCheck,
		}
	}

	return stats
}

// HealthCheck dials the proxy host and reports the outcome.
func (m *Manager) HealthCheck(ctx context.Context, proxy string) error {
	parsed, err := url.Parse(proxy)
	if err != nil {
		return fmt.Errorf("parse proxy url: %w", err)
	}

	dialer := &net.Dialer{Timeout: healthCheckTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", parsed.Host)
	if err == nil {
		conn.Close()
	} else {
		err = fmt.Errorf("dial proxy: %w", err)
	}

	m.mu.Lock()
	if ep, ok := m.byURL[proxy]; ok {
		ep.lastCheck = time.Now()
	}
	m.mu.Unlock()

	m.Report(proxy, err)

	return err
}

// StartHealthChecker checks every proxy on each HealthCheckInterval tick until ctx is done.
func (m *Manager) StartHealthChecker(ctx context.Context) {
	if m.cfg.HealthCheckInterval <= 0 || len(m.endpoints) == 0 {
		return
	}

	m.log.InfoContext(ctx, "proxy health checker started",
		slog.Duration("interval", m.cfg.HealthCheckInterval),
		slog.Int("proxy_count", len(m.endpoints)))

	go func() {
		ticker := time.NewTicker(m.cfg.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkAll(ctx)
			}
		}
	}()
}

func (m *Manager) checkAll(ctx context.Context) {
	for _, ep := range m.endpoints {
		if ctx.Err() != nil {
			return
		}

		if err := m.HealthCheck(ctx, ep.url); err != nil {
			m.log.DebugContext(ctx, "proxy health check failed", slog.String("proxy", ep.url), slog.Any("error", err))
		}
	}

	m.log.DebugContext(ctx, "proxy health check done",
		slog.Int("available", m.Available()), slog.Int("total", len(m.endpoints)))
}

func (m *Manager) usable(now time.Time) []string {
	out := make([]string, 0, len(m.endpoints))

	for _, ep := range m.endpoints {
		if ep.usable(now) {
			out = append(out, ep.url)
		}
	}

	return out
}
