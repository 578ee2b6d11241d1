// SPDX-License-Identifier: GPL-3.0-or-later

package memshard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bassosimone/runtimex"
)

// Client is a sharded cache client: it presents a single logical cache
// over a pool of memcached-compatible backends, distributing keys with
// consistent hashing and keeping one persistent connection per backend.
//
// The client is a best-effort cache: connection failures, connection
// losses, and command timeouts never surface to callers. Every verb
// resolves to its miss sentinel instead (a nil [*Item], a false ok, an
// empty map). The only synchronous failure is [New] rejecting an invalid
// backend list.
//
// Construct via [New]. The zero value is not usable.
//
// All methods are safe for concurrent use.
type Client struct {
	// backends is the configured backend set. Its cardinality never
	// changes over the lifetime of the client.
	backends []string

	// clock, cmdTimeout, connector, errClassifier, logger, and retryDelay
	// are snapshots of the [Config] taken by [New].
	clock         Clock
	cmdTimeout    time.Duration
	connector     Connector
	errClassifier ErrClassifier
	logger        SLogger
	retryDelay    time.Duration

	// mu guards conns, ring, attempts, and disconnecting as one unit, so
	// the dispatcher always observes a consistent snapshot.
	mu sync.Mutex

	// conns is the live-connection map: one entry per connected backend.
	// Its keyset equals the ring node set at all times.
	conns map[string]Conn

	// ring tracks live backends for key routing.
	ring Ring

	// attempts tracks in-flight connection attempts, at most one per
	// backend. Consulted on disconnect to cancel them.
	attempts map[string]*attemptHandle

	// disconnecting suppresses logging and reconnect scheduling once
	// [*Client.Disconnect] runs. [*Client.Connect] clears it on re-entry.
	disconnecting bool
}

// attemptHandle is the cancel-handle of one in-flight connection attempt.
type attemptHandle struct {
	// cancel interrupts the connector.
	cancel context.CancelFunc

	// done is closed when the attempt has either succeeded or failed.
	done chan struct{}
}

// New creates a [*Client] for the given backend descriptors.
//
// Each descriptor is a "host:port" connection string; malformed and
// duplicate descriptors are rejected. An empty list is accepted: every
// verb of such a client resolves to its miss sentinel.
//
// When [Config.AutoConnect] is set, one connection attempt per backend is
// launched immediately. Use [*Client.Connect] to wait for the initial
// attempts to settle.
func New(cfg *Config, backends []string) (*Client, error) {
	if err := checkBackends(backends); err != nil {
		return nil, err
	}
	c := &Client{
		backends:      append([]string(nil), backends...),
		clock:         cfg.Clock,
		cmdTimeout:    cfg.CommandTimeout,
		connector:     cfg.Connector,
		errClassifier: cfg.ErrClassifier,
		logger:        cfg.Logger,
		retryDelay:    cfg.RetryDelay,
		conns:         make(map[string]Conn),
		ring:          cfg.NewRing(),
		attempts:      make(map[string]*attemptHandle),
	}
	if cfg.AutoConnect {
		c.mu.Lock()
		for _, backend := range c.backends {
			c.launchAttemptLocked(backend)
		}
		c.mu.Unlock()
	}
	return c, nil
}

// Connect launches a connection attempt for every backend that is neither
// connected nor already connecting, then waits until every in-flight
// attempt has either succeeded or failed. It never fails: backends that
// could not be reached keep retrying in the background.
//
// Connect clears the disconnecting flag, so it may be used to revive a
// client after [*Client.Disconnect]. The ctx argument only bounds the
// wait, not the attempts themselves.
//
// Returns the client itself to allow chaining.
func (c *Client) Connect(ctx context.Context) *Client {
	c.mu.Lock()
	c.disconnecting = false
	for _, backend := range c.backends {
		if _, ok := c.conns[backend]; ok {
			continue
		}
		if _, ok := c.attempts[backend]; ok {
			continue
		}
		c.launchAttemptLocked(backend)
	}
	waiting := make([]chan struct{}, 0, len(c.attempts))
	for _, handle := range c.attempts {
		waiting = append(waiting, handle.done)
	}
	c.mu.Unlock()
	for _, done := range waiting {
		select {
		case <-done:
		case <-ctx.Done():
			return c
		}
	}
	return c
}

// Disconnect sets the disconnecting flag, cancels every pending
// connection attempt, and closes every live connection. After Disconnect
// the live-connection map drains and no reconnects are scheduled; every
// verb resolves to its miss sentinel. Callers awaiting a command at this
// moment observe the miss sentinel, not an error.
//
// The client may be revived later by calling [*Client.Connect].
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.disconnecting = true
	cancels := make([]context.CancelFunc, 0, len(c.attempts))
	for _, handle := range c.attempts {
		cancels = append(cancels, handle.cancel)
	}
	conns := make([]Conn, 0, len(c.conns))
	for _, conn := range c.conns {
		conns = append(conns, conn)
	}
	c.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	for _, conn := range conns {
		conn.Close()
	}
}

// launchAttemptLocked starts a connection attempt for backend and
// registers its cancel-handle. The caller must hold c.mu and must have
// checked that no attempt for backend is pending.
func (c *Client) launchAttemptLocked(backend string) {
	ctx, cancel := context.WithCancel(context.Background())
	handle := &attemptHandle{cancel: cancel, done: make(chan struct{})}
	c.attempts[backend] = handle
	go c.attempt(ctx, backend, handle)
}

// attempt runs one connection attempt to completion: on success it
// registers the connection in the live map and the ring and starts the
// loss watcher, on failure it schedules a retry unless disconnecting.
func (c *Client) attempt(ctx context.Context, backend string, handle *attemptHandle) {
	defer close(handle.done)
	spanID := NewSpanID()
	conn, err := c.connector.Connect(ctx, backend)
	handle.cancel()
	c.mu.Lock()
	if c.attempts[backend] == handle {
		delete(c.attempts, backend)
	}
	if err != nil {
		if c.disconnecting {
			c.mu.Unlock()
			return
		}
		c.scheduleRetryLocked(backend)
		c.mu.Unlock()
		c.logConnectFailed(backend, spanID, err)
		return
	}
	if c.disconnecting {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conns[backend] = conn
	c.ring.AddNodes(backend)
	c.mu.Unlock()
	go c.watchLoss(backend, spanID, conn)
}

// watchLoss waits for conn's one-shot loss signal and drives the
// backend's slot back towards Connecting.
//
// The aborted-by-timeout reason is internally produced by the dispatcher
// tearing down a transport after a command deadline: it is not a real
// network failure, so it reconnects immediately and is never logged.
func (c *Client) watchLoss(backend, spanID string, conn Conn) {
	reason := <-conn.Lost()
	c.mu.Lock()
	if c.conns[backend] != conn {
		c.mu.Unlock()
		return
	}
	delete(c.conns, backend)
	c.ring.DelNodes(backend)
	if c.disconnecting {
		c.mu.Unlock()
		return
	}
	if errors.Is(reason, ErrAborted) {
		c.reconnectLocked(backend)
		c.mu.Unlock()
		return
	}
	c.scheduleRetryLocked(backend)
	c.mu.Unlock()
	c.logConnectionLost(backend, spanID, reason)
}

// scheduleRetryLocked arranges for a reconnect of backend after the retry
// delay. The delay is the fixed value captured at construction, not
// backoff. The scheduled callback re-checks the disconnecting flag before
// acting, so disconnect does not need to walk the timers. The caller must
// hold c.mu.
func (c *Client) scheduleRetryLocked(backend string) {
	go func() {
		if c.retryDelay > 0 {
			timer := c.clock.Timer(c.retryDelay)
			defer timer.Stop()
			<-timer.C()
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		c.reconnectLocked(backend)
	}()
}

// reconnectLocked launches a new attempt for backend unless disconnecting,
// already connected, or already connecting. The caller must hold c.mu.
func (c *Client) reconnectLocked(backend string) {
	if c.disconnecting {
		return
	}
	if _, ok := c.conns[backend]; ok {
		return
	}
	if _, ok := c.attempts[backend]; ok {
		return
	}
	c.launchAttemptLocked(backend)
}

// connFor routes key to the command object of one live backend.
//
// The ok result is false when no backend is live. Routing is a pure
// function of the current ring membership: for a fixed membership and a
// fixed key, connFor always selects the same backend.
func (c *Client) connFor(key string) (string, Conn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.ring.GetNode(key)
	if !ok {
		return "", nil, false
	}
	conn, ok := c.conns[node]
	runtimex.Assert(ok)
	return node, conn, true
}

// liveConns snapshots the live-connection map for fleet verbs.
func (c *Client) liveConns() map[string]Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	conns := make(map[string]Conn, len(c.conns))
	for backend, conn := range c.conns {
		conns[backend] = conn
	}
	return conns
}

func (c *Client) logConnectFailed(backend, spanID string, err error) {
	c.logger.Info(
		"connectFailed",
		slog.String("backend", backend),
		slog.Any("err", err),
		slog.String("errClass", c.errClassifier.Classify(err)),
		slog.Duration("retryDelay", c.retryDelay),
		slog.String("spanID", spanID),
		slog.Time("t", c.clock.Now()),
	)
}

func (c *Client) logConnectionLost(backend, spanID string, reason error) {
	c.logger.Info(
		"connectionLost",
		slog.String("backend", backend),
		slog.Any("err", reason),
		slog.String("errClass", c.errClassifier.Classify(reason)),
		slog.Duration("retryDelay", c.retryDelay),
		slog.String("spanID", spanID),
		slog.Time("t", c.clock.Now()),
	)
}
