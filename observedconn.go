//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/measurexlite/conn.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/conn.go
//

package memshard

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/safeconn"
)

// newObservedConn wraps a [net.Conn] to log I/O operations.
//
// Reads and writes are logged at Debug level, the close at Info level.
// The [*TextConnector] wraps every dialed backend stream this way so that
// wire-level traffic of a given backend can be inspected when debugging.
func newObservedConn(conn net.Conn, logger SLogger) net.Conn {
	return &observedConn{
		closeonce: sync.Once{},
		conn:      conn,
		laddr:     safeconn.LocalAddr(conn),
		logger:    logger,
		raddr:     safeconn.RemoteAddr(conn),
	}
}

// observedConn observes a [net.Conn].
type observedConn struct {
	closeonce sync.Once
	conn      net.Conn
	laddr     string
	logger    SLogger
	raddr     string
}

var _ net.Conn = &observedConn{}

// Close implements [net.Conn].
//
// Subsequent calls return [net.ErrClosed], consistent with Go's standard
// library behavior for closed connections.
func (c *observedConn) Close() (err error) {
	err = net.ErrClosed
	c.closeonce.Do(func() {
		err = c.conn.Close()
		c.logger.Info(
			"close",
			slog.Any("err", err),
			slog.String("localAddr", c.laddr),
			slog.String("remoteAddr", c.raddr),
		)
	})
	return
}

// LocalAddr implements [net.Conn].
func (c *observedConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Read implements [net.Conn].
func (c *observedConn) Read(buf []byte) (int, error) {
	count, err := c.conn.Read(buf)
	c.logger.Debug(
		"read",
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("localAddr", c.laddr),
		slog.String("remoteAddr", c.raddr),
	)
	return count, err
}

// RemoteAddr implements [net.Conn].
func (c *observedConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// SetDeadline implements [net.Conn].
func (c *observedConn) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// SetReadDeadline implements [net.Conn].
func (c *observedConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// SetWriteDeadline implements [net.Conn].
func (c *observedConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

// Write implements [net.Conn].
func (c *observedConn) Write(data []byte) (int, error) {
	count, err := c.conn.Write(data)
	c.logger.Debug(
		"write",
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("localAddr", c.laddr),
		slog.String("remoteAddr", c.raddr),
	)
	return count, err
}
