//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/netxlite/dialer.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/dialer.go
//

package memshard

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/safeconn"
)

// Dialer abstracts the [*net.Dialer] behavior.
//
// By making [*TextConnector] depend on an abstract implementation we
// allow for unit testing and for using alternative dialers.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// NewTextConnector returns a new [*TextConnector].
//
// The cfg argument contains the common configuration for memshard operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewTextConnector(cfg *Config, dialer Dialer, logger SLogger) *TextConnector {
	return &TextConnector{
		Dialer:        dialer,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.Clock.Now,
	}
}

// TextConnector dials a backend descriptor over TCP and wraps the stream
// into a [*TextConn] speaking the memcached text protocol.
//
// Returns either a valid [Conn] or an error, never both.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Connect].
type TextConnector struct {
	// Dialer is the [Dialer] to use.
	//
	// Set by [NewTextConnector] to the user-provided dialer.
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewTextConnector] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewTextConnector] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewTextConnector] from [Config.Clock].
	TimeNow func() time.Time
}

var _ Connector = &TextConnector{}

// Connect implements [Connector]: it dials the backend over TCP and, on
// success, returns a [*TextConn] owning the stream.
func (op *TextConnector) Connect(ctx context.Context, backend string) (Conn, error) {
	t0 := op.TimeNow()
	deadline, _ := ctx.Deadline()
	op.logConnectStart(backend, t0, deadline)
	conn, err := op.Dialer.DialContext(ctx, "tcp", backend)
	op.logConnectDone(backend, t0, deadline, conn, err)
	if err != nil {
		return nil, err
	}
	observed := newObservedConn(conn, op.Logger)
	return NewTextConn(observed), nil
}

func (op *TextConnector) logConnectStart(backend string, t0 time.Time, deadline time.Time) {
	op.Logger.Info(
		"connectStart",
		slog.Time("deadline", deadline),
		slog.String("protocol", "tcp"),
		slog.String("remoteAddr", backend),
		slog.Time("t", t0),
	)
}

func (op *TextConnector) logConnectDone(
	backend string, t0 time.Time, deadline time.Time, conn net.Conn, err error) {
	op.Logger.Info(
		"connectDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", "tcp"),
		slog.String("remoteAddr", backend),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
}
