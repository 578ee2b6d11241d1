// SPDX-License-Identifier: GPL-3.0-or-later

package memshard

import (
	"net"
	"time"
)

const (
	// DefaultRetryDelay is the delay between losing a backend connection
	// and the next connection attempt. It is a fixed delay, not backoff.
	DefaultRetryDelay = 2 * time.Second

	// DefaultCommandTimeout is the deadline applied to each dispatched
	// command. Production deployments typically configure a much smaller
	// value.
	DefaultCommandTimeout = 60 * time.Second
)

// Config holds common configuration for a [*Client].
//
// Pass this to [New] to pre-wire dependencies. All fields have sensible
// defaults set by [NewConfig].
type Config struct {
	// AutoConnect, when true, makes [New] launch one connection attempt
	// per configured backend immediately, without waiting for the caller
	// to invoke [*Client.Connect].
	//
	// Set by [NewConfig] to true.
	AutoConnect bool

	// Clock schedules reconnect delays and command deadlines.
	//
	// Set by [NewConfig] to [SystemClock]. Substitute a fake time
	// implementation in tests to drive time manually.
	Clock Clock

	// CommandTimeout is the per-command deadline. When it fires before
	// the backend replies, the command resolves to its miss sentinel and
	// the transport is aborted.
	//
	// Set by [NewConfig] to [DefaultCommandTimeout].
	CommandTimeout time.Duration

	// Connector opens command channels to backends.
	//
	// Set by [NewConfig] to a [*TextConnector] with default dialer.
	Connector Connector

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] used for connection lifecycle events.
	//
	// Set by [NewConfig] to [DefaultSLogger], which discards all output.
	Logger SLogger

	// NewRing constructs the consistent-hash ring tracking live backends.
	//
	// Set by [NewConfig] to [NewKetamaRing]. Substitute a deterministic
	// ring in tests to control routing.
	NewRing func() Ring

	// RetryDelay is the fixed delay before reconnecting a failed or lost
	// backend.
	//
	// Set by [NewConfig] to [DefaultRetryDelay].
	RetryDelay time.Duration
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	clock := SystemClock
	logger := DefaultSLogger()
	classifier := DefaultErrClassifier
	return &Config{
		AutoConnect:    true,
		Clock:          clock,
		CommandTimeout: DefaultCommandTimeout,
		Connector: &TextConnector{
			Dialer:        &net.Dialer{},
			ErrClassifier: classifier,
			Logger:        logger,
			TimeNow:       clock.Now,
		},
		ErrClassifier: classifier,
		Logger:        logger,
		NewRing:       NewKetamaRing,
		RetryDelay:    DefaultRetryDelay,
	}
}
