// SPDX-License-Identifier: GPL-3.0-or-later

package memshard

import (
	"context"
	"log/slog"
)

// dispatch issues one command against conn under the per-command deadline.
//
// The fn callback performs the actual verb call and runs in its own
// goroutine so that the deadline can fire while the command object is
// still waiting for the backend reply.
//
// A command slot is terminal in one transition:
//   - the reply arrives: its value is returned (an fn error, produced when
//     the transport died under the command, degrades to miss);
//   - the deadline fires: the transport is aborted, which resolves every
//     other in-flight command on the same stream and makes the loss
//     watcher reconnect immediately, and miss is returned;
//   - the caller's context is done: miss is returned, the reply is
//     discarded when it arrives.
func dispatch[T any](c *Client, ctx context.Context, backend string, conn Conn,
	miss T, fn func(ctx context.Context) (T, error)) T {
	type outcome struct {
		value T
		err   error
	}
	results := make(chan outcome, 1)
	go func() {
		value, err := fn(ctx)
		results <- outcome{value: value, err: err}
	}()
	timer := c.clock.Timer(c.cmdTimeout)
	defer timer.Stop()
	select {
	case result := <-results:
		if result.err != nil {
			return miss
		}
		return result.value
	case <-timer.C():
		c.logger.Debug(
			"commandTimeout",
			slog.String("backend", backend),
			slog.Duration("timeout", c.cmdTimeout),
			slog.Time("t", c.clock.Now()),
		)
		conn.Abort()
		return miss
	case <-ctx.Done():
		return miss
	}
}
