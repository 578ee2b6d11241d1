// SPDX-License-Identifier: GPL-3.0-or-later

// Package memshard implements a sharded client for memcached-compatible
// key/value caches.
//
// # Core Abstraction
//
// The package is built around the [*Client] type, which presents a single
// logical cache to the application while transparently distributing keys
// across a pool of backends:
//
//   - a connection manager keeps one persistent connection per configured
//     backend, reconnecting lost or failed ones after a fixed delay;
//   - a router maps each key to one currently-connected backend through a
//     consistent-hash [Ring] whose membership tracks live connections, so
//     that the departure and return of a backend only redistributes that
//     backend's share of the keyspace;
//   - a dispatcher fans multi-key operations out to the involved backends
//     in parallel and consolidates the replies.
//
// # Failure Philosophy
//
// The cache is advisory and best-effort. Connection failures are retried,
// connection losses are reconnected, slow commands are timed out, and none
// of it surfaces to callers: every verb resolves to its miss sentinel
// instead of failing. The only synchronous error is [New] rejecting a
// malformed or duplicate backend descriptor.
//
// A command that outlives its deadline additionally aborts its transport.
// The resulting loss is recognized internally (see [ErrAborted]) and the
// backend is reconnected immediately, so one slow or dead backend poisons
// at most the commands in flight on it.
//
// # Collaborators
//
// Three collaborators are consumed through interfaces and injectable via
// [Config]:
//
//   - [Connector]: opens one command channel to a backend descriptor
//     (production: [*TextConnector], dialing TCP and speaking the
//     memcached text protocol through [*TextConn]);
//   - [Ring]: the consistent-hash data structure (production:
//     [NewKetamaRing], backed by github.com/serialx/hashring);
//   - [Clock]: schedules retry delays and command deadlines (production:
//     [SystemClock]; tests drive time manually).
//
// # Observability
//
// All components support structured logging via [SLogger] (compatible
// with [log/slog]).
//
// By default, logging is disabled. Set the Logger field to a custom
// [*slog.Logger] to enable logging. Error classification is configurable
// via [ErrClassifier].
//
// Connection lifecycle events (connectStart, connectDone, connectFailed,
// connectionLost) are emitted at [slog.LevelInfo]; per-command and
// per-I/O events (commandTimeout, read, write) at [slog.LevelDebug].
// Events carry the backend descriptor plus err and errClass where
// applicable, and the connectFailed and connectionLost events carry the
// spanID of their connection attempt (see [NewSpanID]). No connectFailed
// or connectionLost event is emitted while disconnecting, and the
// aborted-by-timeout loss never produces one; the connector's and the
// stream's own events (such as connectDone and close) are still emitted.
//
// # Concurrency Model
//
// All methods of [*Client] are safe for concurrent use. The live
// connection set, the ring, the pending-attempt set, and the
// disconnecting flag mutate under one lock, so every dispatch observes a
// consistent snapshot. Commands against the same backend share one
// [Conn], which pipelines them onto one stream and preserves reply order;
// no ordering holds across backends.
package memshard
