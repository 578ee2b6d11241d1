// SPDX-License-Identifier: GPL-3.0-or-later

package memshard

import (
	"context"
	"errors"
)

// ErrAborted is the loss reason reported by a [Conn] whose transport was
// torn down via Abort. The connection manager reconnects immediately and
// without logging when it observes this reason, because the abort was
// issued internally after a command deadline rather than by the network.
var ErrAborted = errors.New("memshard: transport aborted")

// ErrClientClosed is the loss reason reported by a [Conn] whose transport
// was shut down gracefully via Close.
var ErrClientClosed = errors.New("memshard: client closed")

// Item is a single cache value together with its metadata.
type Item struct {
	// Flags is the opaque 32-bit value stored alongside the item.
	Flags uint32

	// CasID is the compare-and-swap unique returned by the backend.
	//
	// Pass it to [*Client.CheckAndSet] to perform an atomic update.
	CasID uint64

	// Value is the raw item payload.
	Value []byte
}

// Conn is the per-backend command object: it exposes one method per cache
// protocol verb, each issuing the verb on a single underlying stream.
//
// Implementations must be safe for concurrent use: every in-flight command
// against one backend shares the same Conn, which internally queues
// operations onto one stream and preserves pipelined reply order.
//
// Verb methods distinguish two failure planes. Protocol-level negative
// replies (NOT_STORED, NOT_FOUND, a missing key) are values: a false ok, a
// nil [*Item]. The error return reports a command that did not complete:
// a transport failure, after which the connection is unusable and the Lost
// channel fires, or (without affecting the connection) a key the protocol
// cannot frame or a context that is done before the reply arrives.
//
// The production implementation is [*TextConn]. Tests substitute
// function-backed stubs.
type Conn interface {
	// Get retrieves one key. A nil Item means the key is absent.
	Get(ctx context.Context, key string) (*Item, error)

	// GetMultiple retrieves several keys in one round trip. Absent keys
	// are simply missing from the returned map.
	GetMultiple(ctx context.Context, keys []string) (map[string]*Item, error)

	// Set unconditionally stores value under key.
	Set(ctx context.Context, key string, value []byte, flags uint32, exptime int32) (bool, error)

	// Add stores value only if key is absent.
	Add(ctx context.Context, key string, value []byte, flags uint32, exptime int32) (bool, error)

	// Replace stores value only if key is present.
	Replace(ctx context.Context, key string, value []byte, flags uint32, exptime int32) (bool, error)

	// Append appends value to the existing item.
	Append(ctx context.Context, key string, value []byte, flags uint32, exptime int32) (bool, error)

	// Prepend prepends value to the existing item.
	Prepend(ctx context.Context, key string, value []byte, flags uint32, exptime int32) (bool, error)

	// CheckAndSet stores value only if the item still has the given CAS unique.
	CheckAndSet(ctx context.Context, key string, casID uint64,
		value []byte, flags uint32, exptime int32) (bool, error)

	// Increment adds delta to the numeric item. A false ok means the key
	// does not exist.
	Increment(ctx context.Context, key string, delta uint64) (uint64, bool, error)

	// Decrement subtracts delta from the numeric item.
	Decrement(ctx context.Context, key string, delta uint64) (uint64, bool, error)

	// Delete removes key. A false ok means the key did not exist.
	Delete(ctx context.Context, key string) (bool, error)

	// FlushAll invalidates every item on the backend.
	FlushAll(ctx context.Context) (bool, error)

	// Stats queries backend statistics, optionally scoped by arg.
	Stats(ctx context.Context, arg string) (map[string]string, error)

	// Version returns the backend version string.
	Version(ctx context.Context) (string, error)

	// Abort hard-closes the transport. Pending commands fail and the Lost
	// channel fires with [ErrAborted].
	Abort()

	// Close gracefully shuts down the transport. Pending commands fail and
	// the Lost channel fires with [ErrClientClosed].
	Close() error

	// Lost returns a one-shot channel that delivers the loss reason when
	// the underlying stream closes, whatever the cause.
	Lost() <-chan error
}

// Connector opens one command channel to a backend descriptor.
//
// The returned [Conn] is live and owned by the caller. Failure to connect
// propagates through the error return; the context controls cancellation
// of the attempt.
//
// The production implementation is [*TextConnector].
type Connector interface {
	Connect(ctx context.Context, backend string) (Conn, error)
}
