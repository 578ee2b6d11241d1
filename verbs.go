// SPDX-License-Identifier: GPL-3.0-or-later

package memshard

import "context"

// The single-key verbs below share one shape: route the key to the live
// backend the ring selects, forward the call to that backend's command
// object under the per-command deadline, and collapse every failure mode
// (no live backend, transport loss, timeout) to the verb's miss sentinel.

// Get retrieves one key. It returns nil when the key is absent, when no
// backend is live, or when the command fails or times out; the caller
// cannot distinguish a miss from a failure, which is the intended
// contract of an advisory cache.
//
// The returned item carries the CAS unique for use with
// [*Client.CheckAndSet].
func (c *Client) Get(ctx context.Context, key string) *Item {
	backend, conn, ok := c.connFor(key)
	if !ok {
		return nil
	}
	return dispatch(c, ctx, backend, conn, nil,
		func(ctx context.Context) (*Item, error) {
			return conn.Get(ctx, key)
		})
}

// Set unconditionally stores value under key. It returns true if the
// backend acknowledged the store.
func (c *Client) Set(ctx context.Context, key string, value []byte, flags uint32, exptime int32) bool {
	return c.storeVerb(ctx, key, func(ctx context.Context, conn Conn) (bool, error) {
		return conn.Set(ctx, key, value, flags, exptime)
	})
}

// Add stores value under key only if the key is absent.
func (c *Client) Add(ctx context.Context, key string, value []byte, flags uint32, exptime int32) bool {
	return c.storeVerb(ctx, key, func(ctx context.Context, conn Conn) (bool, error) {
		return conn.Add(ctx, key, value, flags, exptime)
	})
}

// Replace stores value under key only if the key is present.
func (c *Client) Replace(ctx context.Context, key string, value []byte, flags uint32, exptime int32) bool {
	return c.storeVerb(ctx, key, func(ctx context.Context, conn Conn) (bool, error) {
		return conn.Replace(ctx, key, value, flags, exptime)
	})
}

// Append appends value to the item stored under key.
func (c *Client) Append(ctx context.Context, key string, value []byte, flags uint32, exptime int32) bool {
	return c.storeVerb(ctx, key, func(ctx context.Context, conn Conn) (bool, error) {
		return conn.Append(ctx, key, value, flags, exptime)
	})
}

// Prepend prepends value to the item stored under key.
func (c *Client) Prepend(ctx context.Context, key string, value []byte, flags uint32, exptime int32) bool {
	return c.storeVerb(ctx, key, func(ctx context.Context, conn Conn) (bool, error) {
		return conn.Prepend(ctx, key, value, flags, exptime)
	})
}

// CheckAndSet stores value under key only if the item still carries the
// given CAS unique, obtained from a previous [*Client.Get].
func (c *Client) CheckAndSet(ctx context.Context, key string, casID uint64,
	value []byte, flags uint32, exptime int32) bool {
	return c.storeVerb(ctx, key, func(ctx context.Context, conn Conn) (bool, error) {
		return conn.CheckAndSet(ctx, key, casID, value, flags, exptime)
	})
}

// Delete removes key. It returns true if the backend acknowledged the
// deletion.
func (c *Client) Delete(ctx context.Context, key string) bool {
	return c.storeVerb(ctx, key, func(ctx context.Context, conn Conn) (bool, error) {
		return conn.Delete(ctx, key)
	})
}

// Increment atomically adds delta to the numeric item stored under key
// and returns the new value. The ok result is false when the key does not
// exist, when no backend is live, or when the command fails or times out.
func (c *Client) Increment(ctx context.Context, key string, delta uint64) (uint64, bool) {
	return c.deltaVerb(ctx, key, func(ctx context.Context, conn Conn) (uint64, bool, error) {
		return conn.Increment(ctx, key, delta)
	})
}

// Decrement atomically subtracts delta from the numeric item stored under
// key and returns the new value.
func (c *Client) Decrement(ctx context.Context, key string, delta uint64) (uint64, bool) {
	return c.deltaVerb(ctx, key, func(ctx context.Context, conn Conn) (uint64, bool, error) {
		return conn.Decrement(ctx, key, delta)
	})
}

// storeVerb is the shared dispatch shim for verbs whose success value is
// opaque: the miss sentinel is false.
func (c *Client) storeVerb(ctx context.Context, key string,
	fn func(ctx context.Context, conn Conn) (bool, error)) bool {
	backend, conn, ok := c.connFor(key)
	if !ok {
		return false
	}
	return dispatch(c, ctx, backend, conn, false,
		func(ctx context.Context) (bool, error) {
			return fn(ctx, conn)
		})
}

// deltaVerb is the shared dispatch shim for Increment and Decrement.
func (c *Client) deltaVerb(ctx context.Context, key string,
	fn func(ctx context.Context, conn Conn) (uint64, bool, error)) (uint64, bool) {
	backend, conn, ok := c.connFor(key)
	if !ok {
		return 0, false
	}
	type delta struct {
		value uint64
		ok    bool
	}
	result := dispatch(c, ctx, backend, conn, delta{},
		func(ctx context.Context) (delta, error) {
			value, ok, err := fn(ctx, conn)
			return delta{value: value, ok: ok}, err
		})
	return result.value, result.ok
}
