// SPDX-License-Identifier: GPL-3.0-or-later

package memshard

import (
	"context"
	"sync"
)

// Outcome is the per-key result of [*Client.SetMultiple] and
// [*Client.DeleteMultiple].
type Outcome int

const (
	// OutcomeUnroutable means the key had no live backend at issue time.
	// No sub-command was sent for it; in particular no fallback to an
	// alternate backend is attempted, which would break the at-most-one
	// backend per key routing invariant.
	OutcomeUnroutable Outcome = iota

	// OutcomeFailed means the sub-command was sent but the backend
	// declined it, the transport died under it, or it timed out.
	OutcomeFailed

	// OutcomeOK means the backend acknowledged the sub-command.
	OutcomeOK
)

// String implements [fmt.Stringer].
func (o Outcome) String() string {
	switch o {
	case OutcomeUnroutable:
		return "unroutable"
	case OutcomeFailed:
		return "failed"
	case OutcomeOK:
		return "ok"
	default:
		return "unknown"
	}
}

// bucket is the portion of a multi-key operation that routes to a single
// live backend.
type bucket struct {
	conn Conn
	keys []string
}

// partition buckets keys by the live backend the ring selects, observing
// one consistent snapshot of the ring and of the live-connection map.
// Keys that route nowhere are returned separately.
func (c *Client) partition(keys []string) (map[string]*bucket, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buckets := make(map[string]*bucket)
	var unroutable []string
	for _, key := range keys {
		node, ok := c.ring.GetNode(key)
		if !ok {
			unroutable = append(unroutable, key)
			continue
		}
		b := buckets[node]
		if b == nil {
			b = &bucket{conn: c.conns[node]}
			buckets[node] = b
		}
		b.keys = append(b.keys, key)
	}
	return buckets, unroutable
}

// GetMultiple retrieves several keys in one logical operation. Keys are
// partitioned by backend, one sub-command is issued per backend in
// parallel, and the per-backend result maps are merged. Keys that route
// to no live backend, and keys whose backend fails or times out, are
// simply missing from the result.
//
// The returned map is never nil and maps a subset of keys to their items.
func (c *Client) GetMultiple(ctx context.Context, keys []string) map[string]*Item {
	buckets, _ := c.partition(keys)
	merged := make(map[string]*Item)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for backend, b := range buckets {
		wg.Add(1)
		go func(backend string, b *bucket) {
			defer wg.Done()
			items := dispatch(c, ctx, backend, b.conn, nil,
				func(ctx context.Context) (map[string]*Item, error) {
					return b.conn.GetMultiple(ctx, b.keys)
				})
			mu.Lock()
			for key, item := range items {
				merged[key] = item
			}
			mu.Unlock()
		}(backend, b)
	}
	wg.Wait()
	return merged
}

// SetMultiple stores every entry of items, partitioning keys by backend
// and issuing one store sub-command per key in parallel. The returned map
// has exactly one [Outcome] entry per input key.
func (c *Client) SetMultiple(ctx context.Context, items map[string][]byte,
	flags uint32, exptime int32) map[string]Outcome {
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	return c.eachKey(ctx, keys, func(ctx context.Context, conn Conn, key string) (bool, error) {
		return conn.Set(ctx, key, items[key], flags, exptime)
	})
}

// DeleteMultiple removes every key, partitioning by backend and issuing
// one delete sub-command per key in parallel. The returned map has
// exactly one [Outcome] entry per input key.
func (c *Client) DeleteMultiple(ctx context.Context, keys []string) map[string]Outcome {
	return c.eachKey(ctx, keys, func(ctx context.Context, conn Conn, key string) (bool, error) {
		return conn.Delete(ctx, key)
	})
}

// eachKey is the shared fan-out for multi-key verbs that issue one
// sub-command per key: unroutable keys resolve to [OutcomeUnroutable]
// without issuing anything, the rest run in parallel against their
// backend under the per-command deadline.
func (c *Client) eachKey(ctx context.Context, keys []string,
	fn func(ctx context.Context, conn Conn, key string) (bool, error)) map[string]Outcome {
	buckets, unroutable := c.partition(keys)
	results := make(map[string]Outcome, len(keys))
	for _, key := range unroutable {
		results[key] = OutcomeUnroutable
	}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for backend, b := range buckets {
		for _, key := range b.keys {
			wg.Add(1)
			go func(backend, key string, conn Conn) {
				defer wg.Done()
				acked := dispatch(c, ctx, backend, conn, false,
					func(ctx context.Context) (bool, error) {
						return fn(ctx, conn, key)
					})
				outcome := OutcomeFailed
				if acked {
					outcome = OutcomeOK
				}
				mu.Lock()
				results[key] = outcome
				mu.Unlock()
			}(backend, key, b.conn)
		}
	}
	wg.Wait()
	return results
}
