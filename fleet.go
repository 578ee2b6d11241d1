// SPDX-License-Identifier: GPL-3.0-or-later

package memshard

import (
	"context"
	"sync"
)

// The fleet verbs below address every live backend at once rather than
// routing a key: the verb is issued once per entry of the live-connection
// map, in parallel, and backends that are currently down contribute
// nothing. None of them fail: with no live backend they resolve to an
// empty collection.

// FlushAll invalidates every item on every live backend. It returns one
// acknowledgement per backend that was live at dispatch time, in
// unspecified order.
func (c *Client) FlushAll(ctx context.Context) []bool {
	conns := c.liveConns()
	results := make([]bool, 0, len(conns))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for backend, conn := range conns {
		wg.Add(1)
		go func(backend string, conn Conn) {
			defer wg.Done()
			acked := dispatch(c, ctx, backend, conn, false,
				func(ctx context.Context) (bool, error) {
					return conn.FlushAll(ctx)
				})
			mu.Lock()
			results = append(results, acked)
			mu.Unlock()
		}(backend, conn)
	}
	wg.Wait()
	return results
}

// Stats queries statistics on every live backend, optionally scoped by
// arg (e.g. "items"). The result maps each backend's connection string to
// its statistics; backends that fail or time out are omitted.
func (c *Client) Stats(ctx context.Context, arg string) map[string]map[string]string {
	conns := c.liveConns()
	results := make(map[string]map[string]string, len(conns))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for backend, conn := range conns {
		wg.Add(1)
		go func(backend string, conn Conn) {
			defer wg.Done()
			stats := dispatch(c, ctx, backend, conn, nil,
				func(ctx context.Context) (map[string]string, error) {
					return conn.Stats(ctx, arg)
				})
			if stats == nil {
				return
			}
			mu.Lock()
			results[backend] = stats
			mu.Unlock()
		}(backend, conn)
	}
	wg.Wait()
	return results
}

// Version queries the server version of every live backend. The result
// maps each backend's connection string to its version string; backends
// that fail or time out are omitted.
func (c *Client) Version(ctx context.Context) map[string]string {
	conns := c.liveConns()
	results := make(map[string]string, len(conns))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for backend, conn := range conns {
		wg.Add(1)
		go func(backend string, conn Conn) {
			defer wg.Done()
			version := dispatch(c, ctx, backend, conn, "",
				func(ctx context.Context) (string, error) {
					return conn.Version(ctx)
				})
			if version == "" {
				return
			}
			mu.Lock()
			results[backend] = version
			mu.Unlock()
		}(backend, conn)
	}
	wg.Wait()
	return results
}
