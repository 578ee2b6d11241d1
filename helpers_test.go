// SPDX-License-Identifier: GPL-3.0-or-later

package memshard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bassosimone/slogstub"
	"github.com/gotd/neo"
)

const (
	// testWait and testTick bound the Eventually-style assertions used
	// for the client's asynchronous state transitions.
	testWait = 5 * time.Second
	testTick = 5 * time.Millisecond
)

// newCapturingLogger returns a logger that captures all log records into the
// returned slice. The caller can inspect the slice after exercising the code
// under test to verify which events were emitted.
func newCapturingLogger() (*slog.Logger, *capturedRecords) {
	records := &capturedRecords{}
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			records.append(record)
			return nil
		},
	}
	return slog.New(handler), records
}

// capturedRecords collects log records under a lock because the client
// emits from multiple goroutines.
type capturedRecords struct {
	mu      sync.Mutex
	records []slog.Record
}

func (cr *capturedRecords) append(record slog.Record) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	cr.records = append(cr.records, record)
}

// count returns how many captured records carry the given message.
func (cr *capturedRecords) count(msg string) int {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	var n int
	for _, record := range cr.records {
		if record.Message == msg {
			n++
		}
	}
	return n
}

// neoClock adapts [*neo.Time] to the [Clock] interface so tests can
// drive retry delays and command deadlines manually.
type neoClock struct {
	*neo.Time
}

func (c neoClock) Timer(d time.Duration) Timer {
	return c.Time.Timer(d)
}

func newTestClock() neoClock {
	return neoClock{Time: neo.NewTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))}
}

// stubConn is a function-recording [Conn] used to observe what the client
// dispatches. Its backing store serves Get and GetMultiple; store-style
// verbs acknowledge with storeOK. When block is non-nil every verb waits
// until it is closed, which lets tests hold commands in flight.
type stubConn struct {
	mu      sync.Mutex
	items   map[string]*Item
	storeOK bool
	block   chan struct{}

	getCalls  [][]string // recorded GetMultiple (and Get) key lists
	setKeys   []string
	delKeys   []string
	flushes   int
	statsArgs []string
	versions  int
	aborts    int
	closes    int

	lostOnce sync.Once
	lost     chan error
}

func newStubConn() *stubConn {
	return &stubConn{
		items:   make(map[string]*Item),
		storeOK: true,
		lost:    make(chan error, 1),
	}
}

// fireLost emits the one-shot loss signal with the given reason.
func (c *stubConn) fireLost(reason error) {
	c.lostOnce.Do(func() { c.lost <- reason })
}

// wait blocks the verb until the test releases it, if configured.
func (c *stubConn) wait() {
	c.mu.Lock()
	block := c.block
	c.mu.Unlock()
	if block != nil {
		<-block
	}
}

func (c *stubConn) Get(ctx context.Context, key string) (*Item, error) {
	items, err := c.GetMultiple(ctx, []string{key})
	if err != nil {
		return nil, err
	}
	return items[key], nil
}

func (c *stubConn) GetMultiple(ctx context.Context, keys []string) (map[string]*Item, error) {
	c.wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls = append(c.getCalls, append([]string(nil), keys...))
	items := make(map[string]*Item)
	for _, key := range keys {
		if item, ok := c.items[key]; ok {
			items[key] = item
		}
	}
	return items, nil
}

func (c *stubConn) storeCall(key string) (bool, error) {
	c.wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setKeys = append(c.setKeys, key)
	return c.storeOK, nil
}

func (c *stubConn) Set(ctx context.Context, key string, value []byte, flags uint32, exptime int32) (bool, error) {
	return c.storeCall(key)
}

func (c *stubConn) Add(ctx context.Context, key string, value []byte, flags uint32, exptime int32) (bool, error) {
	return c.storeCall(key)
}

func (c *stubConn) Replace(ctx context.Context, key string, value []byte, flags uint32, exptime int32) (bool, error) {
	return c.storeCall(key)
}

func (c *stubConn) Append(ctx context.Context, key string, value []byte, flags uint32, exptime int32) (bool, error) {
	return c.storeCall(key)
}

func (c *stubConn) Prepend(ctx context.Context, key string, value []byte, flags uint32, exptime int32) (bool, error) {
	return c.storeCall(key)
}

func (c *stubConn) CheckAndSet(ctx context.Context, key string, casID uint64,
	value []byte, flags uint32, exptime int32) (bool, error) {
	return c.storeCall(key)
}

func (c *stubConn) Increment(ctx context.Context, key string, delta uint64) (uint64, bool, error) {
	c.wait()
	return delta, true, nil
}

func (c *stubConn) Decrement(ctx context.Context, key string, delta uint64) (uint64, bool, error) {
	c.wait()
	return delta, true, nil
}

func (c *stubConn) Delete(ctx context.Context, key string) (bool, error) {
	c.wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delKeys = append(c.delKeys, key)
	return c.storeOK, nil
}

func (c *stubConn) FlushAll(ctx context.Context) (bool, error) {
	c.wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	return true, nil
}

func (c *stubConn) Stats(ctx context.Context, arg string) (map[string]string, error) {
	c.wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statsArgs = append(c.statsArgs, arg)
	return map[string]string{"uptime": "1"}, nil
}

func (c *stubConn) Version(ctx context.Context) (string, error) {
	c.wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions++
	return "1.6.0", nil
}

func (c *stubConn) Abort() {
	c.mu.Lock()
	c.aborts++
	c.mu.Unlock()
	c.fireLost(ErrAborted)
}

func (c *stubConn) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.fireLost(ErrClientClosed)
	return nil
}

func (c *stubConn) Lost() <-chan error {
	return c.lost
}

// abortCount returns how many times Abort ran.
func (c *stubConn) abortCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborts
}

// stubConnector hands out stub connections and records connection
// attempts per backend. Backends listed in fail error out; backends
// listed in release block until the attempt context is done or the test
// pushes a connection into their release channel.
type stubConnector struct {
	mu       sync.Mutex
	attempts map[string]int
	fail     map[string]error
	release  map[string]chan Conn
	conns    map[string][]*stubConn
}

func newStubConnector() *stubConnector {
	return &stubConnector{
		attempts: make(map[string]int),
		fail:     make(map[string]error),
		release:  make(map[string]chan Conn),
		conns:    make(map[string][]*stubConn),
	}
}

func (cc *stubConnector) Connect(ctx context.Context, backend string) (Conn, error) {
	cc.mu.Lock()
	cc.attempts[backend]++
	failure := cc.fail[backend]
	release := cc.release[backend]
	cc.mu.Unlock()
	if failure != nil {
		return nil, failure
	}
	if release != nil {
		select {
		case conn := <-release:
			return conn, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	conn := newStubConn()
	cc.mu.Lock()
	cc.conns[backend] = append(cc.conns[backend], conn)
	cc.mu.Unlock()
	return conn, nil
}

// attemptCount returns how many attempts were made for backend.
func (cc *stubConnector) attemptCount(backend string) int {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.attempts[backend]
}

// lastConn returns the most recently handed out connection for backend.
func (cc *stubConnector) lastConn(backend string) *stubConn {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if len(cc.conns[backend]) == 0 {
		return nil
	}
	return cc.conns[backend][len(cc.conns[backend])-1]
}

// testRing is a deterministic [Ring]: each key goes to its preferred node
// when that node is live, and to the lexicographically smallest live node
// otherwise. Like a consistent-hash ring, a fixed membership yields a
// fixed routing.
type testRing struct {
	mu     sync.Mutex
	prefer map[string]string
	nodes  map[string]bool
}

func newTestRing(prefer map[string]string) *testRing {
	return &testRing{
		prefer: prefer,
		nodes:  make(map[string]bool),
	}
}

func (r *testRing) AddNodes(nodes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, node := range nodes {
		r.nodes[node] = true
	}
}

func (r *testRing) DelNodes(nodes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, node := range nodes {
		delete(r.nodes, node)
	}
}

func (r *testRing) GetNode(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.nodes) == 0 {
		return "", false
	}
	if node, ok := r.prefer[key]; ok && r.nodes[node] {
		return node, true
	}
	var best string
	for node := range r.nodes {
		if best == "" || node < best {
			best = node
		}
	}
	return best, true
}

// liveNodes snapshots the ring membership.
func (r *testRing) liveNodes() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	nodes := make(map[string]bool, len(r.nodes))
	for node := range r.nodes {
		nodes[node] = true
	}
	return nodes
}
