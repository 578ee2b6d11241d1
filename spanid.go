// SPDX-License-Identifier: GPL-3.0-or-later

package memshard

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 representing a span.
//
// A span is a sequence of operations that can fail in a single, specific
// way. Here each connection attempt and the connection lifetime it opens
// form one span: the client's connectFailed and connectionLost events
// carry the span ID of the attempt they belong to. Every reconnect starts
// a new span; the connector's and the stream's own events carry no span ID.
//
// The span terminology is borrowed from OTel.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
