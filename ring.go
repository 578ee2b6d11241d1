// SPDX-License-Identifier: GPL-3.0-or-later

package memshard

import "github.com/serialx/hashring"

// Ring is the consistent-hash data structure mapping keys to currently
// live backends.
//
// The ring is consumed as a black box: distribution, tie-breaks, and
// virtual-node count are delegated to the implementation. The only
// contract is stability: given the same node set, GetNode must be a pure
// function of the key, so that the departure and return of a backend only
// redistributes that backend's share of the keyspace.
//
// Implementations are not required to be safe for concurrent use; the
// [*Client] serializes every ring access under its own lock.
type Ring interface {
	// AddNodes inserts the given node labels into the ring.
	AddNodes(nodes ...string)

	// DelNodes removes the given node labels from the ring.
	DelNodes(nodes ...string)

	// GetNode maps key to one node label. The ok result is false when the
	// ring is empty.
	GetNode(key string) (string, bool)
}

// NewKetamaRing returns the default [Ring], a ketama-style consistent
// hash ring backed by [github.com/serialx/hashring]. Node labels are the
// backend connection strings.
func NewKetamaRing() Ring {
	return &ketamaRing{ring: hashring.New(nil)}
}

// ketamaRing adapts the immutable hashring package to the [Ring]
// interface by swapping the current ring value on every membership change.
type ketamaRing struct {
	ring *hashring.HashRing
}

var _ Ring = &ketamaRing{}

// AddNodes implements [Ring].
func (r *ketamaRing) AddNodes(nodes ...string) {
	for _, node := range nodes {
		r.ring = r.ring.AddNode(node)
	}
}

// DelNodes implements [Ring].
func (r *ketamaRing) DelNodes(nodes ...string) {
	for _, node := range nodes {
		r.ring = r.ring.RemoveNode(node)
	}
}

// GetNode implements [Ring].
func (r *ketamaRing) GetNode(key string) (string, bool) {
	return r.ring.GetNode(key)
}
