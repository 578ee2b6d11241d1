// SPDX-License-Identifier: GPL-3.0-or-later

package memshard

import (
	"errors"
	"fmt"
	"net"
)

// ErrInvalidBackend is returned by [New] when a backend descriptor is not
// a well-formed "host:port" connection string.
var ErrInvalidBackend = errors.New("memshard: invalid backend descriptor")

// ErrDuplicateBackend is returned by [New] when the same backend
// descriptor appears more than once in the configuration.
var ErrDuplicateBackend = errors.New("memshard: duplicate backend descriptor")

// checkBackends validates the configured backend descriptors.
//
// A descriptor is an opaque "host:port" connection string. It doubles as
// the consistent-hash node label and as the key of the live-connection
// map, so identity is plain string equality and duplicates are rejected.
//
// This is the only synchronous failure surface of the package: once the
// constructor accepts a descriptor list, every later failure collapses to
// a cache miss.
func checkBackends(backends []string) error {
	seen := make(map[string]bool, len(backends))
	for _, backend := range backends {
		host, port, err := net.SplitHostPort(backend)
		if err != nil {
			return fmt.Errorf("%w: %q: %s", ErrInvalidBackend, backend, err)
		}
		if host == "" || port == "" {
			return fmt.Errorf("%w: %q", ErrInvalidBackend, backend)
		}
		if seen[backend] {
			return fmt.Errorf("%w: %q", ErrDuplicateBackend, backend)
		}
		seen[backend] = true
	}
	return nil
}
