// Package ring defines the identifier-space primitives shared by the
// Chord membership engine, the channel router, and the pubsub overlay:
// the newtyped identifiers that make up the 32-bit ring, and the
// ring-order predicate the Chord engine's ownership and lookup
// decisions are built on top of.
package ring

import "fmt"

// NodeId is a node's position on the 32-bit Chord identifier ring.
// Arithmetic on NodeId wraps modulo 2^32, matching Go's native uint32
// overflow behavior.
type NodeId uint32

// ChannelId names a broadcast channel. Channel identifiers live in the
// same 32-bit space as node identifiers but are never compared against
// them; the two newtypes exist so the compiler catches a NodeId handed
// to a function expecting a ChannelId and vice versa.
type ChannelId uint32

// Connection identifies a transport session to a peer: the peer's
// NodeId (needed by the router to build hop lists and by Chord to
// address replies) paired with a host-assigned Session disambiguator.
// The core never interprets Session beyond equality; it exists so a
// host can represent two successive sessions to the same NodeId (a
// reconnect) as distinct connections.
type Connection struct {
	Remote  NodeId
	Session uint64
}

func (n NodeId) String() string    { return fmt.Sprintf("node:%08x", uint32(n)) }
func (c ChannelId) String() string { return fmt.Sprintf("chan:%08x", uint32(c)) }
func (c Connection) String() string {
	return fmt.Sprintf("conn:%s/%d", c.Remote, c.Session)
}

// IsZero reports whether c is the zero Connection, the core's
// convention for "no established session" (e.g. a NodeInfo learned
// about secondhand, never yet addressed directly).
func (c Connection) IsZero() bool { return c == Connection{} }

// Add returns n + delta, wrapping modulo 2^32.
func (n NodeId) Add(delta uint32) NodeId { return NodeId(uint32(n) + delta) }

// AddPow2 returns n + 2^i, wrapping modulo 2^32. i must be in [0, 32).
func (n NodeId) AddPow2(i int) NodeId { return n.Add(uint32(1) << uint(i)) }

// InRange reports whether key lies in the circular interval bounded by
// lo and hi, with each endpoint's membership controlled independently
// by leftIncl and rightIncl.
//
// An endpoint whose flag is set always contains itself, so with lo == hi
// the interval is the single point lo when either flag is set. Past
// that, two cases:
//   - Non-wrapping (lo <= hi): key must satisfy lo </<= key </<= hi.
//   - Wrapping through 0 (lo > hi): the interval is [lo, MAX] ∪ [0, hi],
//     so key qualifies if it is on either side of the wrap.
//
// This is the single predicate every Chord and in-range decision in
// this package is built from; it must hold for every combination of
// bounds and inclusivity flags, including lo == hi (a single-point or
// empty interval depending on the flags) and full wrap-around.
func InRange(key, lo, hi NodeId, leftIncl, rightIncl bool) bool {
	if (leftIncl && key == lo) || (rightIncl && key == hi) {
		return true
	}
	if lo <= hi {
		left := key > lo
		if leftIncl {
			left = key >= lo
		}
		right := key < hi
		if rightIncl {
			right = key <= hi
		}
		return left && right
	}
	// Wrapping interval: key is "in range" if it is above lo or below hi.
	left := key > lo
	if leftIncl {
		left = key >= lo
	}
	right := key < hi
	if rightIncl {
		right = key <= hi
	}
	return left || right
}

// Between reports whether key lies in the open-left, closed-right
// interval (lo, hi] under ring order. This is the interval Chord uses
// for ownership and successor decisions throughout this repository.
func Between(key, lo, hi NodeId) bool {
	return InRange(key, lo, hi, false, true)
}

// StrictlyBetween reports whether key lies in the fully open interval
// (lo, hi) under ring order.
func StrictlyBetween(key, lo, hi NodeId) bool {
	return InRange(key, lo, hi, false, false)
}
