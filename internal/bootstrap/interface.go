// Package bootstrap resolves the address of an existing ring member a
// freshly started node can join, and (for backends that support it)
// advertises this node's own address for others to discover.
package bootstrap

import "context"

// Bootstrap discovers peer addresses a node can attempt to join
// through, and optionally registers/deregisters this node so later
// joiners can discover it in turn.
type Bootstrap interface {
	// Discover returns known peer addresses in the order the backend
	// reports them; no recency ordering is applied.
	// An empty, non-error result means "no peers known" (first node).
	Discover(ctx context.Context) ([]string, error)
	// Register advertises selfID at selfAddr. No-op for backends that
	// don't support registration (e.g. a static peer list).
	Register(ctx context.Context, selfID string, selfAddr string) error
	// Deregister removes a prior Register. No-op where Register is a
	// no-op.
	Deregister(ctx context.Context, selfID string, selfAddr string) error
}
