package pubsub

import "p2pstreamd/internal/ring"

// channel is the per-channel subscription state: whether this node's
// own host is locally subscribed, and which remote connections have an
// active (leased) subscription.
type channel struct {
	localSub   bool
	remoteSubs map[ring.Connection]int64 // last_sub_ms per connection
}

func newChannel() *channel {
	return &channel{remoteSubs: make(map[ring.Connection]int64)}
}

// isEmpty reports whether the channel carries no interest at all: no
// local subscriber and no remote one. This is the corrected reading of
// "no interest" — the original either-side check could destroy a
// channel with a live remote subscriber just because the local host
// happened not to be subscribed, or vice versa.
func (c *channel) isEmpty() bool {
	return !c.localSub && len(c.remoteSubs) == 0
}

// setLocalSub records local interest, returning whether this is the
// transition that requires subscribing upstream: the first local_sub
// while the channel has no remote subscribers of its own.
func (c *channel) setLocalSub() (emitSub bool) {
	if c.localSub {
		return false
	}
	c.localSub = true
	return len(c.remoteSubs) == 0
}

// clearLocalSub withdraws local interest, returning whether the
// channel is now fully empty and should unsubscribe upstream.
func (c *channel) clearLocalSub() (emitUnsub bool) {
	if !c.localSub {
		return false
	}
	c.localSub = false
	return len(c.remoteSubs) == 0
}

// remoteSub records or refreshes a subscription from conn, returning
// whether this is the first interest the channel has seen at all
// (neither local nor any other remote), which requires subscribing
// upstream.
func (c *channel) remoteSub(conn ring.Connection, now int64) (emitSub bool) {
	_, existed := c.remoteSubs[conn]
	firstRemote := len(c.remoteSubs) == 0
	c.remoteSubs[conn] = now
	if existed {
		return false
	}
	return firstRemote && !c.localSub
}

// remoteUnsub withdraws conn's subscription, returning whether the
// channel is now fully empty and should unsubscribe upstream.
func (c *channel) remoteUnsub(conn ring.Connection) (emitUnsub bool) {
	if _, ok := c.remoteSubs[conn]; !ok {
		return false
	}
	delete(c.remoteSubs, conn)
	return len(c.remoteSubs) == 0 && !c.localSub
}

// tick drops every remote subscription whose lease has expired.
func (c *channel) tick(now, leaseMs int64) {
	for conn, lastSub := range c.remoteSubs {
		if lastSub <= now-leaseMs {
			delete(c.remoteSubs, conn)
		}
	}
}

func (c *channel) connections() []ring.Connection {
	conns := make([]ring.Connection, 0, len(c.remoteSubs))
	for conn := range c.remoteSubs {
		conns = append(conns, conn)
	}
	return conns
}
