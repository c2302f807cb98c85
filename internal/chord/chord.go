package chord

import (
	"p2pstreamd/internal/logger"
	"p2pstreamd/internal/ring"
	"p2pstreamd/internal/wire"
)

// Option configures a Chord at construction time.
type Option func(*Chord)

// WithLogger attaches a structured logger. The zero value logs nothing.
func WithLogger(l logger.Logger) Option {
	return func(c *Chord) { c.logger = l }
}

// Chord is a single node's view of the ring: its own identity, a
// 32-entry finger table, its predecessor, and the bookkeeping needed to
// match asynchronous replies back to the request that caused them.
//
// Every method takes the caller's current time in milliseconds and
// returns without blocking. Protocol messages this node wants to send
// accumulate in an internal queue drained by PopAction.
type Chord struct {
	logger logger.Logger

	self        NodeInfo
	finger      [fingerCount]*NodeInfo
	predecessor *NodeInfo

	reqQueue map[uint32]*requestSlot
	reqSeed  uint32

	fixFingerNext int

	actions []Action

	requestTimeoutMs    int64
	predecessorWarmupMs int64
	pongTimeoutMs       int64
}

// New builds a Chord for self, alone on the ring until Join is called.
// requestTimeoutMs bounds how long an entry may sit in the request
// queue; predecessorWarmupMs and pongTimeoutMs govern when
// CheckPredecessor gives up on an unresponsive predecessor.
func New(self NodeInfo, requestTimeoutMs, predecessorWarmupMs, pongTimeoutMs int64, opts ...Option) *Chord {
	c := &Chord{
		logger:              &logger.NopLogger{},
		self:                self,
		reqQueue:            make(map[uint32]*requestSlot),
		requestTimeoutMs:    requestTimeoutMs,
		predecessorWarmupMs: predecessorWarmupMs,
		pongTimeoutMs:       pongTimeoutMs,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Self returns this node's own identity.
func (c *Chord) Self() NodeInfo { return c.self }

// Successor returns the current finger[0], or nil if none is known yet
// (a freshly constructed node, or one that has not completed Join).
func (c *Chord) Successor() *NodeInfo { return c.finger[0] }

// Predecessor returns the current predecessor, or nil if none is known.
func (c *Chord) Predecessor() *NodeInfo { return c.predecessor }

// Finger returns finger table slot i (0 <= i < 32), or nil if unset.
func (c *Chord) Finger(i int) *NodeInfo { return c.finger[i] }

// successorOrSelf is the ring-order fallback used throughout the
// find_successor algorithm: a node with no known successor is, as far
// as ownership decisions go, its own successor.
func (c *Chord) successorOrSelf() *NodeInfo {
	if c.finger[0] != nil {
		return c.finger[0]
	}
	return c.selfInfo()
}

func (c *Chord) selfInfo() *NodeInfo {
	s := c.self
	return &s
}

func (c *Chord) nextReqId() uint32 {
	c.reqSeed++
	return c.reqSeed
}

func (c *Chord) emitTo(target *NodeInfo, msg wire.Message) {
	c.actions = append(c.actions, Action{
		Conn:    target.Conn,
		Address: target.Address,
		Remote:  target.NodeId,
		Msg:     msg,
	})
}

func (c *Chord) emitOnConn(conn ring.Connection, remote ring.NodeId, msg wire.Message) {
	c.actions = append(c.actions, Action{Conn: conn, Remote: remote, Msg: msg})
}

// PopAction removes and returns the oldest pending outbound action.
func (c *Chord) PopAction() (Action, bool) {
	if len(c.actions) == 0 {
		return Action{}, false
	}
	a := c.actions[0]
	c.actions = c.actions[1:]
	return a, true
}

// Join starts membership by sending a FindSuccessor for this node's own
// id to a node already on the ring, reached over bootstrapConn. Unlike
// every other caller of the find_successor algorithm, Join never
// consults local state first: a node that has not yet joined has
// nothing worth consulting.
func (c *Chord) Join(now int64, bootstrapConn ring.Connection, bootstrapId ring.NodeId) {
	c.predecessor = nil
	reqId := c.nextReqId()
	c.reqQueue[reqId] = &requestSlot{
		kind:       kindSuccessor,
		source:     sourceLocalSuccessor,
		fingerSlot: 0,
		ts:         now,
		key:        c.self.NodeId,
	}
	c.emitOnConn(bootstrapConn, bootstrapId, wire.FindSuccessor{
		ReqId:  reqId,
		Key:    c.self.NodeId,
		Remote: c.self.NodeId,
	})
}

// Leave notifies this node's current predecessor and successor of each
// other before the node stops being driven, splicing the gap
// immediately rather than leaving it to the next stabilization and
// predecessor-check timeout cycle. Best-effort and silent if either
// neighbor is unknown (a node that never finished Join, or has no
// successor/predecessor yet): normal failure detection still converges
// if this hint never arrives.
func (c *Chord) Leave(now int64) {
	succ := c.finger[0]
	pred := c.predecessor
	if succ == nil || pred == nil {
		return
	}
	c.emitTo(succ, wire.Notify{Remote: pred.NodeId, Info: pred.toWire()})
	c.emitTo(pred, wire.Notify{Remote: succ.NodeId, Info: succ.toWire()})
}

// OnEvent applies one inbound Chord protocol message, received over
// conn. Messages of a type this package does not own are ignored.
func (c *Chord) OnEvent(now int64, conn ring.Connection, msg wire.Message) {
	switch m := msg.(type) {
	case wire.FindSuccessor:
		c.handleFindSuccessor(now, conn, m)
	case wire.FoundSuccessor:
		c.handleFoundSuccessor(now, m)
	case wire.FindPredecessor:
		c.handleFindPredecessor(now, conn, m)
	case wire.FoundPredecessor:
		c.handleFoundPredecessor(now, m)
	case wire.Notify:
		c.handleNotify(now, conn, m)
	case wire.PingPredecessor:
		c.handlePingPredecessor(now, conn, m)
	case wire.PongPredecessor:
		c.handlePongPredecessor(now, m)
	}
}

// resolveSuccessor implements steps 1-2 of the find_successor
// algorithm: if key already falls in this node's (self, successor]
// range, the successor itself is the answer. Otherwise it looks for a
// closer node to forward to; if closest_preceding_node can't do better
// than this node itself, the current successor is returned as the
// best available answer rather than forwarding a query to ourselves.
func (c *Chord) resolveSuccessor(key ring.NodeId) (answer *NodeInfo, next *NodeInfo) {
	succ := c.successorOrSelf()
	if ring.Between(key, c.self.NodeId, succ.NodeId) {
		return succ, nil
	}
	cp := c.closestPrecedingNode(key)
	if cp.NodeId == c.self.NodeId {
		return succ, nil
	}
	return nil, cp
}

// closestPrecedingNode scans the finger table from the widest span
// down, returning the highest-indexed finger that strictly precedes
// key without passing it. Falls back to self when no finger qualifies.
func (c *Chord) closestPrecedingNode(key ring.NodeId) *NodeInfo {
	for i := fingerCount - 1; i >= 0; i-- {
		f := c.finger[i]
		if f != nil && ring.StrictlyBetween(f.NodeId, c.self.NodeId, key) {
			return f
		}
	}
	return c.selfInfo()
}

// findSuccessor runs the full algorithm for key on behalf of source,
// either answering immediately (local delivery or reply to the remote
// asker) or forwarding to a closer node and parking a requestSlot to
// match the eventual reply.
func (c *Chord) findSuccessor(now int64, key ring.NodeId, source requestSource, fingerSlot int, remoteConn ring.Connection, remoteReqId uint32, remoteNode ring.NodeId) {
	answer, next := c.resolveSuccessor(key)
	if answer != nil {
		c.completeSuccessor(source, fingerSlot, remoteConn, remoteReqId, remoteNode, answer)
		return
	}
	reqId := c.nextReqId()
	c.reqQueue[reqId] = &requestSlot{
		kind:        kindSuccessor,
		source:      source,
		ts:          now,
		key:         key,
		remoteConn:  remoteConn,
		remoteReqId: remoteReqId,
		remoteNode:  remoteNode,
		fingerSlot:  fingerSlot,
	}
	c.emitTo(next, wire.FindSuccessor{ReqId: reqId, Key: key, Remote: remoteNode})
}

// completeSuccessor delivers an already-resolved answer: into a finger
// slot for a locally sourced request, or back over the wire for a
// forwarded one. A node is never written into its own finger table —
// a lone or freshly joined node leaves its slots nil rather than
// pointing at itself, and successorOrSelf supplies the fallback.
func (c *Chord) completeSuccessor(source requestSource, fingerSlot int, remoteConn ring.Connection, remoteReqId uint32, remoteNode ring.NodeId, answer *NodeInfo) {
	switch source {
	case sourceLocalSuccessor:
		if answer.NodeId == c.self.NodeId {
			return
		}
		c.setFinger(fingerSlot, answer)
	case sourceRemote:
		w := answer.toWire()
		c.emitOnConn(remoteConn, remoteNode, wire.FoundSuccessor{ReqId: remoteReqId, Info: &w, Remote: remoteNode})
	}
}

func (c *Chord) setFinger(i int, info *NodeInfo) {
	cp := *info
	c.finger[i] = &cp
}

func (c *Chord) handleFindSuccessor(now int64, conn ring.Connection, m wire.FindSuccessor) {
	c.findSuccessor(now, m.Key, sourceRemote, 0, conn, m.ReqId, m.Remote)
}

func (c *Chord) handleFoundSuccessor(now int64, m wire.FoundSuccessor) {
	slot, ok := c.reqQueue[m.ReqId]
	if !ok {
		return
	}
	delete(c.reqQueue, m.ReqId)
	if slot.kind != kindSuccessor {
		c.logger.Error("FoundSuccessor against non-successor slot", logger.F("req_id", m.ReqId))
		panic("chord: FoundSuccessor answers a non-successor request slot")
	}

	if m.Info == nil {
		if slot.source == sourceRemote {
			c.emitOnConn(slot.remoteConn, slot.remoteNode, wire.FoundSuccessor{ReqId: slot.remoteReqId, Info: nil, Remote: slot.remoteNode})
		}
		return
	}

	info := nodeInfoFromWire(*m.Info, ring.Connection{})
	c.completeSuccessor(slot.source, slot.fingerSlot, slot.remoteConn, slot.remoteReqId, slot.remoteNode, &info)
}

// handleFindPredecessor answers directly: no forwarding, since every
// node always knows its own predecessor (or lack of one).
func (c *Chord) handleFindPredecessor(now int64, conn ring.Connection, m wire.FindPredecessor) {
	var info *wire.PeerInfo
	if c.predecessor != nil {
		w := c.predecessor.toWire()
		info = &w
	}
	c.emitOnConn(conn, m.Remote, wire.FoundPredecessor{ReqId: m.ReqId, Info: info, Remote: m.Remote})
}

// handleFoundPredecessor is stabilize's reply handler: it updates
// finger[0] if the reported predecessor is a tighter successor than
// what this node already believes, then notifies whoever is now
// believed to be the successor.
func (c *Chord) handleFoundPredecessor(now int64, m wire.FoundPredecessor) {
	slot, ok := c.reqQueue[m.ReqId]
	if !ok {
		return
	}
	delete(c.reqQueue, m.ReqId)
	if slot.kind != kindPredecessor || slot.source != sourceLocalPredecessor {
		c.logger.Error("FoundPredecessor against unexpected slot", logger.F("req_id", m.ReqId))
		panic("chord: FoundPredecessor answers a request slot that is not a local predecessor lookup")
	}

	if m.Info != nil {
		p := nodeInfoFromWire(*m.Info, ring.Connection{})
		succ := c.successorOrSelf()
		if p.NodeId != c.self.NodeId && ring.StrictlyBetween(p.NodeId, c.self.NodeId, succ.NodeId) {
			c.setFinger(0, &p)
		}
	}

	succ := c.successorOrSelf()
	c.emitTo(succ, wire.Notify{Remote: succ.NodeId, Info: c.self.toWire()})
}

// handleNotify is called when a peer believes it might be our
// predecessor: accept it if we have none, or if it is a tighter fit
// than our current predecessor.
func (c *Chord) handleNotify(now int64, conn ring.Connection, m wire.Notify) {
	p := nodeInfoFromWire(m.Info, conn)
	if p.NodeId == c.self.NodeId {
		return
	}
	if c.predecessor == nil {
		c.predecessor = &p
		return
	}
	if ring.StrictlyBetween(p.NodeId, c.predecessor.NodeId, c.self.NodeId) {
		c.predecessor = &p
	}
}

func (c *Chord) handlePingPredecessor(now int64, conn ring.Connection, m wire.PingPredecessor) {
	c.emitOnConn(conn, m.Remote, wire.PongPredecessor{Remote: m.Remote, Ts: m.Ts})
}

func (c *Chord) handlePongPredecessor(now int64, m wire.PongPredecessor) {
	if c.predecessor != nil && c.predecessor.NodeId == m.Remote {
		c.predecessor.LastPong = m.Ts
	}
}

// Stabilize asks the current successor for its predecessor, the first
// half of the classic stabilization round; the second half runs in
// handleFoundPredecessor once the reply arrives.
//
// While this node believes itself to be its own successor (finger[0]
// unset), the textbook "ask successor for its predecessor" step
// degenerates to asking itself, which this package answers locally:
// any known predecessor other than self is adopted as the successor
// outright and notified, without a network round trip. Without this
// case a freshly bootstrapped two-node ring would never converge, since
// (self, self] is an empty interval and neither side would ever accept
// the other as its successor.
func (c *Chord) Stabilize(now int64) {
	succ := c.finger[0]
	if succ == nil {
		if c.predecessor != nil && c.predecessor.NodeId != c.self.NodeId {
			c.setFinger(0, c.predecessor)
			c.emitTo(c.finger[0], wire.Notify{Remote: c.finger[0].NodeId, Info: c.self.toWire()})
		}
		return
	}
	reqId := c.nextReqId()
	c.reqQueue[reqId] = &requestSlot{kind: kindPredecessor, source: sourceLocalPredecessor, ts: now}
	c.emitTo(succ, wire.FindPredecessor{ReqId: reqId, Remote: c.self.NodeId})
}

// FixFingers advances the round-robin cursor and refreshes one finger
// table slot by running find_successor for self.node_id + 2^i.
func (c *Chord) FixFingers(now int64) {
	i := c.fixFingerNext
	c.fixFingerNext = (c.fixFingerNext + 1) % fingerCount
	key := c.self.NodeId.AddPow2(i)
	c.findSuccessor(now, key, sourceLocalSuccessor, i, ring.Connection{}, 0, c.self.NodeId)
}

// CheckPredecessor pings the current predecessor, or drops it if it
// has been silent since before its warmup window and has not answered
// a ping within the pong timeout.
func (c *Chord) CheckPredecessor(now int64) {
	p := c.predecessor
	if p == nil {
		return
	}
	age := now - p.CreatedAt
	silence := now - p.LastPong
	if p.LastPong == 0 {
		silence = age
	}
	if age >= c.predecessorWarmupMs && silence >= c.pongTimeoutMs {
		c.predecessor = nil
		return
	}
	c.emitOnConn(p.Conn, p.NodeId, wire.PingPredecessor{Remote: p.NodeId, Ts: now})
}

// CheckTimeoutRequests drops every request-queue entry older than the
// configured request timeout. A dropped remote-sourced request gets a
// negative FoundSuccessor reply so the asker isn't left hanging;
// locally sourced ones are dropped with no reply and no retry.
// Stabilize and FixFingers issue fresh requests on their own later
// ticks, but a timed-out Join is not reissued.
func (c *Chord) CheckTimeoutRequests(now int64) {
	for id, slot := range c.reqQueue {
		if now-slot.ts < c.requestTimeoutMs {
			continue
		}
		delete(c.reqQueue, id)
		if slot.source == sourceRemote {
			c.emitOnConn(slot.remoteConn, slot.remoteNode, wire.FoundSuccessor{ReqId: slot.remoteReqId, Info: nil, Remote: slot.remoteNode})
		}
	}
}
