// Package mailbox is the shared-nothing actor spec.md's concurrency
// model calls for: a single goroutine owns a *runner.Runner outright,
// and every other goroutine reaches it only by enqueuing a closure and
// waiting for it to run. The Runner itself stays exactly as built —
// single-threaded, I/O-free — and never needs a lock of its own.
//
// Mailbox also owns the one piece of the system the core deliberately
// knows nothing about: the TCP transport. It turns the Runner's
// abstract Send/Dial outputs into real connections and turns bytes
// read off those connections back into InputEvents.
package mailbox

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"p2pstreamd/internal/chord"
	"p2pstreamd/internal/logger"
	"p2pstreamd/internal/metrics"
	"p2pstreamd/internal/ring"
	"p2pstreamd/internal/router"
	"p2pstreamd/internal/runner"
	"p2pstreamd/internal/telemetry/spantrace"
	"p2pstreamd/internal/wire"
)

// Option configures a Mailbox at construction time.
type Option func(*Mailbox)

// WithLogger attaches a structured logger. The zero value logs nothing.
func WithLogger(l logger.Logger) Option {
	return func(m *Mailbox) { m.logger = l }
}

// WithMetrics attaches a Metrics sink. Ticks, dispatched messages, and
// point-in-time gauges are reported to it from the control goroutine
// as they happen; nil (the default) disables reporting entirely.
func WithMetrics(metrics *metrics.Metrics) Option {
	return func(m *Mailbox) { m.metrics = metrics }
}

// nominalRTTMs is reported to the Router the instant a connection is
// established, since the wire protocol has no round-trip probe message
// of its own to measure one with. It is a deliberate simplification,
// not a substitute for real link measurement: see DESIGN.md.
const nominalRTTMs = 20

// Status is a point-in-time snapshot of a running node, for hostapi's
// Status RPC and cmd/shell's `status` command.
type Status struct {
	Self           ring.NodeId
	Address        string
	Successor      *ring.NodeId
	Predecessor    *ring.NodeId
	LocalChannels  []ring.ChannelId
	RemoteChannels []ring.ChannelId
}

// Mailbox serializes every call into a Runner through a single control
// goroutine started by Run, and drives the host-side TCP transport that
// feeds it.
type Mailbox struct {
	logger       logger.Logger
	metrics      *metrics.Metrics
	r            *runner.Runner
	self         ring.NodeId
	address      string
	tickInterval time.Duration

	cmds  chan func(now int64)
	inbox chan inboundMsg

	mu       sync.Mutex
	session  uint64
	conns    map[uint64]net.Conn
	listener net.Listener

	closing chan struct{}
}

type inboundMsg struct {
	conn ring.Connection
	msg  wire.Message
}

// New builds a Mailbox around a freshly constructed Runner for self.
// Runner's own constructor arguments (the Chord/Pubsub timeouts) are
// threaded straight through.
func New(self chord.NodeInfo, tickInterval time.Duration, requestTimeoutMs, predecessorWarmupMs, pongTimeoutMs, subscribeLeaseMs int64, opts ...Option) *Mailbox {
	m := &Mailbox{
		logger:       &logger.NopLogger{},
		self:         self.NodeId,
		address:      self.Address,
		tickInterval: tickInterval,
		cmds:         make(chan func(now int64)),
		inbox:        make(chan inboundMsg, 64),
		conns:        make(map[uint64]net.Conn),
		closing:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.r = runner.New(self, requestTimeoutMs, predecessorWarmupMs, pongTimeoutMs, subscribeLeaseMs,
		runner.WithLogger(m.logger.Named("runner")))
	return m
}

// Listen opens the node's TCP listening socket and starts accepting
// inbound peer connections in the background. It must be called before
// Run.
func (m *Mailbox) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mailbox: listen %s: %w", addr, err)
	}
	m.listener = lis
	go m.acceptLoop()
	return nil
}

func (m *Mailbox) acceptLoop() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			select {
			case <-m.closing:
				return
			default:
				m.logger.Warn("accept failed", logger.F("err", err.Error()))
				return
			}
		}
		go m.readUnidentified(conn)
	}
}

// readUnidentified reads inbound messages on a freshly accepted
// connection until the first one that carries the sender's NodeId (any
// Chord control message does), at which point the connection is
// registered and handed off to readLoop. A connection whose peer sends
// something else first is dropped: every fresh link into this overlay
// begins with a Chord exchange, whether an explicit Join or the
// ordinary stabilization traffic a continuing peer sends.
func (m *Mailbox) readUnidentified(conn net.Conn) {
	msg, err := wire.Codec{}.Decode(conn)
	if err != nil {
		m.logger.Warn("dropping inbound connection: failed to read first message", logger.F("err", err.Error()))
		conn.Close()
		return
	}
	remote, ok := remoteOf(msg)
	if !ok {
		m.logger.Warn("dropping inbound connection: first message carried no sender identity", logger.F("type", fmt.Sprintf("%T", msg)))
		conn.Close()
		return
	}
	token := m.registerConn(conn, remote)
	m.deliver(token, msg)
	m.readLoop(token, conn)
}

func (m *Mailbox) registerConn(conn net.Conn, remote ring.NodeId) ring.Connection {
	m.mu.Lock()
	m.session++
	session := m.session
	m.conns[session] = conn
	m.mu.Unlock()
	token := ring.Connection{Remote: remote, Session: session}
	m.exec(func(now int64) {
		m.r.OnMsg(now, runner.Stats{Conn: token, Stats: router.ConnectionStats{RTTMs: nominalRTTMs}})
	})
	return token
}

func (m *Mailbox) connOf(token ring.Connection) (net.Conn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[token.Session]
	return c, ok
}

func (m *Mailbox) closeConn(token ring.Connection) {
	m.mu.Lock()
	conn, ok := m.conns[token.Session]
	delete(m.conns, token.Session)
	m.mu.Unlock()
	if ok {
		conn.Close()
	}
}

// forgetFromReader is called by readLoop/readUnidentified, which run
// on their own per-connection goroutine, never the control goroutine:
// reporting the disconnection into the Runner must go through exec.
func (m *Mailbox) forgetFromReader(token ring.Connection) {
	m.closeConn(token)
	m.exec(func(now int64) {
		m.r.OnMsg(now, runner.Disconnected{Conn: token})
	})
}

// forgetFromControl is called by send/dial, which already execute on
// the control goroutine (via dispatchOutputs): it must call into the
// Runner directly. Routing it through exec here would deadlock, since
// exec waits for the very goroutine that would be making the call.
func (m *Mailbox) forgetFromControl(now int64, token ring.Connection) {
	m.closeConn(token)
	m.r.OnMsg(now, runner.Disconnected{Conn: token})
}

// readLoop decodes messages off an already-identified connection and
// feeds them into the inbox until the connection breaks.
func (m *Mailbox) readLoop(token ring.Connection, conn net.Conn) {
	for {
		msg, err := wire.Codec{}.Decode(conn)
		if err != nil {
			m.forgetFromReader(token)
			return
		}
		m.deliver(token, msg)
	}
}

func (m *Mailbox) deliver(token ring.Connection, msg wire.Message) {
	select {
	case m.inbox <- inboundMsg{conn: token, msg: msg}:
	case <-m.closing:
	}
}

func remoteOf(msg wire.Message) (ring.NodeId, bool) {
	switch v := msg.(type) {
	case wire.FindSuccessor:
		return v.Remote, true
	case wire.FoundSuccessor:
		return v.Remote, true
	case wire.FindPredecessor:
		return v.Remote, true
	case wire.FoundPredecessor:
		return v.Remote, true
	case wire.Notify:
		return v.Remote, true
	case wire.PingPredecessor:
		return v.Remote, true
	case wire.PongPredecessor:
		return v.Remote, true
	default:
		return 0, false
	}
}

// Run drives the Mailbox's single control goroutine until ctx is
// canceled: ticking the Runner on tickInterval, dispatching inbound
// messages, and executing commands enqueued by Subscribe/Publish/etc.
// and by the hostapi server. It blocks until ctx is done.
func (m *Mailbox) Run(ctx context.Context) {
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			close(m.closing)
			if m.listener != nil {
				m.listener.Close()
			}
			return
		case <-ticker.C:
			now := nowMs()
			if m.metrics != nil {
				m.metrics.ObserveTick()
			}
			spantrace.Tick(ctx, m.r.OnTick, now)
			m.dispatchOutputs(now)
			m.refreshMetrics()
		case in := <-m.inbox:
			now := nowMs()
			kind := kindOf(in.msg)
			if m.metrics != nil {
				m.metrics.ObserveReceived(kind)
			}
			spantrace.Recv(ctx, kind, func() {
				m.r.OnMsg(now, runner.Recv{Conn: in.conn, Msg: in.msg})
			})
			m.dispatchOutputs(now)
			m.refreshMetrics()
		case cmd := <-m.cmds:
			now := nowMs()
			cmd(now)
			m.dispatchOutputs(now)
		}
	}
}

func nowMs() int64 { return time.Now().UnixMilli() }

func kindOf(v interface{}) string { return fmt.Sprintf("%T", v) }

// refreshMetrics recomputes the point-in-time gauges. Always called
// from the control goroutine, right after a batch of outputs drains.
func (m *Mailbox) refreshMetrics() {
	if m.metrics != nil {
		m.metrics.Refresh(m.r)
	}
}

// exec runs fn on the control goroutine and waits for it to finish.
// Called from any goroutine other than Run's own.
func (m *Mailbox) exec(fn func(now int64)) {
	done := make(chan struct{})
	select {
	case m.cmds <- func(now int64) { fn(now); close(done) }:
	case <-m.closing:
		return
	}
	select {
	case <-done:
	case <-m.closing:
	}
}

// dispatchOutputs drains every pending OutputEvent and turns it into a
// real network write or dial. It always runs on the control goroutine.
func (m *Mailbox) dispatchOutputs(now int64) {
	for {
		o, ok := m.r.PopOutput()
		if !ok {
			return
		}
		switch ev := o.(type) {
		case runner.Send:
			if m.metrics != nil {
				m.metrics.ObserveSent(kindOf(ev.Msg))
			}
			m.send(now, ev.Conn, ev.Msg)
		case runner.Dial:
			if m.metrics != nil {
				m.metrics.ObserveSent(kindOf(ev.Msg))
			}
			m.dial(now, ev.Address, ev.Remote, ev.Msg)
		case runner.ChannelData:
			m.logger.Debug("local channel delivery",
				logger.F("channel", ev.Channel.String()), logger.F("bytes", len(ev.Data)))
		}
	}
}

func (m *Mailbox) send(now int64, token ring.Connection, msg wire.Message) {
	conn, ok := m.connOf(token)
	if !ok {
		m.logger.Warn("Send for unknown connection, dropping", logger.F("conn", token.String()))
		return
	}
	if err := (wire.Codec{}).Encode(conn, msg); err != nil {
		m.logger.Warn("write failed, tearing down connection", logger.F("conn", token.String()), logger.F("err", err.Error()))
		m.forgetFromControl(now, token)
	}
}

// dial opens a fresh outbound connection and delivers msg over it. The
// Runner already tells us who's on the other end, so the new token is
// fully identified from the moment it exists — there is no ambiguity
// window like there is for inbound accepts.
func (m *Mailbox) dial(now int64, address string, remote ring.NodeId, msg wire.Message) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		m.logger.Warn("dial failed", logger.F("address", address), logger.F("err", err.Error()))
		return
	}
	m.mu.Lock()
	m.session++
	session := m.session
	m.conns[session] = conn
	m.mu.Unlock()
	token := ring.Connection{Remote: remote, Session: session}
	m.r.OnMsg(now, runner.Stats{Conn: token, Stats: router.ConnectionStats{RTTMs: nominalRTTMs}})
	if err := (wire.Codec{}).Encode(conn, msg); err != nil {
		m.logger.Warn("write failed on fresh dial", logger.F("address", address), logger.F("err", err.Error()))
		m.forgetFromControl(now, token)
		return
	}
	go m.readLoop(token, conn)
}

// Subscribe records the host's own interest in channel.
func (m *Mailbox) Subscribe(channel ring.ChannelId) {
	m.exec(func(now int64) { m.r.Subscribe(now, channel) })
}

// Unsubscribe withdraws the host's own interest in channel.
func (m *Mailbox) Unsubscribe(channel ring.ChannelId) {
	m.exec(func(now int64) { m.r.Unsubscribe(now, channel) })
}

// Publish relays data on channel to every current subscriber.
func (m *Mailbox) Publish(channel ring.ChannelId, data []byte) {
	m.exec(func(now int64) { m.r.Publish(now, channel, data) })
}

// AddChannel declares channel as locally hosted.
func (m *Mailbox) AddChannel(channel ring.ChannelId) {
	m.exec(func(now int64) { m.r.AddChannel(channel) })
}

// RemoveChannel withdraws local hosting of channel.
func (m *Mailbox) RemoveChannel(channel ring.ChannelId) {
	m.exec(func(now int64) { m.r.RemoveChannel(channel) })
}

// JoinRing dials bootstrapAddr and starts ring membership against the
// node identified by bootstrapId. The dial itself happens off the
// control goroutine (it blocks on the network); only the resulting
// Runner.JoinRing call is serialized through it.
func (m *Mailbox) JoinRing(bootstrapAddr string, bootstrapId ring.NodeId) error {
	conn, err := net.Dial("tcp", bootstrapAddr)
	if err != nil {
		return fmt.Errorf("mailbox: dial bootstrap %s: %w", bootstrapAddr, err)
	}
	m.mu.Lock()
	m.session++
	session := m.session
	m.conns[session] = conn
	m.mu.Unlock()
	token := ring.Connection{Remote: bootstrapId, Session: session}

	m.exec(func(now int64) {
		m.r.OnMsg(now, runner.Stats{Conn: token, Stats: router.ConnectionStats{RTTMs: nominalRTTMs}})
		m.r.JoinRing(now, token, bootstrapId)
	})
	go m.readLoop(token, conn)
	return nil
}

// Status returns a snapshot of the node's current ring and channel
// state.
func (m *Mailbox) Status() Status {
	result := make(chan Status, 1)
	m.exec(func(now int64) {
		result <- m.snapshot()
	})
	select {
	case s := <-result:
		return s
	case <-m.closing:
		return Status{Self: m.self, Address: m.address}
	}
}

func (m *Mailbox) snapshot() Status {
	s := Status{
		Self:           m.self,
		Address:        m.address,
		LocalChannels:  m.r.Router().LocalChannels(),
		RemoteChannels: m.r.Router().RemoteChannels(),
	}
	if succ := m.r.Chord().Successor(); succ != nil {
		id := succ.NodeId
		s.Successor = &id
	}
	if pred := m.r.Chord().Predecessor(); pred != nil {
		id := pred.NodeId
		s.Predecessor = &id
	}
	return s
}
