package node

import (
	"net"
	"sync/atomic"

	"github.com/ulala-x/playhouse/agent"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/sender"
	"github.com/ulala-x/playhouse/session"
)

// Listener is a Session node's client connector: the bare net.Listen the
// spec scopes the TLS/WebSocket transports out of (spec 1 Non-goals name
// "the TLS/WebSocket transports of the client connector"), but a plain TCP
// acceptor still has to exist for the framing codec (spec 4.1) to have
// something to decode, so this is the minimal connector every Session node
// runs. Grounded on agent.go's own accept-loop role (pitaya's acceptor
// package, not retrieved in the pack slice, but agent.New/Handle/ReadLoop
// already model the per-connection half of it).
type Listener struct {
	self     nid.NID
	sessions *session.Pool
	sdr      *sender.Sender
	bridge   *SessionBridge
	opts     agent.Options

	sidSeq int64

	ln     net.Listener
	closed int32
}

// NewListener builds a Listener; Serve binds the address and accepts
// connections.
func NewListener(self nid.NID, sessions *session.Pool, sdr *sender.Sender, bridge *SessionBridge, opts agent.Options) *Listener {
	return &Listener{self: self, sessions: sessions, sdr: sdr, bridge: bridge, opts: opts}
}

// Serve binds addr and accepts connections until Close is called, handing
// each one to a fresh agent.Agent/session.Session pair.
func (l *Listener) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	l.ln = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			if atomic.LoadInt32(&l.closed) != 0 {
				return nil
			}
			logger.Log.Warnf("node: listener accept failed: %s", err.Error())
			return err
		}
		go l.handle(conn)
	}
}

func (l *Listener) handle(conn net.Conn) {
	sid := atomic.AddInt64(&l.sidSeq, 1)
	ag := agent.New(conn, sid, l.sessions, l.sdr, l.self, l.opts)
	onFrame := l.bridge.OnFrame(ag.Session(), ag)
	go ag.ReadLoop(onFrame)
	ag.Handle()
}

// Close stops accepting new connections. Connections already accepted run
// to completion independently (each owns its own goroutines via Handle).
func (l *Listener) Close() error {
	atomic.StoreInt32(&l.closed, 1)
	if l.ln != nil {
		return l.ln.Close()
	}
	return nil
}
