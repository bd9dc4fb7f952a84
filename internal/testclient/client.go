// Package testclient is a minimal TCP client fixture for spec 8's
// end-to-end scenarios, grounded on byte4fun-pitaya's own client-side test
// fixtures (a bare net.Conn driven by the same framing the production
// Agent decodes) rather than any retrieved client SDK — spec 1 scopes a
// real client SDK out as a Non-goal, but the test scenarios still need
// *something* to dial a Session node and speak the wire protocol.
package testclient

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ulala-x/playhouse/codec"
)

// Client dials a Session node's client listener and speaks spec 4.1's
// framing directly, fanning out inbound pushes and replies to callers by
// msgSeq (msgSeq 0 frames are pushes, delivered to Pushes()).
type Client struct {
	conn   net.Conn
	r      *bufio.Reader
	buf    []byte
	maxMsg uint16

	mu      sync.Mutex
	pending map[uint16]chan *codec.ServerFrame
	pushes  chan *codec.ServerFrame
	closed  chan struct{}
	seq     uint32
}

// Dial connects to addr and starts the read loop.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("testclient: dial %s: %w", addr, err)
	}
	c := &Client{
		conn:    conn,
		r:       bufio.NewReader(conn),
		pending: make(map[uint16]chan *codec.ServerFrame),
		pushes:  make(chan *codec.ServerFrame, 64),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// IsConnected reports whether the underlying connection is still open
// (spec 8 scenario 6: "the connection remains open").
func (c *Client) IsConnected() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Pushes returns the channel server pushes (msgSeq == 0 frames) arrive on.
func (c *Client) Pushes() <-chan *codec.ServerFrame {
	return c.pushes
}

// allocSeq wraps the same way correlator.Correlator does (spec 4.5),
// skipping 0 since msgSeq 0 is reserved for pushes.
func (c *Client) allocSeq() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		c.seq++
		seq := uint16(c.seq % 65535)
		if seq != 0 {
			return seq
		}
	}
}

// Request sends a framed request and blocks for its reply or ctx
// cancellation/timeout.
func (c *Client) Request(ctx context.Context, msgId string, stageId uint64, payload []byte) (*codec.ServerFrame, error) {
	seq := c.allocSeq()
	ch := make(chan *codec.ServerFrame, 1)

	c.mu.Lock()
	c.pending[seq] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
	}()

	frame := &codec.ClientFrame{MsgId: msgId, MsgSeq: seq, StageId: stageId, Payload: payload}
	encoded, err := codec.EncodeClientFrame(frame, 0)
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(encoded); err != nil {
		return nil, fmt.Errorf("testclient: write: %w", err)
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send pushes a one-way frame (msgSeq 0), no reply expected.
func (c *Client) Send(msgId string, stageId uint64, payload []byte) error {
	frame := &codec.ClientFrame{MsgId: msgId, MsgSeq: 0, StageId: stageId, Payload: payload}
	encoded, err := codec.EncodeClientFrame(frame, 0)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(encoded)
	return err
}

// RequestWithTimeout is a convenience wrapper around Request for spec 8
// scenario 6 (client-side RequestTimeoutMs).
func (c *Client) RequestWithTimeout(msgId string, stageId uint64, payload []byte, timeout time.Duration) (*codec.ServerFrame, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Request(ctx, msgId, stageId, payload)
}

func (c *Client) readLoop() {
	defer close(c.closed)
	for {
		frame, err := c.readFrame()
		if err != nil {
			return
		}
		if frame.MsgSeq == 0 {
			select {
			case c.pushes <- frame:
			default:
			}
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[frame.MsgSeq]
		c.mu.Unlock()
		if ok {
			ch <- frame
		}
	}
}

func (c *Client) readFrame() (*codec.ServerFrame, error) {
	for {
		frame, consumed, err := codec.DecodeServerFrame(c.buf, 0)
		if err != nil {
			return nil, err
		}
		if frame != nil {
			c.buf = c.buf[consumed:]
			return frame, nil
		}
		chunk := make([]byte, 4096)
		n, err := c.r.Read(chunk)
		if n > 0 {
			c.buf = append(c.buf, chunk[:n]...)
		}
		if err != nil {
			return nil, err
		}
	}
}
