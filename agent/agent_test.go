package agent

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/clock"
	"github.com/ulala-x/playhouse/codec"
	"github.com/ulala-x/playhouse/correlator"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/registry"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
	"github.com/ulala-x/playhouse/session"
	"github.com/ulala-x/playhouse/transport"
)

type noopTransport struct{}

func (noopTransport) Connect(endpoint string) error    { return nil }
func (noopTransport) Disconnect(endpoint string) error { return nil }
func (noopTransport) Send(target nid.NID, header *route.Header, payload []byte) error {
	return nil
}
func (noopTransport) Receive() (transport.Envelope, error) { return transport.Envelope{}, nil }
func (noopTransport) Shutdown() error                      { return nil }

type noopLocator struct{}

func (noopLocator) LocateStage(stageId int64) (nid.NID, bool) { return nid.NID{}, false }

func newTestAgent(t *testing.T, conn net.Conn, opts Options) (*Agent, *session.Pool) {
	t.Helper()
	pool := session.NewPool()
	sdr := sender.New(
		nid.New(1, "session-1"),
		transport.Transport(noopTransport{}),
		correlator.New(clock.Default, time.Second),
		registry.New(5*time.Second, 60*time.Second, clock.Default),
		pool,
		noopLocator{},
	)
	a := New(conn, 1, pool, sdr, nid.New(1, "session-1"), opts)
	return a, pool
}

func TestNew_RegistersSessionIntoPool(t *testing.T) {
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })

	a, pool := newTestAgent(t, server, Options{MessagesBufferSize: 8})
	t.Cleanup(func() { a.Close() })

	_, ok := pool.BySid(1)
	assert.True(t, ok)
	assert.Equal(t, 1, pool.Count())
}

func TestPush_WritesServerFrameToClient(t *testing.T) {
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })

	a, _ := newTestAgent(t, server, Options{MessagesBufferSize: 8})
	t.Cleanup(func() { a.Close() })

	go a.write()
	require.NoError(t, a.Push(context.Background(), "Echo", []byte("hi")))

	buf := make([]byte, 256)
	client.SetReadDeadline(time.Now().Add(time.Second))
	n, err := client.Read(buf)
	require.NoError(t, err)

	frame, _, err := codec.DecodeServerFrame(buf[:n], 0)
	require.NoError(t, err)
	assert.Equal(t, "Echo", frame.MsgId)
	assert.Equal(t, uint16(0), frame.MsgSeq)
	assert.Equal(t, []byte("hi"), frame.Payload)
}

func TestPushAndRespond_FailOnClosedAgent(t *testing.T) {
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })

	a, _ := newTestAgent(t, server, Options{MessagesBufferSize: 8})
	require.NoError(t, a.Close())

	assert.Error(t, a.Push(context.Background(), "Echo", nil))
	assert.Error(t, a.Respond(context.Background(), 1, 0, nil))
}

func TestClose_SecondCallFailsAndRemovesFromPool(t *testing.T) {
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })

	a, pool := newTestAgent(t, server, Options{MessagesBufferSize: 8})
	require.NoError(t, a.Close())
	assert.Error(t, a.Close(), "double close must fail")

	_, ok := pool.BySid(1)
	assert.False(t, ok)
	assert.Equal(t, 0, pool.Count())
}

func TestReadLoop_DecodesFramesUntilConnectionCloses(t *testing.T) {
	server, client := net.Pipe()
	a, _ := newTestAgent(t, server, Options{MessagesBufferSize: 8})
	t.Cleanup(func() { a.Close() })

	received := make(chan *codec.ClientFrame, 4)
	go a.ReadLoop(func(f *codec.ClientFrame) { received <- f })

	encoded, err := codec.EncodeClientFrame(&codec.ClientFrame{MsgId: "Ping", MsgSeq: 1, StageId: 9}, 0)
	require.NoError(t, err)
	_, err = client.Write(encoded)
	require.NoError(t, err)

	select {
	case f := <-received:
		assert.Equal(t, "Ping", f.MsgId)
		assert.Equal(t, uint64(9), f.StageId)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decoded frame")
	}

	client.Close()
}

func TestHandle_ReturnsWhenCloseIsCalled(t *testing.T) {
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })

	a, _ := newTestAgent(t, server, Options{MessagesBufferSize: 8})

	done := make(chan struct{})
	go func() {
		a.Handle()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, a.Close())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Handle did not return after Close")
	}
}

func TestKick_WritesShuttingDownFrame(t *testing.T) {
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })

	a, _ := newTestAgent(t, server, Options{MessagesBufferSize: 8})
	t.Cleanup(func() { a.Close() })

	go func() {
		assert.NoError(t, a.Kick(context.Background()))
	}()

	buf := make([]byte, 256)
	client.SetReadDeadline(time.Now().Add(time.Second))
	n, err := client.Read(buf)
	require.NoError(t, err)

	frame, _, err := codec.DecodeServerFrame(buf[:n], 0)
	require.NoError(t, err)
	assert.Equal(t, "Kick", frame.MsgId)
}
