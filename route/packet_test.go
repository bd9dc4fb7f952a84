package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPacket_New_SetsPayloadSize(t *testing.T) {
	p := New(&Header{}, []byte("hello"))
	assert.Equal(t, uint32(5), p.Header.PayloadSize)
}

func TestPacket_MovePayload_LeavesSentinel(t *testing.T) {
	p := New(&Header{}, []byte("hello"))
	moved := p.MovePayload()

	assert.Equal(t, []byte("hello"), moved)
	assert.Nil(t, p.Payload)
	assert.Equal(t, uint32(0), p.Header.PayloadSize)
}

func TestPacket_Dispose_Idempotent(t *testing.T) {
	p := New(&Header{}, []byte("hello"))
	assert.False(t, p.Disposed())

	p.Dispose()
	assert.True(t, p.Disposed())
	assert.Nil(t, p.Payload)

	// Calling Dispose again must not panic and remains a no-op.
	assert.NotPanics(t, func() { p.Dispose() })
	assert.True(t, p.Disposed())
}

func TestPacket_Clone_IsIndependentCopy(t *testing.T) {
	p := New(&Header{MsgId: "Echo"}, []byte("hello"))
	clone := p.Clone()

	clone.Payload[0] = 'X'
	clone.Header.MsgId = "Changed"

	assert.Equal(t, byte('h'), p.Payload[0])
	assert.Equal(t, "Echo", p.Header.MsgId)
}
