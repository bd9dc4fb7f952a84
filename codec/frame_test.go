package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFrame_RoundTrip(t *testing.T) {
	f := &ClientFrame{MsgId: "EchoRequest", MsgSeq: 42, StageId: 12345, Payload: []byte("hello")}
	encoded, err := EncodeClientFrame(f, 0)
	require.NoError(t, err)

	decoded, consumed, err := DecodeClientFrame(encoded, 0)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), consumed)
	assert.Equal(t, f.MsgId, decoded.MsgId)
	assert.Equal(t, f.MsgSeq, decoded.MsgSeq)
	assert.Equal(t, f.StageId, decoded.StageId)
	assert.True(t, bytes.Equal(f.Payload, decoded.Payload))
}

func TestClientFrame_RestartableAcrossChunks(t *testing.T) {
	f := &ClientFrame{MsgId: "EchoRequest", MsgSeq: 1, StageId: 1, Payload: []byte("hello world")}
	encoded, err := EncodeClientFrame(f, 0)
	require.NoError(t, err)

	// Feed the frame one byte at a time; decode must return (nil, 0, nil)
	// until the full frame has arrived.
	for i := 1; i < len(encoded); i++ {
		frame, consumed, err := DecodeClientFrame(encoded[:i], 0)
		require.NoError(t, err)
		assert.Nil(t, frame)
		assert.Equal(t, 0, consumed)
	}

	frame, consumed, err := DecodeClientFrame(encoded, 0)
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, len(encoded), consumed)
}

func TestClientFrame_MsgIdOverflow(t *testing.T) {
	f := &ClientFrame{MsgId: string(make([]byte, MaxMsgIdLen+1))}
	_, err := EncodeClientFrame(f, 0)
	assert.ErrorIs(t, err, ErrMsgIdOverflow)
}

func TestClientFrame_BodyOverflow(t *testing.T) {
	f := &ClientFrame{MsgId: "X", Payload: make([]byte, 10)}
	_, err := EncodeClientFrame(f, 5)
	assert.ErrorIs(t, err, ErrBodyOverflow)
}

func TestClientFrame_Truncated(t *testing.T) {
	// A complete frame whose content is too short for the fields after its msgId.
	buf := []byte{2, 0, 0, 0, 1, 'A'}
	_, _, err := DecodeClientFrame(buf, 0)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestServerFrame_RoundTrip_Uncompressed(t *testing.T) {
	f := &ServerFrame{MsgId: "EchoReply", MsgSeq: 42, StageId: 12345, ErrorCode: 0, Payload: []byte("small")}
	encoded, err := EncodeServerFrame(f, 512)
	require.NoError(t, err)

	decoded, consumed, err := DecodeServerFrame(encoded, 0)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), consumed)
	assert.Equal(t, uint32(0), decoded.OriginalSize)
	assert.True(t, bytes.Equal(f.Payload, decoded.Payload))
}

func TestServerFrame_CompressionAboveThreshold(t *testing.T) {
	big := bytes.Repeat([]byte("playhouse-lz4-test-payload-"), 64)
	f := &ServerFrame{MsgId: "Big", MsgSeq: 1, Payload: big}
	encoded, err := EncodeServerFrame(f, 512)
	require.NoError(t, err)

	decoded, _, err := DecodeServerFrame(encoded, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(big)), decoded.OriginalSize)
	assert.True(t, bytes.Equal(big, decoded.Payload))
}

func TestServerFrame_BelowThresholdStoredVerbatim(t *testing.T) {
	small := []byte("tiny")
	f := &ServerFrame{MsgId: "Small", Payload: small}
	encoded, err := EncodeServerFrame(f, 512)
	require.NoError(t, err)

	decoded, _, err := DecodeServerFrame(encoded, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), decoded.OriginalSize)
	assert.Equal(t, small, decoded.Payload)
}
