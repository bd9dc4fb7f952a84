package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/nid"
)

func TestHeader_Validate_ReplyRequiresMsgSeq(t *testing.T) {
	h := &Header{IsReply: true, MsgSeq: 0}
	assert.Error(t, h.Validate())

	h.MsgSeq = 1
	assert.NoError(t, h.Validate())
}

func TestHeader_IsPush(t *testing.T) {
	assert.True(t, (&Header{MsgSeq: 0}).IsPush())
	assert.False(t, (&Header{MsgSeq: 1}).IsPush())
}

func TestHeader_ReplyHeader(t *testing.T) {
	origin := nid.New(1, "session-1")
	h := &Header{MsgId: "EchoRequest", MsgSeq: 42, StageId: 12345, From: origin}
	reply := h.ReplyHeader(0)

	require.NotNil(t, reply)
	assert.Equal(t, h.MsgId, reply.MsgId)
	assert.Equal(t, h.MsgSeq, reply.MsgSeq)
	assert.Equal(t, h.StageId, reply.StageId)
	assert.Equal(t, origin, reply.From)
	assert.True(t, reply.IsReply)
	assert.Equal(t, uint32(0), reply.ErrorCode)
}

func TestHeader_ReplyHeader_CarriesErrorCode(t *testing.T) {
	h := &Header{MsgSeq: 7}
	reply := h.ReplyHeader(60005)
	assert.Equal(t, uint32(60005), reply.ErrorCode)
}
