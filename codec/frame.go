// Package codec implements the client<->server wire framing described in
// spec 4.1, including LZ4 compression above a configurable threshold.
// Grounded on byte4fun-pitaya's conn/codec + conn/packet split (referenced
// by agent.go as codec.PacketDecoder/PacketEncoder), generalized here to the
// single contentSize|msgIdLen|msgId|msgSeq|stageId|payload frame this spec
// defines rather than pitaya's own handshake/heartbeat/kick packet types.
package codec

import (
	"encoding/binary"
	"fmt"
)

// Limits per spec 4.1.
const (
	MaxMsgIdLen = 256
)

// Errors returned by Decode/Encode, named exactly as spec 4.1 lists them.
var (
	ErrMsgIdOverflow = fmt.Errorf("codec: msgId exceeds %d bytes", MaxMsgIdLen)
	ErrBodyOverflow  = fmt.Errorf("codec: payload exceeds max body size")
	ErrTruncated     = fmt.Errorf("codec: frame truncated")
)

// ClientFrame is the decoded client->server frame.
type ClientFrame struct {
	MsgId   string
	MsgSeq  uint16
	StageId uint64
	Payload []byte
}

// ServerFrame is the decoded server->client frame.
type ServerFrame struct {
	MsgId        string
	MsgSeq       uint16
	StageId      uint64
	ErrorCode    uint16
	OriginalSize uint32
	Payload      []byte
}

// EncodeClientFrame is a pure function of its input, per spec 4.1's
// "encoding is a pure function of the input" contract.
func EncodeClientFrame(f *ClientFrame, maxBodySize int) ([]byte, error) {
	if len(f.MsgId) > MaxMsgIdLen {
		return nil, ErrMsgIdOverflow
	}
	if maxBodySize > 0 && len(f.Payload) > maxBodySize {
		return nil, ErrBodyOverflow
	}

	body := make([]byte, 0, 1+len(f.MsgId)+2+8+len(f.Payload))
	body = append(body, byte(len(f.MsgId)))
	body = append(body, []byte(f.MsgId)...)
	body = appendU16(body, f.MsgSeq)
	body = appendU64(body, f.StageId)
	body = append(body, f.Payload...)

	out := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], body)
	return out, nil
}

// DecodeClientFrame decodes a single frame from buf, restartable across TCP
// chunks: returns (nil, 0, nil) when buf does not yet hold a full frame so
// the caller can buffer more bytes and retry (spec 4.1, "restartable across
// TCP chunks").
func DecodeClientFrame(buf []byte, maxBodySize int) (*ClientFrame, int, error) {
	if len(buf) < 4 {
		return nil, 0, nil
	}
	contentSize := binary.LittleEndian.Uint32(buf)
	total := 4 + int(contentSize)
	if len(buf) < total {
		return nil, 0, nil
	}

	body := buf[4:total]
	off := 0
	if off+1 > len(body) {
		return nil, 0, ErrTruncated
	}
	msgIdLen := int(body[off])
	off++
	if msgIdLen > MaxMsgIdLen {
		return nil, 0, ErrMsgIdOverflow
	}
	if off+msgIdLen+2+8 > len(body) {
		return nil, 0, ErrTruncated
	}
	msgId := string(body[off : off+msgIdLen])
	off += msgIdLen

	msgSeq := binary.LittleEndian.Uint16(body[off:])
	off += 2
	stageId := binary.LittleEndian.Uint64(body[off:])
	off += 8

	payload := body[off:]
	if maxBodySize > 0 && len(payload) > maxBodySize {
		return nil, 0, ErrBodyOverflow
	}

	return &ClientFrame{MsgId: msgId, MsgSeq: msgSeq, StageId: stageId, Payload: payload}, total, nil
}

// EncodeServerFrame encodes a server->client frame, compressing the payload
// with LZ4 when it exceeds compressionThreshold bytes (spec 4.1).
func EncodeServerFrame(f *ServerFrame, compressionThreshold int) ([]byte, error) {
	payload := f.Payload
	originalSize := uint32(0)

	if compressionThreshold > 0 && len(payload) > compressionThreshold {
		compressed, err := CompressLZ4(payload)
		if err != nil {
			return nil, err
		}
		originalSize = uint32(len(payload))
		payload = compressed
	}

	if len(f.MsgId) > MaxMsgIdLen {
		return nil, ErrMsgIdOverflow
	}

	body := make([]byte, 0, 1+len(f.MsgId)+2+8+2+4+len(payload))
	body = append(body, byte(len(f.MsgId)))
	body = append(body, []byte(f.MsgId)...)
	body = appendU16(body, f.MsgSeq)
	body = appendU64(body, f.StageId)
	body = appendU16(body, f.ErrorCode)
	body = appendU32(body, originalSize)
	body = append(body, payload...)

	out := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], body)
	return out, nil
}

// DecodeServerFrame decodes a single server->client frame, restartable
// across TCP chunks exactly like DecodeClientFrame. Decompresses the
// payload when originalSize != 0.
func DecodeServerFrame(buf []byte, maxBodySize int) (*ServerFrame, int, error) {
	if len(buf) < 4 {
		return nil, 0, nil
	}
	contentSize := binary.LittleEndian.Uint32(buf)
	total := 4 + int(contentSize)
	if len(buf) < total {
		return nil, 0, nil
	}

	body := buf[4:total]
	off := 0
	if off+1 > len(body) {
		return nil, 0, ErrTruncated
	}
	msgIdLen := int(body[off])
	off++
	if msgIdLen > MaxMsgIdLen {
		return nil, 0, ErrMsgIdOverflow
	}
	if off+msgIdLen+2+8+2+4 > len(body) {
		return nil, 0, ErrTruncated
	}
	msgId := string(body[off : off+msgIdLen])
	off += msgIdLen

	msgSeq := binary.LittleEndian.Uint16(body[off:])
	off += 2
	stageId := binary.LittleEndian.Uint64(body[off:])
	off += 8
	errorCode := binary.LittleEndian.Uint16(body[off:])
	off += 2
	originalSize := binary.LittleEndian.Uint32(body[off:])
	off += 4

	payload := body[off:]
	if originalSize != 0 {
		decompressed, err := DecompressLZ4(payload, int(originalSize))
		if err != nil {
			return nil, 0, err
		}
		payload = decompressed
	}
	if maxBodySize > 0 && len(payload) > maxBodySize {
		return nil, 0, ErrBodyOverflow
	}

	return &ServerFrame{
		MsgId:        msgId,
		MsgSeq:       msgSeq,
		StageId:      stageId,
		ErrorCode:    errorCode,
		OriginalSize: originalSize,
		Payload:      payload,
	}, total, nil
}

func appendU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}
