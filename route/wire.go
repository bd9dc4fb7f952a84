package route

import (
	"encoding/binary"
	"fmt"

	"github.com/ulala-x/playhouse/nid"
)

// Wire encoding of Header (spec 6, "Inter-node wire protocol"): a sequence
// of length-delimited, field-numbered entries so that unknown fields can be
// skipped by a reader running an older/newer version of this package. Each
// entry is: fieldNum:u8 | wireType:u8 | length:u32 | value:bytes. This is a
// hand-rolled TLV rather than generated protobuf code (no protoc available
// in this build), but it follows the same "numbered field + skip unknown"
// discipline the spec calls for.
const (
	wireVarint = iota
	wireBytes
)

const (
	fieldMsgSeq = iota + 1
	fieldServiceId
	fieldMsgId
	fieldErrorCode
	fieldStageId
	fieldAccountId
	fieldSid
	fieldFrom
	fieldIsSystem
	fieldIsBase
	fieldIsBackend
	fieldIsReply
	fieldIsToClient
	fieldPayloadSize
)

// EncodeHeader serializes h into the inter-node wire format.
func EncodeHeader(h *Header) []byte {
	buf := make([]byte, 0, 128)

	buf = appendVarintField(buf, fieldMsgSeq, uint64(h.MsgSeq))
	buf = appendVarintField(buf, fieldServiceId, uint64(h.ServiceId))
	buf = appendBytesField(buf, fieldMsgId, []byte(h.MsgId))
	buf = appendVarintField(buf, fieldErrorCode, uint64(h.ErrorCode))
	buf = appendVarintField(buf, fieldStageId, uint64(h.StageId))
	buf = appendBytesField(buf, fieldAccountId, []byte(h.AccountId))
	buf = appendVarintField(buf, fieldSid, uint64(h.Sid))
	buf = appendBytesField(buf, fieldFrom, []byte(h.From.String()))
	buf = appendVarintField(buf, fieldIsSystem, boolToU64(h.IsSystem))
	buf = appendVarintField(buf, fieldIsBase, boolToU64(h.IsBase))
	buf = appendVarintField(buf, fieldIsBackend, boolToU64(h.IsBackend))
	buf = appendVarintField(buf, fieldIsReply, boolToU64(h.IsReply))
	buf = appendVarintField(buf, fieldIsToClient, boolToU64(h.IsToClient))
	buf = appendVarintField(buf, fieldPayloadSize, uint64(h.PayloadSize))

	return buf
}

// DecodeHeader deserializes the inter-node wire format, silently skipping
// any field number it does not recognize (forward compatibility, spec 6).
func DecodeHeader(b []byte) (*Header, error) {
	h := &Header{}
	off := 0
	for off < len(b) {
		if off+2 > len(b) {
			return nil, fmt.Errorf("route: truncated header at offset %d", off)
		}
		fieldNum := b[off]
		wireType := b[off+1]
		off += 2

		if off+4 > len(b) {
			return nil, fmt.Errorf("route: truncated header length at offset %d", off)
		}
		length := binary.LittleEndian.Uint32(b[off:])
		off += 4
		if off+int(length) > len(b) {
			return nil, fmt.Errorf("route: truncated header value at offset %d", off)
		}
		value := b[off : off+int(length)]
		off += int(length)

		switch fieldNum {
		case fieldMsgSeq:
			h.MsgSeq = uint16(decodeVarint(value))
		case fieldServiceId:
			h.ServiceId = uint16(decodeVarint(value))
		case fieldMsgId:
			h.MsgId = string(value)
		case fieldErrorCode:
			h.ErrorCode = uint32(decodeVarint(value))
		case fieldStageId:
			h.StageId = int64(decodeVarint(value))
		case fieldAccountId:
			h.AccountId = string(value)
		case fieldSid:
			h.Sid = int64(decodeVarint(value))
		case fieldFrom:
			parsed, err := nid.Parse(string(value))
			if err == nil {
				h.From = parsed
			}
		case fieldIsSystem:
			h.IsSystem = decodeVarint(value) != 0
		case fieldIsBase:
			h.IsBase = decodeVarint(value) != 0
		case fieldIsBackend:
			h.IsBackend = decodeVarint(value) != 0
		case fieldIsReply:
			h.IsReply = decodeVarint(value) != 0
		case fieldIsToClient:
			h.IsToClient = decodeVarint(value) != 0
		case fieldPayloadSize:
			h.PayloadSize = uint32(decodeVarint(value))
		default:
			// unknown field: skip, per forward-compatibility contract.
			_ = wireType
		}
	}
	return h, nil
}

func appendVarintField(buf []byte, field byte, v uint64) []byte {
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], v)
	return appendField(buf, field, wireVarint, tmp[:n])
}

func appendBytesField(buf []byte, field byte, v []byte) []byte {
	return appendField(buf, field, wireBytes, v)
}

func appendField(buf []byte, field byte, wireType byte, value []byte) []byte {
	buf = append(buf, field, wireType)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(value)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, value...)
	return buf
}

func decodeVarint(b []byte) uint64 {
	v, _ := binary.Uvarint(b)
	return v
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
