package transport

import (
	"encoding/binary"
	"fmt"
)

// encodeThreeFrames packs the NID/header/payload triple spec 6 describes as
// "three router frames per logical packet" into one NATS message body
// (NATS has no native multi-frame message, unlike a raw ZeroMQ socket), each
// frame length-prefixed so the boundaries survive the single byte slice.
func encodeThreeFrames(from string, header, payload []byte) []byte {
	fromB := []byte(from)
	out := make([]byte, 0, 12+len(fromB)+len(header)+len(payload))
	out = appendFrame(out, fromB)
	out = appendFrame(out, header)
	out = appendFrame(out, payload)
	return out
}

func decodeThreeFrames(buf []byte) (from string, header, payload []byte, err error) {
	fromB, rest, err := readFrame(buf)
	if err != nil {
		return "", nil, nil, err
	}
	header, rest, err = readFrame(rest)
	if err != nil {
		return "", nil, nil, err
	}
	payload, rest, err = readFrame(rest)
	if err != nil {
		return "", nil, nil, err
	}
	if len(rest) != 0 {
		return "", nil, nil, fmt.Errorf("transport: trailing bytes after three frames")
	}
	return string(fromB), header, payload, nil
}

func appendFrame(buf, frame []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(frame)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, frame...)
}

func readFrame(buf []byte) (frame, rest []byte, err error) {
	if len(buf) < 4 {
		return nil, nil, fmt.Errorf("transport: truncated frame length")
	}
	n := binary.LittleEndian.Uint32(buf)
	if len(buf) < 4+int(n) {
		return nil, nil, fmt.Errorf("transport: truncated frame body")
	}
	return buf[4 : 4+n], buf[4+n:], nil
}
