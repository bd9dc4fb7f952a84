// Package route implements the inter-node envelope described in spec 3/4.4:
// the RouteHeader plus the RoutePacket that owns it and its payload.
package route

import "github.com/ulala-x/playhouse/nid"

// Header is the inter-node envelope header (spec 3, "Route header").
//
// Invariants (enforced by Validate, not by the zero value): IsReply implies
// MsgSeq > 0; StageId == 0 means "no stage binding"; Sid == 0 means "not
// session-addressed"; ErrorCode == 0 means success.
type Header struct {
	MsgId       string
	MsgSeq      uint16
	ServiceId   uint16
	ErrorCode   uint32
	StageId     int64
	AccountId   string
	Sid         int64
	From        nid.NID
	PayloadSize uint32

	IsSystem   bool
	IsBase     bool
	IsBackend  bool
	IsToClient bool
	IsReply    bool
}

// Validate checks the invariants spec 3 calls out explicitly.
func (h *Header) Validate() error {
	if h.IsReply && h.MsgSeq == 0 {
		return errInvalidHeader("isReply requires msgSeq > 0")
	}
	return nil
}

type headerError string

func (e headerError) Error() string { return string(e) }

func errInvalidHeader(msg string) error { return headerError("route: " + msg) }

// IsPush reports whether this header represents a one-way push (spec
// glossary: "Push — server-to-client message with msgSeq=0").
func (h *Header) IsPush() bool {
	return h.MsgSeq == 0
}

// ReplyHeader builds the header for a reply to h: same MsgSeq, addressed
// back to the origin, IsReply set, ErrorCode carried from the caller.
func (h *Header) ReplyHeader(errorCode uint32) *Header {
	return &Header{
		MsgId:     h.MsgId,
		MsgSeq:    h.MsgSeq,
		ServiceId: h.ServiceId,
		ErrorCode: errorCode,
		StageId:   h.StageId,
		AccountId: h.AccountId,
		Sid:       h.Sid,
		From:      h.From,
		IsReply:   true,
	}
}
