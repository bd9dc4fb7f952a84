package stage

import (
	"context"
	"fmt"

	pcontext "github.com/ulala-x/playhouse/context"
	"github.com/ulala-x/playhouse/route"
)

// Reply synthesizes a reply packet addressed to the current header's
// originator and submits it through sendFn (spec 4.8: "Reply(errorCode,
// packet?) is valid only while a current header is set"). sendFn is
// supplied by the sender package so stage stays free of a transport
// dependency; passing it per-call keeps Stage a pure execution model.
func Reply(ctx context.Context, errorCode uint32, payload []byte, sendFn func(*route.Packet) error) error {
	h, ok := pcontext.HeaderFromContext(ctx)
	if !ok {
		return fmt.Errorf("stage: Reply called without a current header (not inside a dispatch)")
	}
	if h.MsgSeq == 0 {
		return fmt.Errorf("stage: Reply called for a one-way message (msgSeq=0)")
	}

	reply := h.ReplyHeader(errorCode)
	packet := route.New(reply, payload)
	return sendFn(packet)
}
