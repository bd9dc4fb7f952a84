package api

import (
	"context"
	"fmt"

	pcontext "github.com/ulala-x/playhouse/context"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
)

// Reply synthesizes a reply to the packet currently carried in ctx and
// sends it back through sdr, the same sendFn role stage.Reply fills for
// stage handlers (spec 4.9 step 3: handlers reply through the apiSender).
func Reply(ctx context.Context, sdr *sender.Sender, errorCode uint32, payload []byte) error {
	h, ok := pcontext.HeaderFromContext(ctx)
	if !ok {
		return fmt.Errorf("api: Reply called without a current header (not inside a dispatch)")
	}
	if h.MsgSeq == 0 {
		return fmt.Errorf("api: Reply called for a one-way message (msgSeq=0)")
	}
	reply := h.ReplyHeader(errorCode)
	return sdr.ReplySend(route.New(reply, payload))
}
