package api

import (
	"context"

	pcontext "github.com/ulala-x/playhouse/context"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
)

// Dispatcher drains inbound packets addressed to this Api node and routes
// them through the handler registry (spec 4.9, spec 2 item 10).
type Dispatcher struct {
	register *Register
	sender   *sender.Sender
}

// NewDispatcher builds a Dispatcher over register, using s to hand
// handlers their apiSender.
func NewDispatcher(register *Register, s *sender.Sender) *Dispatcher {
	return &Dispatcher{register: register, sender: s}
}

// Dispatch looks up and invokes the handler for packet.Header.MsgId (spec
// 4.9 steps 1-3), and on an uncaught error replies InternalError for
// requests or logs for one-way sends (spec 4.9 step 4).
func (d *Dispatcher) Dispatch(packet *route.Packet) {
	defer func() {
		if r := recover(); r != nil {
			d.fail(packet, nil)
			logger.Log.Errorf("api: recovered panic dispatching %s: %v", packet.Header.MsgId, r)
		}
	}()

	handler, ok := d.register.Lookup(packet.Header.MsgId)
	if !ok {
		d.fail(packet, errors.NotRouted(nil))
		return
	}

	ctx := pcontext.WithHeader(context.Background(), packet.Header)
	if err := handler(ctx, d.sender, packet); err != nil {
		d.fail(packet, err)
		return
	}
	if !packet.Disposed() {
		packet.Dispose()
	}
}

func (d *Dispatcher) fail(p *route.Packet, err error) {
	if p.Header.MsgSeq == 0 {
		if err != nil {
			logger.Log.Errorf("api: one-way %s failed: %s", p.Header.MsgId, err.Error())
		}
		if !p.Disposed() {
			p.Dispose()
		}
		return
	}
	code := errors.CodeOf(errors.Internal(nil))
	if err != nil {
		code = errors.CodeOf(err)
	}
	p.Header.ErrorCode = code
	if d.sender != nil {
		if sendErr := d.sender.ReplySend(route.New(p.Header.ReplyHeader(code), nil)); sendErr != nil {
			logger.Log.Warnf("api: reply for %s failed: %s", p.Header.MsgId, sendErr.Error())
		}
	}
	if !p.Disposed() {
		p.Dispose()
	}
}
