package node

import (
	"github.com/ulala-x/playhouse/heartbeat"
	"github.com/ulala-x/playhouse/route"
)

// ComposeSystemHandler builds the SystemHandler passed into Config: every
// node in the mesh forwards heartbeat broadcasts into hb (spec 4.3's
// membership directory), and a Play node additionally hands CreateStage
// requests to createStage. createStage may be nil on a Session or Api node,
// which never host stages.
func ComposeSystemHandler(hb *heartbeat.Service, createStage *PlaySystemHandler) SystemHandler {
	return func(p *route.Packet) {
		if p.Header.MsgId == heartbeat.SystemMsgId {
			hb.OnSystemMessage(p.Header, p.Payload)
			p.Dispose()
			return
		}
		if createStage != nil {
			createStage.Handle(p)
			return
		}
		p.Dispose()
	}
}
