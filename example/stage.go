package example

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
	"github.com/ulala-x/playhouse/session"
	"github.com/ulala-x/playhouse/stage"
)

// TestStage implements stage.Handler/stage.ActorHandler for spec 8's
// concrete end-to-end scenarios. Every stage created by the mesh (whether
// through CreateStage or a fixed bootstrap id) runs this same handler;
// real applications supply their own in its place.
type TestStage struct {
	sdr *sender.Sender
}

// NewTestStage builds a TestStage bound to sdr for replies/pushes.
func NewTestStage(sdr *sender.Sender) *TestStage {
	return &TestStage{sdr: sdr}
}

// Factory adapts NewTestStage to node.StageFactory.
func (t *TestStage) Factory(stageType string) (stage.Handler, stage.ActorHandler) {
	return t, t
}

func (t *TestStage) OnCreate(ctx context.Context, s *stage.Stage, payload []byte) error {
	return nil
}

func (t *TestStage) OnDestroy(ctx context.Context, s *stage.Stage) {}

func (t *TestStage) OnDispatch(ctx context.Context, s *stage.Stage, actor *stage.Actor, packet *route.Packet) error {
	switch packet.Header.MsgId {
	case "Authenticate":
		return t.handleAuthenticate(ctx, s, actor, packet)
	case "EchoRequest":
		return t.handleEcho(ctx, packet)
	case "BroadcastTrigger":
		return t.handleBroadcastTrigger(ctx, actor, packet)
	case "InterStageMessage":
		return t.handleInterStageMessage(ctx, packet)
	case "NoResponseRequest":
		return t.handleNoResponse(s, packet)
	default:
		return fmt.Errorf("example: unhandled msgId %q", packet.Header.MsgId)
	}
}

func (t *TestStage) handleAuthenticate(ctx context.Context, s *stage.Stage, actor *stage.Actor, packet *route.Packet) error {
	if err := s.RunAuthenticate(ctx, actor, packet); err != nil {
		return err
	}
	if err := s.RunJoin(ctx, actor); err != nil {
		return err
	}
	return stage.Reply(ctx, 0, nil, t.sdr.ReplySend)
}

func (t *TestStage) handleEcho(ctx context.Context, packet *route.Packet) error {
	var req EchoRequest
	if err := json.Unmarshal(packet.Payload, &req); err != nil {
		return err
	}
	reply := EchoReply{Content: req.Content, Sequence: req.Sequence, ProcessedAt: time.Now().UnixNano()}
	payload, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return stage.Reply(ctx, 0, payload, t.sdr.ReplySend)
}

func (t *TestStage) handleBroadcastTrigger(ctx context.Context, actor *stage.Actor, packet *route.Packet) error {
	notify := BroadcastNotify{EventType: "system", Data: "Welcome!"}
	payload, err := json.Marshal(notify)
	if err != nil {
		return err
	}
	if actor != nil {
		if err := t.sdr.SendToClient(ctx, actor.Sid, "BroadcastNotify", payload); err != nil {
			return err
		}
	}
	replyPayload, err := json.Marshal(BroadcastTriggerReply{})
	if err != nil {
		return err
	}
	return stage.Reply(ctx, 0, replyPayload, t.sdr.ReplySend)
}

func (t *TestStage) handleInterStageMessage(ctx context.Context, packet *route.Packet) error {
	var msg InterStageMessage
	if err := json.Unmarshal(packet.Payload, &msg); err != nil {
		return err
	}
	reply := InterStageReply{Response: "Echo: " + msg.Content}
	payload, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return stage.Reply(ctx, 0, payload, t.sdr.ReplySend)
}

// handleNoResponse deliberately withholds the reply until DelayMs has
// elapsed (spec 8 scenario 6), well past the client's own RequestTimeoutMs,
// demonstrating the correlator drops a late reply silently rather than
// double-delivering.
func (t *TestStage) handleNoResponse(s *stage.Stage, packet *route.Packet) error {
	var req NoResponseRequest
	if err := json.Unmarshal(packet.Payload, &req); err != nil {
		return err
	}
	header := packet.Header
	delay := time.Duration(req.DelayMs) * time.Millisecond
	s.AddCountTimer(delay, 0, 1, func() {
		reply := header.ReplyHeader(0)
		_ = t.sdr.ReplySend(route.New(reply, nil))
	})
	return nil
}

func (t *TestStage) OnAuthenticate(ctx context.Context, s *stage.Stage, a *stage.Actor, packet *route.Packet) error {
	msg, err := session.DecodeBindPayload(packet.Payload)
	if err != nil {
		return err
	}
	if msg.Uid == "" {
		return fmt.Errorf("example: Authenticate payload missing userId")
	}
	a.AccountId = msg.Uid
	return nil
}

func (t *TestStage) OnPostAuthenticate(ctx context.Context, s *stage.Stage, a *stage.Actor) error {
	return nil
}

func (t *TestStage) OnJoinStage(ctx context.Context, s *stage.Stage, a *stage.Actor) error {
	return nil
}

func (t *TestStage) OnPostJoinStage(ctx context.Context, s *stage.Stage, a *stage.Actor) error {
	return nil
}

func (t *TestStage) OnConnectionChanged(ctx context.Context, s *stage.Stage, a *stage.Actor, connected bool) {
}

func (t *TestStage) OnActorDestroy(ctx context.Context, s *stage.Stage, a *stage.Actor) {}
