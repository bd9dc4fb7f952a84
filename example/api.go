package example

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ulala-x/playhouse/api"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/route"
)

// CreateStageController exposes spec 8 scenario 5 as an API-tier handler:
// a client (or test harness) asks the Api node to get-or-create a stage on
// a Play member, and the controller replies once the placement is known.
type CreateStageController struct {
	Timeout time.Duration
}

// Init registers the controller's handlers (spec 4.9: "Controllers declare
// message handlers by calling IHandlerRegister.Add during an
// initialization hook").
func (c *CreateStageController) Init(register api.IHandlerRegister) error {
	return register.Add("CreateStageRequest", c.handleCreateStage)
}

func (c *CreateStageController) handleCreateStage(ctx context.Context, sdr api.Sender, packet *route.Packet) error {
	var req CreateStageRequest
	if err := json.Unmarshal(packet.Payload, &req); err != nil {
		return err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	onReply := func(errorCode uint32, reply *route.Packet) {
		result := CreateStageResult{Result: errorCode == 0, IsCreated: true, StageId: req.StageId}
		payload, _ := json.Marshal(result)
		_ = api.Reply(ctx, sdr, errorCode, payload)
	}

	stageId, created, err := sdr.GetOrCreateStage(ctx, req.StageId, req.PlayServiceId, req.StageType, nil, timeout, onReply)
	if err != nil {
		return api.Reply(ctx, sdr, errors.CodeOf(err), nil)
	}
	if !created {
		result := CreateStageResult{Result: true, IsCreated: false, StageId: stageId}
		payload, err := json.Marshal(result)
		if err != nil {
			return err
		}
		return api.Reply(ctx, sdr, 0, payload)
	}
	// created == true: onReply above replies once the Play member's
	// CreateStage round trip completes.
	return nil
}
