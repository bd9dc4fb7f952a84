// Package example is a reference application built against spec 8's
// concrete end-to-end scenarios, wired into cmd/play and cmd/api so the
// mesh has something runnable to exercise Echo, the authentication gate,
// pushes, stage-to-stage requests, CreateStage, and request timeouts.
package example

// EchoRequest/EchoReply is spec 8 scenario 1.
type EchoRequest struct {
	Content  string `json:"content"`
	Sequence int32  `json:"sequence"`
}

type EchoReply struct {
	Content     string `json:"content"`
	Sequence    int32  `json:"sequence"`
	ProcessedAt int64  `json:"processedAt"`
}

// BroadcastTrigger/BroadcastNotify is spec 8 scenario 3.
type BroadcastTrigger struct{}

type BroadcastTriggerReply struct{}

type BroadcastNotify struct {
	EventType string `json:"eventType"`
	Data      string `json:"data"`
}

// InterStageMessage/InterStageReply is spec 8 scenario 4.
type InterStageMessage struct {
	Content string `json:"content"`
}

type InterStageReply struct {
	Response string `json:"response"`
}

// NoResponseRequest is spec 8 scenario 6.
type NoResponseRequest struct {
	DelayMs int64 `json:"delayMs"`
}

// CreateStageRequest/Reply back spec 8 scenario 5's API->Play handler.
type CreateStageRequest struct {
	PlayServiceId uint16 `json:"playServiceId"`
	StageType     string `json:"stageType"`
	StageId       int64  `json:"stageId"`
}

type CreateStageResult struct {
	Result    bool  `json:"result"`
	IsCreated bool  `json:"isCreated"`
	StageId   int64 `json:"stageId"`
}
