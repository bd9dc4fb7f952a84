package session

import (
	"fmt"

	"google.golang.org/protobuf/proto"

	"github.com/ulala-x/playhouse/protos"
)

// DecodeBindPayload unmarshals an OnAuthenticate request payload as the
// account-bind message (accountId plus an optional federated id), the
// shape pitaya's own session.Bind RPC carries across a Frontend-to-Backend
// hop. PlayHouse reuses it as the default Authenticate payload shape so a
// stage's OnAuthenticate has a ready-made struct instead of a bespoke one.
func DecodeBindPayload(payload []byte) (*protos.BindMsg, error) {
	msg := &protos.BindMsg{}
	if err := proto.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("session: decode bind payload: %w", err)
	}
	return msg, nil
}

// EncodeBindPayload marshals accountId (and an optional federated id) into
// the wire shape DecodeBindPayload reads back.
func EncodeBindPayload(accountId, federatedId string) ([]byte, error) {
	msg := &protos.BindMsg{Uid: accountId, Fid: federatedId}
	return proto.Marshal(msg)
}
