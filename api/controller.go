// Package api implements the API dispatcher of spec 4.9: a reflection-style
// handler registry with a controller/filter chain, for the stateless Api
// tier (spec 2).
package api

import (
	"context"

	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
)

// Sender is the *sender.Sender a handler uses to talk back to the
// mesh (spec 4.9 step 3: "the innermost node calls the handler with
// (packet, apiSender)").
type Sender = *sender.Sender

// IApiController is implemented by client-facing API controllers.
type IApiController interface {
	Init(register IHandlerRegister) error
}

// IApiBackendController is implemented by controllers that only ever
// receive backend-to-backend (isBackend) packets.
type IApiBackendController interface {
	InitBackend(register IHandlerRegister) error
}

// HandlerFunc processes one dispatched packet.
type HandlerFunc func(ctx context.Context, s Sender, packet *route.Packet) error

// Filter wraps a HandlerFunc to add cross-cutting behavior (validation,
// tracing, metrics), innermost-first (spec 4.9 step 2).
type Filter func(next HandlerFunc) HandlerFunc
