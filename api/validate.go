package api

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/route"
)

var validate = validator.New()

// ValidationFilter decodes a handler's declared request payload with
// decode, runs struct tag validation over it, and rejects the packet with
// an InternalError-coded error before the handler ever runs (spec 4.9's
// filter chain, pitaya's request-binding-and-validation middleware
// pattern adapted to route.Packet).
func ValidationFilter(decode func([]byte) (interface{}, error)) Filter {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, s Sender, packet *route.Packet) error {
			req, err := decode(packet.Payload)
			if err != nil {
				return errors.Internal(fmt.Errorf("api: decode request: %w", err))
			}
			if err := validate.Struct(req); err != nil {
				return errors.Internal(fmt.Errorf("api: validate request: %w", err))
			}
			return next(ctx, s, packet)
		}
	}
}
