// Copyright (c) TFG Co. All Rights Reserved.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package context (imported as pcontext) carries the "current header" that
// spec 4.6/9 says should be passed as an explicit context argument through
// dispatcher entry points on a language without thread-locals, plus the
// general key/value propagation round-trip used to forward values across
// RPC calls. Adapted from byte4fun-pitaya/context/context.go: that file's
// per-uid relation.Data map is replaced here by the mesh's own header shape,
// since PlayHouse has one current header per dispatch rather than a map of
// per-uid relation data.
package context

import (
	"context"
	"encoding/json"

	"github.com/ulala-x/playhouse/route"
)

type headerKeyType struct{}
type propagateKeyType struct{}

var headerKey = headerKeyType{}
var propagateKey = propagateKeyType{}

// WithHeader returns a context carrying h as the "current header" — the
// header of the packet presently being dispatched, so Reply() can address
// the originator without a thread-local.
func WithHeader(ctx context.Context, h *route.Header) context.Context {
	return context.WithValue(ctx, headerKey, h)
}

// HeaderFromContext retrieves the current header set by WithHeader, if any.
func HeaderFromContext(ctx context.Context) (*route.Header, bool) {
	if ctx == nil {
		return nil, false
	}
	h, ok := ctx.Value(headerKey).(*route.Header)
	return h, ok
}

// AddToPropagateCtx adds a key and value that will be propagated through
// RPC calls (e.g. SendToStage, RequestToApi).
func AddToPropagateCtx(ctx context.Context, key string, val interface{}) context.Context {
	propagate := ToMap(ctx)
	propagate[key] = val
	return context.WithValue(ctx, propagateKey, propagate)
}

// GetFromPropagateCtx gets a value from the propagated map.
func GetFromPropagateCtx(ctx context.Context, key string) interface{} {
	propagate := ToMap(ctx)
	if val, ok := propagate[key]; ok {
		return val
	}
	return nil
}

// ToMap returns the values that will be propagated through RPC calls.
func ToMap(ctx context.Context) map[string]interface{} {
	if ctx == nil {
		return map[string]interface{}{}
	}
	p := ctx.Value(propagateKey)
	if p != nil {
		return p.(map[string]interface{})
	}
	return map[string]interface{}{}
}

// FromMap creates a new context from a map with propagated values.
func FromMap(val map[string]interface{}) context.Context {
	return context.WithValue(context.Background(), propagateKey, val)
}

// Encode returns the given propagatable context encoded in binary format,
// for embedding in a RoutePacket's payload envelope when crossing nodes.
func Encode(ctx context.Context) ([]byte, error) {
	m := ToMap(ctx)
	if len(m) > 0 {
		return json.Marshal(m)
	}
	return nil, nil
}

// Decode returns a context given a binary-encoded propagated map.
func Decode(m []byte) (context.Context, error) {
	if len(m) == 0 {
		return context.Background(), nil
	}
	mp := make(map[string]interface{})
	if err := json.Unmarshal(m, &mp); err != nil {
		return nil, err
	}
	return FromMap(mp), nil
}
