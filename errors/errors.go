// Package errors carries framework error codes alongside an optional
// underlying cause, the same shape agent.go reaches for via
// errors.NewError(constants.ErrBrokenPipe, errors.ErrClientClosedRequest).
package errors

import (
	"fmt"

	"github.com/ulala-x/playhouse/constants"
)

// Sentinel causes. Wrapped by New with a framework code when surfaced
// across the wire; compared directly when handled in-process.
var (
	ErrPeerUnreachable  = fmt.Errorf("peer unreachable")
	ErrBackpressure     = fmt.Errorf("send queue backpressure")
	ErrRequestTimeout   = fmt.Errorf("request timeout")
	ErrNotRouted        = fmt.Errorf("packet not routed")
	ErrUnauthenticated  = fmt.Errorf("unauthenticated")
	ErrDuplicateHandler = fmt.Errorf("duplicate handler")
	ErrStageClosed      = fmt.Errorf("stage closed")
	ErrInternal         = fmt.Errorf("internal error")
	ErrShuttingDown     = fmt.Errorf("shutting down")
)

// Error is a framework error: a stable numeric Code plus the cause that
// produced it. Code is always in the reserved framework range unless the
// error was constructed by application code via NewAppError.
type Error struct {
	Code     uint32
	Cause    error
	Metadata map[string]string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s", e.Code, e.Cause.Error())
	}
	return fmt.Sprintf("[%d]", e.Code)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds a framework error from one of the sentinel causes above.
func New(code uint32, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

// NewAppError builds an error outside the reserved framework range;
// callers are responsible for keeping code outside [60000, 60999].
func NewAppError(code uint32, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

// WithMetadata attaches key/value context (e.g. "stageId", "msgId") and
// returns the same error for chaining.
func (e *Error) WithMetadata(key, val string) *Error {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = val
	return e
}

// CodeOf extracts the framework code from err, or constants.CodeInternalError
// if err is not a *Error.
func CodeOf(err error) uint32 {
	if err == nil {
		return constants.CodeOK
	}
	if fe, ok := err.(*Error); ok {
		return fe.Code
	}
	return constants.CodeInternalError
}

// Framework error constructors, one per spec 7 row.
func PeerUnreachable(cause error) *Error  { return New(constants.CodePeerUnreachable, orDefault(cause, ErrPeerUnreachable)) }
func Backpressure(cause error) *Error    { return New(constants.CodeBackpressure, orDefault(cause, ErrBackpressure)) }
func RequestTimeout() *Error             { return New(constants.CodeRequestTimeout, ErrRequestTimeout) }
func NotRouted(cause error) *Error       { return New(constants.CodeNotRouted, orDefault(cause, ErrNotRouted)) }
func Unauthenticated() *Error            { return New(constants.CodeUnauthenticated, ErrUnauthenticated) }
func DuplicateHandler(msgID string) *Error {
	return New(constants.CodeDuplicateHandler, fmt.Errorf("%w: %s", ErrDuplicateHandler, msgID))
}
func StageClosed() *Error          { return New(constants.CodeStageClosed, ErrStageClosed) }
func Internal(cause error) *Error  { return New(constants.CodeInternalError, orDefault(cause, ErrInternal)) }
func ShuttingDown() *Error         { return New(constants.CodeShuttingDown, ErrShuttingDown) }

func orDefault(cause, def error) error {
	if cause != nil {
		return cause
	}
	return def
}
