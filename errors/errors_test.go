package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ulala-x/playhouse/constants"
)

func TestConstructors_UseReservedFrameworkCodes(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		code uint32
	}{
		{"PeerUnreachable", PeerUnreachable(nil), constants.CodePeerUnreachable},
		{"Backpressure", Backpressure(nil), constants.CodeBackpressure},
		{"RequestTimeout", RequestTimeout(), constants.CodeRequestTimeout},
		{"NotRouted", NotRouted(nil), constants.CodeNotRouted},
		{"Unauthenticated", Unauthenticated(), constants.CodeUnauthenticated},
		{"StageClosed", StageClosed(), constants.CodeStageClosed},
		{"Internal", Internal(nil), constants.CodeInternalError},
		{"ShuttingDown", ShuttingDown(), constants.CodeShuttingDown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.code, c.err.Code)
			assert.True(t, constants.IsFrameworkCode(c.err.Code))
		})
	}
}

func TestDuplicateHandler_CarriesMsgId(t *testing.T) {
	err := DuplicateHandler("EchoRequest")
	assert.Equal(t, uint32(constants.CodeDuplicateHandler), err.Code)
	assert.Contains(t, err.Error(), "EchoRequest")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, uint32(constants.CodeOK), CodeOf(nil))
	assert.Equal(t, uint32(constants.CodeStageClosed), CodeOf(StageClosed()))
	assert.Equal(t, uint32(constants.CodeInternalError), CodeOf(fmt.Errorf("plain error")))
}

func TestError_WithMetadata(t *testing.T) {
	err := New(constants.CodeInternalError, fmt.Errorf("boom")).WithMetadata("stageId", "123")
	assert.Equal(t, "123", err.Metadata["stageId"])
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := New(constants.CodeInternalError, cause)
	assert.ErrorIs(t, err, cause)
}

func TestNewAppError_OutsideFrameworkRange(t *testing.T) {
	err := NewAppError(1001, fmt.Errorf("app specific"))
	assert.False(t, constants.IsFrameworkCode(err.Code))
}
