package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/protos"
)

func TestMessageNameFor_ResolvesDescriptorName(t *testing.T) {
	name, err := MessageNameFor(&protos.BindMsg{})
	require.NoError(t, err)
	assert.Contains(t, name, "BindMsg")
	assert.True(t, strings.HasSuffix(name, "BindMsg"))
}
