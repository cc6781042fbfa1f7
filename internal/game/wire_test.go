// internal/game/wire_test.go
package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackRoundTrip(t *testing.T) {
	token := uuid.New()
	for action := range wireV1 {
		cb := Callback{Action: action, Token: token, Value: "42"}
		decoded, ok := DecodeCallback(cb.Encode())
		require.True(t, ok, "action %s", action)
		assert.Equal(t, cb, decoded)
	}
}

func TestCallbackValueMayContainSeparators(t *testing.T) {
	cb := Callback{Action: ActionB1G1FOffer, Token: uuid.New(), Value: "use/17"}
	decoded, ok := DecodeCallback(cb.Encode())
	require.True(t, ok)
	assert.Equal(t, "use/17", decoded.Value)
}

func TestDecodeCallbackRejectsMalformedData(t *testing.T) {
	token := uuid.New().String()
	for _, data := range []string{
		"",
		"v1/task",
		"v1/task:" + token,
		"v1/task:not-a-uuid:1",
		"v2/task:" + token + ":1",     // unknown version
		"select_task:" + token + ":1", // internal name, not a wire token
	} {
		_, ok := DecodeCallback(data)
		assert.False(t, ok, "data %q", data)
	}
}

func TestWireTableIsClosed(t *testing.T) {
	// Every action encodes to a distinct wire token and back.
	seen := make(map[string]bool)
	for action, token := range wireV1 {
		assert.False(t, seen[token], "duplicate wire token %s", token)
		seen[token] = true
		assert.Equal(t, action, wireV1Reverse[token])
	}
	assert.Len(t, wireV1Reverse, len(wireV1))
}
