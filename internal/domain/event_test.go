package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentityEvent(t *testing.T) {
	first := NewIdentityEvent(EventUserCreated, EventPayload{UserID: "u1", Email: "a@x.com"})
	second := NewIdentityEvent(EventUserCreated, EventPayload{UserID: "u1", Email: "a@x.com"})

	assert.NotEmpty(t, first.EventID)
	assert.NotEqual(t, first.EventID, second.EventID, "each emission gets its own id")

	ts, err := time.Parse(time.RFC3339Nano, first.Timestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, 5*time.Second)
}

func TestIdentityEventWireShape(t *testing.T) {
	event := NewIdentityEvent(EventUserLoggedOut, EventPayload{UserID: "u1"})

	body, err := json.Marshal(event)
	require.NoError(t, err)

	decoded := map[string]any{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "USER_LOGGED_OUT", decoded["eventType"])

	payload := decoded["payload"].(map[string]any)
	assert.Equal(t, "u1", payload["userId"])
	// Email is omitted except on USER_CREATED.
	assert.NotContains(t, payload, "email")
}

func TestPublishResult(t *testing.T) {
	assert.True(t, Delivered().Published)
	assert.Empty(t, Delivered().Reason)

	dropped := Dropped("broker unreachable")
	assert.False(t, dropped.Published)
	assert.Equal(t, "broker unreachable", dropped.Reason)
}
