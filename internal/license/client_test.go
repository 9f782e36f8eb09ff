package license

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-license-key", "device-123", zerolog.Nop())
}

func TestValidateValidNoConflictReturnsValid(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/validate", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(ValidateResponse{Valid: true, DaysUntilExpiration: 10})
	})

	state, resp, err := c.Validate(t.Context(), false)
	require.NoError(t, err)
	assert.Equal(t, Valid, state)
	assert.True(t, resp.Valid)
}

func TestValidateExpiredNoPositionDisablesAll(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ValidateResponse{Valid: false})
	})

	state, _, err := c.Validate(t.Context(), false)
	require.NoError(t, err)
	assert.Equal(t, ExpiredNoPosition, state)
}

func TestValidateExpiredWithOpenPositionGrantsGrace(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ValidateResponse{Valid: false})
	})

	state, _, err := c.Validate(t.Context(), true)
	require.NoError(t, err)
	assert.Equal(t, GraceWithPosition, state)
}

func TestValidateSessionConflictWithPositionReturnsConflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ValidateResponse{Valid: true, SessionConflict: true})
	})

	state, resp, err := c.Validate(t.Context(), true)
	require.NoError(t, err)
	assert.Equal(t, Conflict, state)
	assert.True(t, resp.SessionConflict)
}

func TestValidateSessionConflictWithoutPositionStillValid(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ValidateResponse{Valid: true, SessionConflict: true})
	})

	state, _, err := c.Validate(t.Context(), false)
	require.NoError(t, err)
	assert.Equal(t, Valid, state)
}

func TestValidateServerErrorReturnsLastKnownState(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	state, _, err := c.Validate(t.Context(), false)
	assert.Error(t, err)
	assert.Equal(t, ExpiredNoPosition, state)
}

func TestHeartbeatSucceedsAndRecordsTimestamp(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/heartbeat", r.URL.Path)
		json.NewEncoder(w).Encode(heartbeatResponse{})
	})

	before := time.Now().UTC()
	require.NoError(t, c.Heartbeat(t.Context()))
	assert.False(t, c.LastHeartbeatAt().Before(before))
}

func TestReleaseCallsReleaseEndpoint(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/release", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.Release(t.Context()))
	assert.True(t, called)
}
