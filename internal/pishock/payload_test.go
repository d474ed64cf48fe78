package pishock

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestEncodePayload_IDKey(t *testing.T) {
	b, err := encodePayload(DispatchRequest{
		DisplayName: "Nick",
		Operation:   Operation{Kind: Vibration, Intensity: 40, Duration: 3},
		Warning:     WarningWindow{Active: true, MinDelay: 2, MaxDelay: 5},
		Auth:        IDKey{ID: "dev-1", Key: "secret"},
	})
	require.NoError(t, err)

	m := decode(t, b)
	assert.Equal(t, map[string]any{
		"Intensity": float64(40),
		"Duration":  float64(3),
		"Id":        "dev-1",
		"Key":       "secret",
		"Op":        "v",
		"Hold":      false,
		"Username":  "Nick",
		"Warning":   map[string]any{"Active": true, "Min": float64(2), "Max": float64(5)},
		"UserId":    nil,
		"Token":     nil,
	}, m)

	// null, not omitted
	assert.Contains(t, string(b), `"UserId":null`)
	assert.Contains(t, string(b), `"Token":null`)
}

func TestEncodePayload_APIShareCode(t *testing.T) {
	b, err := encodePayload(DispatchRequest{
		DisplayName: "Alice",
		Operation:   Operation{Kind: Beep, Intensity: 1, Duration: 1},
		Warning:     WarningWindow{Active: true, MinDelay: 2, MaxDelay: 5},
		Auth:        APIShareCode{APIKey: "k", ShareCode: "C0DE", Username: "psuser"},
	})
	require.NoError(t, err)

	m := decode(t, b)
	assert.Equal(t, map[string]any{
		"Username":  "psuser",
		"Name":      "Alice",
		"Code":      "C0DE",
		"Intensity": float64(1),
		"Duration":  float64(1),
		"Apikey":    "k",
		"Op":        float64(2),
	}, m)
	assert.NotContains(t, m, "Warning")
}

func TestEncodePayload_NoAuth(t *testing.T) {
	_, err := encodePayload(DispatchRequest{DisplayName: "x"})
	assert.ErrorIs(t, err, ErrNoAuth)
}

func TestClientEndpoint(t *testing.T) {
	c := NewClient(0, WithCORSProxy(testCORSProxy))
	assert.Equal(t, LinkOperateURL, c.Endpoint(IDKey{}))
	assert.Equal(t, "https://corsproxy.io/?url=https://do.pishock.com/api/apioperate/", c.Endpoint(APIShareCode{}))

	direct := NewClient(0)
	assert.Equal(t, APIOperateURL, direct.Endpoint(APIShareCode{}))
}

const testCORSProxy = "https://corsproxy.io/?url="
