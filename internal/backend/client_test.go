package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hmi "extruder_hmi"
)

const sampleStatusBody = `{
	"state": {
		"status": "RUNNING",
		"mode": "AUTO",
		"target_z1": 200.0,
		"manual_duty_z1": 35.0,
		"active_alarms": [
			{"id": "a1", "type": "OVERTEMP", "message": "zone 1 overtemp",
			 "severity": "CRITICAL", "timestamp": 1700000000.5,
			 "acknowledged": false, "cleared": false}
		],
		"temps": {"t1": 195.5, "t2": 198.0},
		"motors": {"main": 12.0, "feed": 0.0},
		"relays": {"fan": true, "pump": false},
		"pwm": {"z1": 40.0}
	},
	"config": {"sensors": {"1": {"offset": 0.5}}}
}`

func TestHTTPClient_FetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, statusPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleStatusBody))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	st, err := c.FetchStatus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 195.5, st.Data.Float(hmi.CategoryTemps, "t1", 0))
	assert.True(t, st.Data.Bool(hmi.CategoryRelays, "fan", false))
	assert.Equal(t, 12.0, st.Data.Float(hmi.CategoryMotors, "main", 0))

	// Top-level scalars are folded into the process category.
	assert.Equal(t, hmi.StatusRunning, st.Data.String(hmi.CategoryProcess, hmi.KeyStatus, ""))
	assert.Equal(t, 200.0, st.Data.Float(hmi.CategoryProcess, hmi.KeyTargetZ1, 0))
	// Absent scalars stay absent, not zero.
	assert.Equal(t, -1.0, st.Data.Float(hmi.CategoryProcess, hmi.KeyTargetZ2, -1))

	require.Len(t, st.Alarms, 1)
	assert.Equal(t, hmi.SeverityCritical, st.Alarms[0].Severity)
	assert.False(t, st.Alarms[0].Acknowledged)

	// Config is passed through byte-for-byte usable JSON.
	var cfg map[string]any
	require.NoError(t, json.Unmarshal(st.Config, &cfg))
	assert.Contains(t, cfg, "sensors")
}

func TestHTTPClient_FetchStatus_BadStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "hal not started", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	_, err := c.FetchStatus(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPClient_FetchStatus_MalformedPayloadTreatedAsNoData(t *testing.T) {
	// A payload missing whole categories decodes fine; the absent parts are
	// simply not in the tree.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"state": {"temps": {"t1": 20.0}}, "config": {}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	st, err := c.FetchStatus(context.Background())
	require.NoError(t, err)

	_, hasRelays := st.Data[hmi.CategoryRelays]
	assert.False(t, hasRelays)
	_, hasProcess := st.Data[hmi.CategoryProcess]
	assert.False(t, hasProcess)
	assert.Empty(t, st.Alarms)
}

func TestHTTPClient_Command(t *testing.T) {
	var got commandRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, controlPath, r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	require.NoError(t, c.Command(context.Background(), "ack_alarm", "a1"))
	assert.Equal(t, "ack_alarm", got.Command)
	assert.Equal(t, "a1", got.Value)
}

func TestHTTPClient_Command_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unknown command"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	err := c.Command(context.Background(), "bogus", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}
