package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/memory-anchor/internal/config"
	"github.com/kozaktomas/memory-anchor/internal/display"
	"github.com/kozaktomas/memory-anchor/internal/registry"
	"github.com/kozaktomas/memory-anchor/internal/scanner"
)

func TestScanHandler_StartStop(t *testing.T) {
	sc := &fakeScanner{}
	h := NewScanHandler(sc, display.NewBroadcaster(), &fakeRegistry{}, nil)

	steps := []struct {
		name     string
		handler  http.HandlerFunc
		expected int
	}{
		{"start", h.Start, http.StatusOK},
		{"start again", h.Start, http.StatusConflict},
		{"stop", h.Stop, http.StatusOK},
		{"stop again", h.Stop, http.StatusConflict},
	}

	for _, step := range steps {
		rec := httptest.NewRecorder()
		step.handler(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, step.expected, rec.Code, step.name)
	}
}

func TestScanHandler_StartFailure(t *testing.T) {
	sc := &fakeScanner{startErr: errCameraOffline}
	h := NewScanHandler(sc, display.NewBroadcaster(), &fakeRegistry{}, nil)

	rec := httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestScanHandler_State(t *testing.T) {
	sc := &fakeScanner{running: true}
	reg := &fakeRegistry{faces: []registry.EnrolledFace{sarahFace(), sarahFace()}}
	h := NewScanHandler(sc, display.NewBroadcaster(), reg, nil)

	rec := httptest.NewRecorder()
	h.State(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "scanning", resp["state"])
	assert.Equal(t, true, resp["running"])
	assert.Equal(t, float64(2), resp["registeredFaces"])
	assert.Equal(t, "2 faces registered", resp["message"])
}

func TestScanHandler_Events(t *testing.T) {
	events := display.NewBroadcaster()
	subscribers := make(chan int, 4)
	h := NewScanHandler(&fakeScanner{}, events, &fakeRegistry{}, func(d int) { subscribers <- d })

	srv := httptest.NewServer(http.HandlerFunc(h.Events))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	lines := bufio.NewScanner(resp.Body)

	readEvent := func() (string, string) {
		var name, data string
		for lines.Scan() {
			line := lines.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && name != "":
				return name, data
			}
		}
		return name, data
	}

	name, _ := readEvent()
	assert.Equal(t, "status", name)
	assert.Equal(t, 1, <-subscribers)

	profile := sarahFace().Profile
	events.Show(scanner.Transition{State: scanner.Recognized, FaceID: profile.ID, Profile: &profile, At: time.Now()})

	name, data := readEvent()
	assert.Equal(t, display.EventTransition, name)
	var ev display.Event
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	require.NotNil(t, ev.Transition)
	assert.Equal(t, "Sarah", ev.Transition.Profile.Name)

	cancel()
	select {
	case d := <-subscribers:
		assert.Equal(t, -1, d)
	case <-time.After(2 * time.Second):
		t.Fatal("listener was not removed after disconnect")
	}
	assert.Eventually(t, func() bool { return events.Listeners() == 0 }, time.Second, 10*time.Millisecond)
}

func TestScanHandler_EventsReplaysLastTransition(t *testing.T) {
	events := display.NewBroadcaster()
	profile := sarahFace().Profile
	events.Show(scanner.Transition{State: scanner.Recognized, FaceID: profile.ID, Profile: &profile, At: time.Now()})
	h := NewScanHandler(&fakeScanner{}, events, &fakeRegistry{}, nil)

	srv := httptest.NewServer(http.HandlerFunc(h.Events))
	defer srv.Close()
	defer h.CloseStreams()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	var names []string
	lines := bufio.NewScanner(resp.Body)
	for len(names) < 2 && lines.Scan() {
		if name, ok := strings.CutPrefix(lines.Text(), "event: "); ok {
			names = append(names, name)
		}
	}
	assert.Equal(t, []string{"status", display.EventTransition}, names)
}

func TestScanHandler_CloseStreamsEndsEvents(t *testing.T) {
	events := display.NewBroadcaster()
	h := NewScanHandler(&fakeScanner{}, events, &fakeRegistry{}, nil)

	srv := httptest.NewServer(http.HandlerFunc(h.Events))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Eventually(t, func() bool { return events.Listeners() == 1 }, time.Second, 10*time.Millisecond)

	h.CloseStreams()
	h.CloseStreams()

	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after CloseStreams")
	}
	assert.Eventually(t, func() bool { return events.Listeners() == 0 }, time.Second, 10*time.Millisecond)
}

func TestConfigHandler_Get(t *testing.T) {
	cfg := &config.Config{}
	cfg.Matching.Threshold = 0.6
	cfg.Scan.Interval = 500 * time.Millisecond
	cfg.Registry.Backend = config.BackendSQLite
	cfg.Camera.FrameDir = "/frames"
	cfg.Web.APIToken = "secret"

	rec := httptest.NewRecorder()
	NewConfigHandler(cfg).Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))

	var resp ConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0.6, resp.MatchThreshold)
	assert.Equal(t, int64(500), resp.ScanIntervalMs)
	assert.Equal(t, "sqlite", resp.RegistryBackend)
	assert.True(t, resp.CameraConfigured)
	assert.False(t, resp.EmbeddingService)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestRegistryHandler_Export(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRegistryHandler(&fakeRegistry{}).Export(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "memory-anchor-")
	assert.JSONEq(t, `{"version":1,"faces":[]}`, rec.Body.String())
}
