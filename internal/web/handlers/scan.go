package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/kozaktomas/memory-anchor/internal/display"
	"github.com/kozaktomas/memory-anchor/internal/registry"
	"github.com/kozaktomas/memory-anchor/internal/scanner"
)

// ScanControl starts and stops the recognition loop.
type ScanControl interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status() scanner.Status
}

// EventSource is a subscription point for scanner events.
type EventSource interface {
	AddListener() chan display.Event
	RemoveListener(ch chan display.Event)
	Last() (display.Event, bool)
}

// Counter reports the registry size.
type Counter interface {
	Len() int
}

// ScanHandler handles the scanning endpoints.
type ScanHandler struct {
	scanner ScanControl
	events  EventSource
	faces   Counter
	// onSubscribers is told about SSE connections coming and going.
	onSubscribers func(delta int)
	done          chan struct{}
	closeOnce     sync.Once
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(sc ScanControl, events EventSource, faces Counter, onSubscribers func(int)) *ScanHandler {
	if onSubscribers == nil {
		onSubscribers = func(int) {}
	}
	return &ScanHandler{
		scanner:       sc,
		events:        events,
		faces:         faces,
		onSubscribers: onSubscribers,
		done:          make(chan struct{}),
	}
}

// CloseStreams ends every open event stream. http.Server.Shutdown does not
// cancel request contexts, so the server calls this on shutdown.
func (h *ScanHandler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.done) })
}

// StateResponse is the scanner status plus the registry size.
type StateResponse struct {
	scanner.Status
	RegisteredFaces int    `json:"registeredFaces"`
	Message         string `json:"message"`
}

func (h *ScanHandler) state() StateResponse {
	n := h.faces.Len()
	return StateResponse{
		Status:          h.scanner.Status(),
		RegisteredFaces: n,
		Message:         registry.RegisteredMessage(n),
	}
}

// Start begins scanning.
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	err := h.scanner.Start(r.Context())
	if errors.Is(err, scanner.ErrAlreadyScanning) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		log.Printf("failed to start scanning: %v", err)
		respondError(w, http.StatusServiceUnavailable, "failed to start scanning: camera unavailable")
		return
	}
	respondJSON(w, http.StatusOK, h.state())
}

// Stop ends scanning.
func (h *ScanHandler) Stop(w http.ResponseWriter, r *http.Request) {
	err := h.scanner.Stop(r.Context())
	if errors.Is(err, scanner.ErrNotScanning) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		// scanning has stopped, only the frame source release failed
		log.Printf("scan stop: %v", err)
	}
	respondJSON(w, http.StatusOK, h.state())
}

// State returns the current scanner state.
func (h *ScanHandler) State(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.state())
}

// Events streams scanner events over SSE until the client disconnects.
func (h *ScanHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	eventCh := h.events.AddListener()
	defer h.events.RemoveListener(eventCh)
	h.onSubscribers(1)
	defer h.onSubscribers(-1)

	sendSSEEvent(w, flusher, "status", h.state())
	if last, ok := h.events.Last(); ok {
		sendSSEEvent(w, flusher, last.Type, last)
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
		}
	}
}
