package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/memory-anchor/internal/database/images"
	"github.com/kozaktomas/memory-anchor/internal/display"
	"github.com/kozaktomas/memory-anchor/internal/enrollment"
	"github.com/kozaktomas/memory-anchor/internal/registry"
	"github.com/kozaktomas/memory-anchor/internal/scanner"
)

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartRequest builds a POST with an optional file part and form fields.
func multipartRequest(t *testing.T, target string, file []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if file != nil {
		fw, err := mw.CreateFormFile("file", "photo.jpg")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write(file)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type fakeRegistry struct {
	faces []registry.EnrolledFace
}

func (f *fakeRegistry) All() []registry.EnrolledFace { return f.faces }

func (f *fakeRegistry) Get(id string) (registry.EnrolledFace, bool) {
	for _, face := range f.faces {
		if face.ID() == id {
			return face, true
		}
	}
	return registry.EnrolledFace{}, false
}

func (f *fakeRegistry) Len() int { return len(f.faces) }

func (f *fakeRegistry) FindByName(query string) []registry.EnrolledFace {
	var out []registry.EnrolledFace
	for _, face := range f.faces {
		if face.Profile.Name == query {
			out = append(out, face)
		}
	}
	return out
}

func (f *fakeRegistry) Export() ([]byte, error) { return []byte(`{"version":1,"faces":[]}`), nil }

type fakeEnroller struct {
	result    *enrollment.Result
	err       error
	removeErr error

	gotImage   []byte
	gotProfile registry.Profile
	removed    []string
	similar    []enrollment.Duplicate
}

func (f *fakeEnroller) Enroll(_ context.Context, image []byte, profile registry.Profile) (*enrollment.Result, error) {
	f.gotImage = image
	f.gotProfile = profile
	return f.result, f.err
}

func (f *fakeEnroller) Remove(_ context.Context, id string) error {
	f.removed = append(f.removed, id)
	return f.removeErr
}

func (f *fakeEnroller) Similar(string, int) ([]enrollment.Duplicate, error) {
	return f.similar, nil
}

type fakeImages map[string][]byte

func (f fakeImages) Open(id string) (io.ReadCloser, string, error) {
	data, ok := f[id]
	if !ok {
		return nil, "", images.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), "image/jpeg", nil
}

type fakeScanner struct {
	mu       sync.Mutex
	running  bool
	startErr error
	stopErr  error
}

func (f *fakeScanner) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	if f.running {
		return scanner.ErrAlreadyScanning
	}
	f.running = true
	return nil
}

func (f *fakeScanner) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return scanner.ErrNotScanning
	}
	f.running = false
	return f.stopErr
}

func (f *fakeScanner) Status() scanner.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return scanner.Status{State: scanner.Scanning, Running: true}
	}
	return scanner.Status{State: scanner.Idle}
}

var errCameraOffline = errors.New("camera offline")

var _ EventSource = (*display.Broadcaster)(nil)

func sarahFace() registry.EnrolledFace {
	age := 34
	return registry.EnrolledFace{
		Embedding: []float32{0.1, 0.2, 0.3},
		Profile: registry.Profile{
			ID:       "person_sarah",
			Name:     "Sarah",
			Relation: "Daughter",
			Age:      &age,
			Avatar:   "👩",
		},
		ImageRef: "person_sarah.jpg",
	}
}
