package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/memory-anchor/internal/constants"
	"github.com/kozaktomas/memory-anchor/internal/database/images"
	"github.com/kozaktomas/memory-anchor/internal/enrollment"
	"github.com/kozaktomas/memory-anchor/internal/registry"
)

// FaceRegistry is the read side of the registry used by the API.
type FaceRegistry interface {
	All() []registry.EnrolledFace
	Get(id string) (registry.EnrolledFace, bool)
	Len() int
	FindByName(query string) []registry.EnrolledFace
}

// Enroller adds and removes people.
type Enroller interface {
	Enroll(ctx context.Context, image []byte, profile registry.Profile) (*enrollment.Result, error)
	Remove(ctx context.Context, id string) error
	Similar(id string, limit int) ([]enrollment.Duplicate, error)
}

// ImageOpener serves stored enrollment photos.
type ImageOpener interface {
	Open(id string) (io.ReadCloser, string, error)
}

// FacesHandler handles the enrolled-people endpoints.
type FacesHandler struct {
	registry FaceRegistry
	enroller Enroller
	images   ImageOpener
}

// NewFacesHandler creates a new faces handler. images may be nil.
func NewFacesHandler(reg FaceRegistry, enroller Enroller, imgs ImageOpener) *FacesHandler {
	return &FacesHandler{
		registry: reg,
		enroller: enroller,
		images:   imgs,
	}
}

// FaceResponse is one enrolled person without the raw embedding.
type FaceResponse struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Relation            string    `json:"relation"`
	Age                 *int      `json:"age,omitempty"`
	LastVisit           string    `json:"lastVisit"`
	ConversationSummary string    `json:"conversationSummary"`
	CurrentUpdate       string    `json:"currentUpdate"`
	Avatar              string    `json:"avatar"`
	HasImage            bool      `json:"hasImage"`
	EmbeddingDim        int       `json:"embeddingDim"`
	EnrolledAt          time.Time `json:"enrolledAt,omitzero"`
}

// FaceListResponse is the list response.
type FaceListResponse struct {
	Faces   []FaceResponse `json:"faces"`
	Count   int            `json:"count"`
	Message string         `json:"message"`
}

// EnrollResponse is returned after a successful enrollment.
type EnrollResponse struct {
	Face                FaceResponse           `json:"face"`
	Replaced            bool                   `json:"replaced"`
	PossibleDuplicateOf []enrollment.Duplicate `json:"possibleDuplicateOf,omitempty"`
}

func toFaceResponse(f registry.EnrolledFace) FaceResponse {
	return FaceResponse{
		ID:                  f.Profile.ID,
		Name:                f.Profile.Name,
		Relation:            f.Profile.Relation,
		Age:                 f.Profile.Age,
		LastVisit:           f.Profile.LastVisit,
		ConversationSummary: f.Profile.ConversationSummary,
		CurrentUpdate:       f.Profile.CurrentUpdate,
		Avatar:              f.Profile.Avatar,
		HasImage:            f.ImageRef != "",
		EmbeddingDim:        len(f.Embedding),
		EnrolledAt:          f.EnrolledAt,
	}
}

// List returns all enrolled people, optionally filtered by ?q=name.
func (h *FacesHandler) List(w http.ResponseWriter, r *http.Request) {
	var faces []registry.EnrolledFace
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		faces = h.registry.FindByName(q)
	} else {
		faces = h.registry.All()
	}

	out := make([]FaceResponse, 0, len(faces))
	for _, f := range faces {
		out = append(out, toFaceResponse(f))
	}
	total := h.registry.Len()
	respondJSON(w, http.StatusOK, FaceListResponse{
		Faces:   out,
		Count:   total,
		Message: registry.RegisteredMessage(total),
	})
}

// Get returns one person.
func (h *FacesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	face, ok := h.registry.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "face not found")
		return
	}
	respondJSON(w, http.StatusOK, toFaceResponse(face))
}

// Delete removes a person. Unknown ids succeed.
func (h *FacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.enroller.Remove(r.Context(), id); err != nil {
		log.Printf("failed to remove face %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to persist registry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Create enrolls a person from a multipart form: an image in "file" plus the
// profile fields.
func (h *FacesHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing image file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	profile := registry.Profile{
		ID:                  r.FormValue("id"),
		Name:                r.FormValue("name"),
		Relation:            r.FormValue("relation"),
		LastVisit:           r.FormValue("lastVisit"),
		ConversationSummary: r.FormValue("conversationSummary"),
		CurrentUpdate:       r.FormValue("currentUpdate"),
		Avatar:              r.FormValue("avatar"),
	}
	if s := strings.TrimSpace(r.FormValue("age")); s != "" {
		age, err := strconv.Atoi(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "age must be a number")
			return
		}
		profile.Age = &age
	}

	res, err := h.enroller.Enroll(r.Context(), data, profile)
	switch {
	case errors.Is(err, enrollment.ErrInvalidProfile):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, enrollment.ErrNoFaceDetected):
		respondError(w, http.StatusUnprocessableEntity, "no face detected, please upload a clearer photo")
		return
	case err != nil:
		log.Printf("enrollment of %s failed: %v", sanitizeForLog(profile.Name), err)
		respondError(w, http.StatusInternalServerError, "failed to save enrollment")
		return
	}

	status := http.StatusCreated
	if res.Replaced {
		status = http.StatusOK
	}
	respondJSON(w, status, EnrollResponse{
		Face:                toFaceResponse(res.Face),
		Replaced:            res.Replaced,
		PossibleDuplicateOf: res.PossibleDuplicateOf,
	})
}

// Image streams the stored enrollment photo.
func (h *FacesHandler) Image(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		respondError(w, http.StatusNotFound, "image storage disabled")
		return
	}
	id := chi.URLParam(r, "id")
	rc, mime, err := h.images.Open(id)
	if errors.Is(err, images.ErrNotFound) {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		log.Printf("failed to open image for %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to open image")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=60")
	_, _ = io.Copy(w, rc)
}

// Similar lists other enrolled people resembling this one.
func (h *FacesHandler) Similar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.registry.Get(id); !ok {
		respondError(w, http.StatusNotFound, "face not found")
		return
	}

	limit := constants.DuplicateSearchLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	dups, err := h.enroller.Similar(id, limit)
	if err != nil {
		respondError(w, http.StatusNotFound, "face not found")
		return
	}
	if dups == nil {
		dups = []enrollment.Duplicate{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"similar": dups})
}
