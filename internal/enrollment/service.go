// Package enrollment validates new (image, profile) pairs and commits them to
// the registry.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/memory-anchor/internal/constants"
	"github.com/kozaktomas/memory-anchor/internal/facematch"
	"github.com/kozaktomas/memory-anchor/internal/logger"
	"github.com/kozaktomas/memory-anchor/internal/metrics"
	"github.com/kozaktomas/memory-anchor/internal/registry"
)

var (
	// ErrNoFaceDetected means the image had no usable face. Ask for another photo.
	ErrNoFaceDetected = errors.New("no face detected in image")
	// ErrInvalidProfile means a required profile field is missing.
	ErrInvalidProfile = errors.New("invalid profile")
)

// Defaults applied to blank profile fields.
const (
	DefaultRelation            = "Unknown relation"
	DefaultLastVisit           = "Not recorded"
	DefaultConversationSummary = "No previous conversation recorded."
	DefaultCurrentUpdate       = "No current updates."
	DefaultAvatar              = "👤"
)

// ImageStore keeps the enrollment photo. Save returns an opaque reference.
type ImageStore interface {
	Save(id string, data []byte) (string, error)
	Delete(id string) error
}

// Result is a successful enrollment.
type Result struct {
	Face registry.EnrolledFace
	// Replaced is true when the id already existed.
	Replaced bool
	// PossibleDuplicateOf lists other people whose enrolled face is within the
	// match threshold of the new one, nearest first.
	PossibleDuplicateOf []Duplicate
}

// Duplicate is another enrolled person resembling the new face.
type Duplicate struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// Service enrolls and removes people.
type Service struct {
	registry  *registry.Registry
	extractor facematch.Extractor
	images    ImageStore
	threshold float64
	log       *logger.Logger
	metrics   *metrics.Metrics
	newID     func() string
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithImageStore stores enrollment photos.
func WithImageStore(s ImageStore) Option {
	return func(svc *Service) { svc.images = s }
}

// WithThreshold sets the distance used for duplicate warnings.
func WithThreshold(t float64) Option {
	return func(svc *Service) {
		if t > 0 {
			svc.threshold = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(svc *Service) { svc.log = logger.OrNop(l) }
}

// WithMetrics records enrollment counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(svc *Service) { svc.metrics = m }
}

// NewService creates an enrollment service.
func NewService(reg *registry.Registry, extractor facematch.Extractor, opts ...Option) *Service {
	svc := &Service{
		registry:  reg,
		extractor: extractor,
		threshold: constants.MatchThreshold,
		log:       logger.Nop(),
		newID:     func() string { return "person_" + uuid.NewString() },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Enroll extracts the face from image and stores it with profile. A blank
// profile id gets a generated one; an existing id is replaced, which is the
// only way to update a person.
//
// When persisting fails the person is still enrolled in memory and the error
// is returned.
func (s *Service) Enroll(ctx context.Context, image []byte, profile registry.Profile) (*Result, error) {
	profile.Name = strings.TrimSpace(profile.Name)
	if profile.Name == "" {
		s.metrics.RecordEnrollment("invalid")
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if profile.Age != nil && *profile.Age < 0 {
		s.metrics.RecordEnrollment("invalid")
		return nil, fmt.Errorf("%w: age must not be negative", ErrInvalidProfile)
	}
	if len(image) == 0 {
		s.metrics.RecordEnrollment("no_face")
		return nil, fmt.Errorf("%w: empty image", ErrNoFaceDetected)
	}

	emb, err := s.extractor.Extract(ctx, image)
	if err != nil {
		s.metrics.RecordEnrollment("no_face")
		s.log.Warn("face extraction failed during enrollment", "name", profile.Name, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNoFaceDetected, err)
	}
	if len(emb) == 0 {
		s.metrics.RecordEnrollment("no_face")
		return nil, ErrNoFaceDetected
	}

	profile.ID = strings.TrimSpace(profile.ID)
	if profile.ID == "" {
		profile.ID = s.newID()
	}
	applyDefaults(&profile)

	_, replaced := s.registry.Get(profile.ID)

	face := registry.EnrolledFace{
		Embedding:  emb.Clone(),
		Profile:    profile,
		EnrolledAt: s.now().UTC(),
	}
	if s.images != nil {
		ref, err := s.images.Save(profile.ID, image)
		if err != nil {
			s.metrics.RecordEnrollment("error")
			return nil, fmt.Errorf("store image: %w", err)
		}
		face.ImageRef = ref
	}

	if err := s.registry.Put(ctx, face); err != nil {
		s.metrics.RecordEnrollment("error")
		return nil, fmt.Errorf("persist enrollment of %s: %w", profile.ID, err)
	}
	s.metrics.RecordEnrollment("ok")

	result := &Result{Face: face, Replaced: replaced}
	result.PossibleDuplicateOf = s.findDuplicates(face)
	for _, d := range result.PossibleDuplicateOf {
		s.log.Warn("new face resembles an enrolled person",
			"id", profile.ID, "name", profile.Name,
			"similar_id", d.ID, "similar_name", d.Name, "distance", d.Distance)
	}

	s.log.Info("person enrolled", "id", profile.ID, "name", profile.Name, "replaced", replaced)
	return result, nil
}

// Remove deletes the person and their photo. Unknown ids are a no-op.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.registry.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	if s.images != nil {
		if err := s.images.Delete(id); err != nil {
			s.log.Warn("failed to delete enrollment image", "id", id, "error", err)
		}
	}
	return nil
}

// Similar returns enrolled people whose faces lie within the threshold of the
// given person's face, nearest first.
func (s *Service) Similar(id string, limit int) ([]Duplicate, error) {
	face, ok := s.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("person %s not found", id)
	}
	dups := s.nearestOthers(face, limit)
	return dups, nil
}

func (s *Service) findDuplicates(face registry.EnrolledFace) []Duplicate {
	return s.nearestOthers(face, constants.DuplicateSearchLimit)
}

func (s *Service) nearestOthers(face registry.EnrolledFace, limit int) []Duplicate {
	if limit <= 0 {
		return nil
	}
	idx := facematch.NewIndex()
	names := make(map[string]string)
	for _, other := range s.registry.All() {
		if other.ID() == face.ID() || len(other.Embedding) != len(face.Embedding) {
			continue
		}
		idx.Add(other.ID(), other.Embedding)
		names[other.ID()] = other.Profile.Name
	}
	if idx.Len() == 0 {
		return nil
	}

	var out []Duplicate
	for _, hit := range idx.Search(face.Embedding, limit, s.threshold) {
		out = append(out, Duplicate{ID: hit.Key, Name: names[hit.Key], Distance: hit.Distance})
	}
	return out
}

func applyDefaults(p *registry.Profile) {
	p.Relation = orDefault(p.Relation, DefaultRelation)
	p.LastVisit = orDefault(p.LastVisit, DefaultLastVisit)
	p.ConversationSummary = orDefault(p.ConversationSummary, DefaultConversationSummary)
	p.CurrentUpdate = orDefault(p.CurrentUpdate, DefaultCurrentUpdate)
	p.Avatar = orDefault(p.Avatar, DefaultAvatar)
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
