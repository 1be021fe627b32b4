package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/memory-anchor/internal/constants"
	"github.com/kozaktomas/memory-anchor/internal/database"
	"github.com/kozaktomas/memory-anchor/internal/facematch"
	"github.com/kozaktomas/memory-anchor/internal/logger"
)

// ErrStorageCorrupt marks a persisted registry that could not be read back.
// Load recovers from it by starting empty.
var ErrStorageCorrupt = errors.New("registry storage corrupt")

// IsStorageCorrupt reports whether err came from an unreadable store.
func IsStorageCorrupt(err error) bool {
	return errors.Is(err, ErrStorageCorrupt)
}

// Store is the persistence boundary. Get returns database.ErrNotFound for a
// key that was never written.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

type snapshot struct {
	faces []EnrolledFace
	index map[string]int
}

var emptySnapshot = &snapshot{index: map[string]int{}}

// Registry is safe for concurrent use. Readers load the current snapshot
// without locking; writers serialize on mu, build a new snapshot and publish
// it with a single pointer swap.
type Registry struct {
	store   Store
	key     string
	log     *logger.Logger
	onSize  func(int)
	nowFunc func() time.Time

	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// Option configures a Registry.
type Option func(*Registry)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(r *Registry) {
		if key != "" {
			r.key = key
		}
	}
}

// WithLogger sets the logger used for load warnings.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.log = logger.OrNop(l) }
}

// WithSizeObserver is called with the record count after every change.
func WithSizeObserver(fn func(int)) Option {
	return func(r *Registry) { r.onSize = fn }
}

// New creates an empty registry. A nil store keeps everything in memory.
func New(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:   store,
		key:     constants.RegistryKey,
		log:     logger.Nop(),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.snap.Store(emptySnapshot)
	return r
}

// All returns the current records in insertion order. The slice is owned by
// the caller; later mutations never show up in it.
func (r *Registry) All() []EnrolledFace {
	return slices.Clone(r.snap.Load().faces)
}

// Get returns the record for id.
func (r *Registry) Get(id string) (EnrolledFace, bool) {
	s := r.snap.Load()
	i, ok := s.index[id]
	if !ok {
		return EnrolledFace{}, false
	}
	return s.faces[i], true
}

// Len returns the number of records.
func (r *Registry) Len() int {
	return len(r.snap.Load().faces)
}

// FindByName returns records whose name matches query, ignoring case and diacritics.
func (r *Registry) FindByName(query string) []EnrolledFace {
	var out []EnrolledFace
	for _, f := range r.snap.Load().faces {
		if facematch.NameMatches(query, f.Profile.Name) {
			out = append(out, f)
		}
	}
	return out
}

// Put inserts face or replaces the record with the same id, then saves.
// When saving fails the new record stays visible and the error is returned.
func (r *Registry) Put(ctx context.Context, face EnrolledFace) error {
	if face.ID() == "" {
		return errors.New("face id is required")
	}
	face = face.clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	next := &snapshot{faces: slices.Clone(cur.faces), index: maps.Clone(cur.index)}
	if i, ok := next.index[face.ID()]; ok {
		next.faces[i] = face
	} else {
		next.index[face.ID()] = len(next.faces)
		next.faces = append(next.faces, face)
	}
	r.publishLocked(next)

	return r.saveLocked(ctx)
}

// Remove deletes the record for id. Removing an unknown id is a no-op.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	pos, ok := cur.index[id]
	if !ok {
		return nil
	}

	next := &snapshot{
		faces: slices.Delete(slices.Clone(cur.faces), pos, pos+1),
		index: make(map[string]int, len(cur.index)-1),
	}
	for i, f := range next.faces {
		next.index[f.ID()] = i
	}
	r.publishLocked(next)

	return r.saveLocked(ctx)
}

// Replace swaps the whole content at once, used by import.
func (r *Registry) Replace(ctx context.Context, faces []EnrolledFace) error {
	next := &snapshot{index: make(map[string]int, len(faces))}
	for _, f := range faces {
		if f.ID() == "" {
			continue
		}
		f = f.clone()
		if i, ok := next.index[f.ID()]; ok {
			next.faces[i] = f
			continue
		}
		next.index[f.ID()] = len(next.faces)
		next.faces = append(next.faces, f)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishLocked(next)
	return r.saveLocked(ctx)
}

// Load restores the registry from the store. A missing key gives an empty
// registry. An unreadable store also gives an empty registry; the returned
// error then wraps ErrStorageCorrupt and is meant as a warning.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store == nil {
		r.publishLocked(emptySnapshot)
		return nil
	}

	data, err := r.store.Get(ctx, r.key)
	if errors.Is(err, database.ErrNotFound) {
		r.publishLocked(emptySnapshot)
		return nil
	}
	if err != nil {
		r.publishLocked(emptySnapshot)
		r.log.Warn("registry store unreadable, starting empty", "key", r.key, "error", err)
		return fmt.Errorf("%w: %w", ErrStorageCorrupt, err)
	}

	faces, err := Decode(data)
	if err != nil {
		r.publishLocked(emptySnapshot)
		r.log.Warn("registry data corrupt, starting empty", "key", r.key, "error", err)
		return err
	}

	next := &snapshot{faces: faces, index: make(map[string]int, len(faces))}
	for i, f := range faces {
		next.index[f.ID()] = i
	}
	r.publishLocked(next)
	r.log.Info("registry loaded", "key", r.key, "faces", len(faces))
	return nil
}

// Save writes the current snapshot to the store.
func (r *Registry) Save(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(ctx)
}

// Export returns the serialized registry.
func (r *Registry) Export() ([]byte, error) {
	return Encode(r.snap.Load().faces, r.nowFunc())
}

func (r *Registry) saveLocked(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	data, err := Encode(r.snap.Load().faces, r.nowFunc())
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, r.key, data); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

func (r *Registry) publishLocked(s *snapshot) {
	r.snap.Store(s)
	if r.onSize != nil {
		r.onSize(len(s.faces))
	}
}

// Match returns the enrolled face nearest to query when it is strictly closer
// than threshold. Ties go to the earlier record of the snapshot.
func Match(query facematch.Embedding, faces []EnrolledFace, threshold float64) (*EnrolledFace, float64) {
	idx, distance, ok := facematch.Nearest(query, faces, func(f EnrolledFace) facematch.Embedding {
		return f.Embedding
	}, threshold)
	if !ok {
		return nil, distance
	}
	face := faces[idx]
	return &face, distance
}
