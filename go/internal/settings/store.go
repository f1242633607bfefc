package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Persister stores the flat configuration blob.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Store holds the authoritative configuration and guards every write with
// schema validation. Batches apply all-or-nothing.
type Store struct {
	mu        sync.RWMutex
	cfg       Config
	persister Persister
}

// NewStore creates a store seeded with the factory defaults.
func NewStore(persister Persister) *Store {
	return &Store{
		cfg:       Default(),
		persister: persister,
	}
}

// Config returns a copy of the typed configuration.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Flat returns the current configuration as a flat key/value map.
func (s *Store) Flat() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Flatten(s.cfg)
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (any, error) {
	f, ok := schemaIndex[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return f.get(&s.cfg), nil
}

// Matching returns every key/value whose key fully matches pattern.
func (s *Store) Matching(pattern *regexp.Regexp) map[string]any {
	full := regexp.MustCompile(`^(?:` + pattern.String() + `)$`)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any)
	for _, f := range schema {
		if full.MatchString(f.key) {
			out[f.key] = f.get(&s.cfg)
		}
	}
	return out
}

// ActiveSlotField returns one slot field across all active slots, keyed by slot index.
func (s *Store) ActiveSlotField(name string) map[int]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int]any)
	for i := 0; i < MaxSlots; i++ {
		if !s.cfg.Slots[i].Active() {
			continue
		}
		if f, ok := schemaIndex[SlotKey(i, name)]; ok {
			out[i] = f.get(&s.cfg)
		}
	}
	return out
}

// ApplyBatch validates every update against the schema and applies them
// together. Nothing changes when any key is unknown, any value is malformed
// or the candidate cannot be persisted.
func (s *Store) ApplyBatch(ctx context.Context, updates map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := s.cfg
	if err := applyInto(&candidate, updates); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, candidate); err != nil {
		return nil, err
	}

	s.cfg = candidate
	log.Info().Int("keys", len(updates)).Msg("configuration updated")
	return Flatten(s.cfg), nil
}

// Load replaces the configuration with the persisted blob. A blob naming an
// unknown key is rejected as a whole and the current values are kept.
// Keys missing from the blob keep their current values.
func (s *Store) Load(ctx context.Context) (bool, error) {
	if s.persister == nil {
		return false, nil
	}

	data, err := s.persister.Load(ctx)
	if errors.Is(err, ErrNoBlob) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read settings: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return false, fmt.Errorf("failed to parse settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := s.cfg
	if err := applyInto(&candidate, raw); err != nil {
		return false, fmt.Errorf("rejected persisted settings: %w", err)
	}
	s.cfg = candidate
	return true, nil
}

// Save writes the full configuration. Nothing calls it implicitly; a
// persisted blob is only replaced by an explicit save or an accepted batch.
func (s *Store) Save(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persist(ctx, s.cfg)
}

func (s *Store) persist(ctx context.Context, cfg Config) error {
	if s.persister == nil {
		return nil
	}
	data, err := json.MarshalIndent(Flatten(cfg), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.persister.Save(ctx, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// applyInto walks updates in key order so the first offending key is stable.
func applyInto(cfg *Config, updates map[string]any) error {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		f, ok := schemaIndex[k]
		if !ok {
			return &UnknownKeyError{Key: k}
		}
		if err := f.assign(cfg, updates[k]); err != nil {
			return err
		}
	}
	return nil
}
