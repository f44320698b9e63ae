package profile

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/storage"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type cacheEntry struct {
	doc document.Document
	at  time.Time
}

// Manager provides cached access to intake profiles kept in the
// intake_profiles store. Every profile it hands out is a private copy.
type Manager struct {
	store storage.DocumentStore
	clock Clock
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store storage.DocumentStore) *Manager {
	return NewManagerWithClock(store, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store storage.DocumentStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
	}
}

// Get returns the stored profile for clientID, or storage.ErrNotFound.
func (m *Manager) Get(clientID string) (document.Document, error) {
	m.mu.RLock()
	if e, ok := m.cache[clientID]; ok && m.clock.Now().Before(e.at.Add(m.ttl)) {
		doc := document.Clone(e.doc)
		m.mu.RUnlock()
		return doc, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.cache[clientID]; ok && m.clock.Now().Before(e.at.Add(m.ttl)) {
		return document.Clone(e.doc), nil
	}

	doc, err := storage.Get(m.store, storage.IntakeProfiles, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("loading profile %s: %w", clientID, err)
	}
	m.cache[clientID] = cacheEntry{doc: doc, at: m.clock.Now()}
	return document.Clone(doc), nil
}

// GetOrNew returns the stored profile, or a fresh template when the client
// has none yet. The template is not persisted.
func (m *Manager) GetOrNew(clientID string) (document.Document, error) {
	doc, err := m.Get(clientID)
	if errors.Is(err, storage.ErrNotFound) {
		return New(), nil
	}
	return doc, err
}

// Exists reports whether clientID has a stored profile.
func (m *Manager) Exists(clientID string) (bool, error) {
	_, err := m.Get(clientID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Create stores a fresh template for clientID unless one already exists and
// returns the stored profile.
func (m *Manager) Create(clientID string) (document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := storage.Get(m.store, storage.IntakeProfiles, clientID)
	if err == nil {
		return document.Clone(doc), nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("loading profile %s: %w", clientID, err)
	}
	doc = New()
	if err := storage.Put(m.store, storage.IntakeProfiles, clientID, doc); err != nil {
		return nil, fmt.Errorf("creating profile %s: %w", clientID, err)
	}
	delete(m.cache, clientID)
	return document.Clone(doc), nil
}

// Patch applies ops to the stored profile, starting from the template when
// the client has none, persists it and returns the result.
func (m *Manager) Patch(clientID string, ops []document.PatchOp) (document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := storage.Get(m.store, storage.IntakeProfiles, clientID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("loading profile %s: %w", clientID, err)
		}
		doc = New()
	}
	document.ApplyPatches(doc, ops)
	if err := storage.Put(m.store, storage.IntakeProfiles, clientID, doc); err != nil {
		return nil, fmt.Errorf("saving profile %s: %w", clientID, err)
	}
	delete(m.cache, clientID)
	return document.Clone(doc), nil
}

// Summary returns the prompt summary of the client's profile.
func (m *Manager) Summary(clientID string) (string, error) {
	doc, err := m.Get(clientID)
	if err != nil {
		return "", fmt.Errorf("getting profile for summary: %w", err)
	}
	return Summarize(doc), nil
}
