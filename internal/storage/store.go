// Package storage persists per-client documents grouped into named stores
// (one per concern: intake profiles, advisor results, and so on).
package storage

import (
	"errors"
	"fmt"

	"github.com/kalambet/collegeai/internal/document"
)

// Store names.
const (
	IntakeProfiles             = "intake_profiles"
	AdvisorResults             = "advisor_results"
	CVReviewResults            = "cv_review_results"
	ScholarshipRecommendations = "scholarship_recommendations"
	PrepSuggestions            = "prep_suggestions"
	ScholarshipsProfiles       = "scholarships_profiles"
	ChatHistory                = "chat_history"
)

// ContextStores lists, in order, the stores aggregated into the chat context.
var ContextStores = []string{
	IntakeProfiles,
	AdvisorResults,
	CVReviewResults,
	ScholarshipRecommendations,
	PrepSuggestions,
	ScholarshipsProfiles,
}

var (
	// ErrStoreNotFound is returned by Load when the named store was never saved.
	ErrStoreNotFound = errors.New("store not found")
	// ErrMalformed is returned by Load when the stored data cannot be decoded.
	ErrMalformed = errors.New("malformed store data")
	// ErrNotFound is returned by Get when the client has no entry.
	ErrNotFound = errors.New("not found")
)

// DocumentStore loads and saves whole stores keyed by client id.
type DocumentStore interface {
	Load(store string) (map[string]document.Document, error)
	Save(store string, docs map[string]document.Document) error
}

// Get returns the client's document from store. A missing store or entry
// yields ErrNotFound.
func Get(s DocumentStore, store, clientID string) (document.Document, error) {
	all, err := s.Load(store)
	if errors.Is(err, ErrStoreNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc, ok := all[clientID]
	if !ok || doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Put replaces the client's document in store, keeping other clients.
func Put(s DocumentStore, store, clientID string, doc document.Document) error {
	all, err := loadForWrite(s, store)
	if err != nil {
		return err
	}
	all[clientID] = doc
	return s.Save(store, all)
}

// Patch applies ops to the client's document in store, creating it when
// missing, and returns the updated document.
func Patch(s DocumentStore, store, clientID string, ops []document.PatchOp) (document.Document, error) {
	all, err := loadForWrite(s, store)
	if err != nil {
		return nil, err
	}
	doc := all[clientID]
	if doc == nil {
		doc = document.Document{}
	}
	document.ApplyPatches(doc, ops)
	all[clientID] = doc
	if err := s.Save(store, all); err != nil {
		return nil, err
	}
	return doc, nil
}

// loadForWrite treats a missing store as empty. A malformed store is an
// error: saving over it would drop every other client's document.
func loadForWrite(s DocumentStore, store string) (map[string]document.Document, error) {
	all, err := s.Load(store)
	switch {
	case err == nil:
	case errors.Is(err, ErrStoreNotFound):
		all = nil
	default:
		return nil, fmt.Errorf("loading %s for write: %w", store, err)
	}
	if all == nil {
		all = map[string]document.Document{}
	}
	return all, nil
}
