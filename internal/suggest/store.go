// Package suggest provides the file-backed suggestion store used to enrich
// user prompts with prior related requests.
package suggest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/loop-index/forge/internal/domain"
)

const maxSearchResults = 5

// Store implements domain.SuggestionService on top of a JSON file.
type Store struct {
	path string
	mu   sync.RWMutex
}

type storeFile struct {
	Suggestions []domain.Suggestion `json:"suggestions"`
}

// NewStore creates a store persisting to the given directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}
	return &Store{path: filepath.Join(dir, "suggestions.json")}, nil
}

// Search returns stored suggestions matching the query, newest first.
func (s *Store) Search(ctx context.Context, query string) ([]domain.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, err := s.load()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var matches []domain.Suggestion
	for i := len(stored.Suggestions) - 1; i >= 0 && len(matches) < maxSearchResults; i-- {
		candidate := stored.Suggestions[i]
		if needle == "" || strings.Contains(strings.ToLower(candidate.Suggestion), needle) {
			matches = append(matches, candidate)
		}
	}
	return matches, nil
}

// Insert appends a suggestion and persists the store.
func (s *Store) Insert(ctx context.Context, suggestion domain.Suggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.load()
	if err != nil {
		return err
	}
	stored.Suggestions = append(stored.Suggestions, suggestion)

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0640)
}

func (s *Store) load() (*storeFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &storeFile{}, nil
		}
		return nil, err
	}

	var stored storeFile
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}
