// Package store persists credential schemas.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"seeddid/internal/schema/models"
	"seeddid/pkg/platform/sentinel"
)

// InMemory keeps schemas in a map keyed by name.
type InMemory struct {
	mu      sync.RWMutex
	schemas map[string]*models.Schema
}

func NewInMemory() *InMemory {
	return &InMemory{schemas: make(map[string]*models.Schema)}
}

func (s *InMemory) Create(_ context.Context, schema *models.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schemas[schema.Name]; ok {
		return fmt.Errorf("schema %s: %w", schema.Name, sentinel.ErrAlreadyExists)
	}
	s.schemas[schema.Name] = clone(schema)
	return nil
}

func (s *InMemory) Get(_ context.Context, name string) (*models.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schema, ok := s.schemas[name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(schema), nil
}

// List returns schemas oldest first.
func (s *InMemory) List(_ context.Context) ([]*models.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Schema, 0, len(s.schemas))
	for _, schema := range s.schemas {
		out = append(out, clone(schema))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func clone(schema *models.Schema) *models.Schema {
	c := *schema
	c.Fields = append([]models.Field(nil), schema.Fields...)
	return &c
}
