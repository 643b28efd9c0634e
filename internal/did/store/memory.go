// Package store persists DIDs keyed by wallet address.
package store

import (
	"context"
	"fmt"
	"sync"

	"seeddid/internal/did/models"
	"seeddid/pkg/platform/sentinel"
)

type InMemory struct {
	mu   sync.RWMutex
	dids map[string]*models.DID
}

func NewInMemory() *InMemory {
	return &InMemory{dids: make(map[string]*models.DID)}
}

func (s *InMemory) Create(_ context.Context, did *models.DID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dids[did.Address]; ok {
		return fmt.Errorf("did %s: %w", did.Address, sentinel.ErrAlreadyExists)
	}
	c := *did
	c.SealedPrivateKey = append([]byte(nil), did.SealedPrivateKey...)
	s.dids[did.Address] = &c
	return nil
}

func (s *InMemory) FindByAddress(_ context.Context, address string) (*models.DID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	did, ok := s.dids[address]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *did
	return &c, nil
}
