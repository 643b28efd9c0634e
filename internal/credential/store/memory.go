// Package store persists issued credentials.
package store

import (
	"context"
	"maps"
	"sync"

	approvalmodels "seeddid/internal/approval/models"
	"seeddid/internal/credential/models"
	"seeddid/pkg/platform/sentinel"
)

type key struct {
	subject  string
	dataType approvalmodels.DataType
}

// InMemory keeps every issued credential; reads return the newest.
type InMemory struct {
	mu    sync.RWMutex
	creds map[key][]*models.Credential
}

func NewInMemory() *InMemory {
	return &InMemory{creds: make(map[key][]*models.Credential)}
}

func (s *InMemory) Save(_ context.Context, cred *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{cred.Subject, cred.DataType}
	s.creds[k] = append(s.creds[k], clone(cred))
	return nil
}

// Latest returns the most recently issued credential of dataType for subject.
func (s *InMemory) Latest(_ context.Context, subject string, dataType approvalmodels.DataType) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.creds[key{subject, dataType}]
	if len(list) == 0 {
		return nil, sentinel.ErrNotFound
	}
	latest := list[0]
	for _, c := range list[1:] {
		if !c.IssuedAt.Before(latest.IssuedAt) {
			latest = c
		}
	}
	return clone(latest), nil
}

func clone(c *models.Credential) *models.Credential {
	out := *c
	out.Fields = maps.Clone(c.Fields)
	out.Sealed = maps.Clone(c.Sealed)
	return &out
}
