package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	approvalmodels "seeddid/internal/approval/models"
	"seeddid/internal/credential/models"
	"seeddid/pkg/platform/sentinel"
)

type CredentialStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *CredentialStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestCredentialStoreSuite(t *testing.T) {
	suite.Run(t, new(CredentialStoreSuite))
}

func newCredential(post string, issuedAt time.Time) *models.Credential {
	return &models.Credential{
		ID:       uuid.New(),
		Subject:  "0xalice",
		DataType: approvalmodels.DataTypeJob,
		Issuer:   "0xalice",
		IssuedAt: issuedAt,
		Fields:   map[string]any{"post": post},
		Sealed:   map[string][]byte{"salary": {1}},
	}
}

func (s *CredentialStoreSuite) TestLatestWins() {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Save(s.ctx, newCredential("Engineer", base)))
	s.Require().NoError(s.store.Save(s.ctx, newCredential("Lead", base.Add(time.Hour))))

	latest, err := s.store.Latest(s.ctx, "0xalice", approvalmodels.DataTypeJob)
	s.Require().NoError(err)
	s.Equal("Lead", latest.Fields["post"])
	s.Equal([]byte{1}, latest.Sealed["salary"])
}

func (s *CredentialStoreSuite) TestNotFound() {
	_, err := s.store.Latest(s.ctx, "0xalice", approvalmodels.DataTypeAadhar)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *CredentialStoreSuite) TestStoredCopiesAreIsolated() {
	cred := newCredential("Engineer", time.Now())
	s.Require().NoError(s.store.Save(s.ctx, cred))
	cred.Fields["post"] = "changed"

	latest, err := s.store.Latest(s.ctx, "0xalice", approvalmodels.DataTypeJob)
	s.Require().NoError(err)
	s.Equal("Engineer", latest.Fields["post"])
}
