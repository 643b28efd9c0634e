//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	approvalmodels "seeddid/internal/approval/models"
	"seeddid/internal/credential/models"
	"seeddid/internal/credential/store"
	"seeddid/internal/platform/postgres"
	"seeddid/pkg/platform/sentinel"
	"seeddid/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(postgres.Migrate(context.Background(), s.postgres.DB))
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	s.postgres.Terminate(context.Background())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background(), "credentials"))
}

func (s *PostgresStoreSuite) TestSaveAndLatest() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, post := range []string{"Engineer", "Lead"} {
		s.Require().NoError(s.store.Save(ctx, &models.Credential{
			ID:       uuid.New(),
			Subject:  "0xalice",
			DataType: approvalmodels.DataTypeJob,
			Issuer:   "0xalice",
			IssuedAt: base.Add(time.Duration(i) * time.Minute),
			Fields:   map[string]any{"post": post, "yoe": 4.0},
			Sealed:   map[string][]byte{"salary": []byte("ciphertext")},
		}))
	}

	latest, err := s.store.Latest(ctx, "0xalice", approvalmodels.DataTypeJob)
	s.Require().NoError(err)
	s.Equal("Lead", latest.Fields["post"])
	s.Equal(4.0, latest.Fields["yoe"])
	s.Equal([]byte("ciphertext"), latest.Sealed["salary"])

	_, err = s.store.Latest(ctx, "0xbob", approvalmodels.DataTypeJob)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
