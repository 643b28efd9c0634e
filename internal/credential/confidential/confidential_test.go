package confidential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seeddid/internal/approval/models"
	"seeddid/internal/platform/secrets"
)

func newSealer(t *testing.T) *Sealer {
	t.Helper()
	key, err := secrets.GenerateKey()
	require.NoError(t, err)
	box, err := secrets.NewBox(key)
	require.NoError(t, err)
	return New(box)
}

func TestCompareWithoutRevealing(t *testing.T) {
	s := newSealer(t)
	sealed, err := s.Seal("0xalice", models.DataTypeJob, "salary", 85000.0)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "85000")

	cases := []struct {
		cmp  models.Comparison
		want bool
	}{
		{models.Comparison{Operator: models.OperatorMoreThan, Value: 80000}, true},
		{models.Comparison{Operator: models.OperatorLessThan, Value: 80000}, false},
		{models.Comparison{Operator: models.OperatorEquals, Value: 85000}, true},
	}
	for _, tc := range cases {
		got, err := s.Compare(sealed, "0xalice", models.DataTypeJob, "salary", tc.cmp)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s %v", tc.cmp.Operator, tc.cmp.Value)
	}
}

func TestCompareIsBoundToOwner(t *testing.T) {
	s := newSealer(t)
	sealed, err := s.Seal("0xalice", models.DataTypeJob, "salary", 1)
	require.NoError(t, err)

	_, err = s.Compare(sealed, "0xbob", models.DataTypeJob, "salary", models.Comparison{Operator: models.OperatorMoreThan})
	assert.Error(t, err)
	_, err = s.Compare(sealed, "0xalice", models.DataTypeJob, "yoe", models.Comparison{Operator: models.OperatorMoreThan})
	assert.Error(t, err)
}

func TestCompareRejectsText(t *testing.T) {
	s := newSealer(t)
	sealed, err := s.Seal("0xalice", "Degree", "university", "MIT")
	require.NoError(t, err)

	_, err = s.Compare(sealed, "0xalice", "Degree", "university", models.Comparison{Operator: models.OperatorEquals})
	assert.ErrorIs(t, err, ErrNotNumeric)
}
