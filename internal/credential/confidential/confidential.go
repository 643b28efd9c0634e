// Package confidential keeps encrypted credential fields sealed and answers
// comparison queries against them without returning the value.
package confidential

import (
	"encoding/json"
	"errors"
	"fmt"

	"seeddid/internal/approval/disclosure"
	"seeddid/internal/approval/models"
	"seeddid/internal/platform/secrets"
)

var ErrNotNumeric = errors.New("confidential: sealed value is not numeric")

type Sealer struct {
	box *secrets.Box
}

func New(box *secrets.Box) *Sealer {
	return &Sealer{box: box}
}

// Seal encrypts value bound to its subject, credential type and field.
func (s *Sealer) Seal(subject string, dataType models.DataType, field string, value any) ([]byte, error) {
	plain, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", field, err)
	}
	return s.box.Seal(plain, aad(subject, dataType, field))
}

// Compare evaluates cmp against a sealed numeric value.
func (s *Sealer) Compare(sealed []byte, subject string, dataType models.DataType, field string, cmp models.Comparison) (bool, error) {
	plain, err := s.box.Open(sealed, aad(subject, dataType, field))
	if err != nil {
		return false, fmt.Errorf("open %s: %w", field, err)
	}
	var value any
	if err := json.Unmarshal(plain, &value); err != nil {
		return false, fmt.Errorf("decode %s: %w", field, err)
	}
	stored, ok := disclosure.ToFloat(value)
	if !ok {
		return false, ErrNotNumeric
	}
	return cmp.Operator.Evaluate(stored, cmp.Value), nil
}

func aad(subject string, dataType models.DataType, field string) []byte {
	return []byte(subject + "\x00" + string(dataType) + "\x00" + field)
}
