package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	approvalmodels "seeddid/internal/approval/models"
)

// Credential is an attribute set issued to Subject. Sealed holds the
// encrypted fields; their names never appear in Fields.
type Credential struct {
	ID       uuid.UUID               `json:"id"`
	Subject  string                  `json:"subject"`
	DataType approvalmodels.DataType `json:"dataType"`
	Issuer   string                  `json:"issuer"`
	IssuedAt time.Time               `json:"issuedAt"`
	Fields   map[string]any          `json:"fields"`
	Sealed   map[string][]byte       `json:"-"`
}

// Lookup finds a field name case-insensitively, returning the stored spelling.
func (c *Credential) Lookup(field string) (name string, sealed bool, ok bool) {
	if _, ok := c.Fields[field]; ok {
		return field, false, true
	}
	if _, ok := c.Sealed[field]; ok {
		return field, true, true
	}
	for name := range c.Fields {
		if strings.EqualFold(name, field) {
			return name, false, true
		}
	}
	for name := range c.Sealed {
		if strings.EqualFold(name, field) {
			return name, true, true
		}
	}
	return "", false, false
}

// IssueRequest is the body of POST /credentials. Subject defaults to the
// signed-in address.
type IssueRequest struct {
	Subject  string                  `json:"subject"`
	DataType approvalmodels.DataType `json:"dataType"`
	Fields   map[string]any          `json:"fields"`
}

// View is a credential as shown to its holder: sealed fields are listed by
// name only.
type View struct {
	ID           uuid.UUID               `json:"id"`
	DataType     approvalmodels.DataType `json:"dataType"`
	Issuer       string                  `json:"issuer"`
	IssuedAt     time.Time               `json:"issuedAt"`
	Fields       map[string]any          `json:"fields"`
	SealedFields []string                `json:"sealedFields"`
}

func (c *Credential) View() View {
	sealed := make([]string, 0, len(c.Sealed))
	for name := range c.Sealed {
		sealed = append(sealed, name)
	}
	sort.Strings(sealed)
	return View{
		ID:           c.ID,
		DataType:     c.DataType,
		Issuer:       c.Issuer,
		IssuedAt:     c.IssuedAt,
		Fields:       c.Fields,
		SealedFields: sealed,
	}
}
