package models

import (
	"strings"
	"time"
)

// Field describes one attribute of a credential schema.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
	// IsEncrypted fields are sealed at issuance and only ever disclosed as
	// comparison results.
	IsEncrypted bool `json:"isEncrypted"`
}

// Schema is a named, issuer-defined credential layout.
type Schema struct {
	Name      string    `json:"name"`
	Fields    []Field   `json:"fields"`
	CreatedAt time.Time `json:"createdAt"`
}

// Field looks up a field by name, ignoring case.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Field{}, false
}

// CreateSchemaRequest is the body of POST /schema.
type CreateSchemaRequest struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}
