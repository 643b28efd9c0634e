package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"
)

// DataType names the credential a request asks about. Aadhar and Job are
// built in; any other non-empty name refers to a custom schema.
type DataType string

const (
	DataTypeAadhar DataType = "Aadhar"
	DataTypeJob    DataType = "Job"
)

func (d DataType) IsBuiltin() bool {
	return d == DataTypeAadhar || d == DataTypeJob
}

// Operator is the comparison a requester asks to be evaluated instead of
// receiving a raw value.
type Operator string

const (
	OperatorLessThan Operator = "less"
	OperatorEquals   Operator = "equals"
	OperatorMoreThan Operator = "more"
)

func (o Operator) Valid() bool {
	switch o {
	case OperatorLessThan, OperatorEquals, OperatorMoreThan:
		return true
	}
	return false
}

// Word is the human phrase used in summaries.
func (o Operator) Word() string {
	switch o {
	case OperatorLessThan:
		return "less than"
	case OperatorEquals:
		return "equals"
	case OperatorMoreThan:
		return "more than"
	}
	return string(o)
}

// Evaluate applies the operator to a stored value and a threshold.
func (o Operator) Evaluate(stored, threshold float64) bool {
	switch o {
	case OperatorLessThan:
		return stored < threshold
	case OperatorEquals:
		return stored == threshold
	case OperatorMoreThan:
		return stored > threshold
	}
	return false
}

// Comparison asks for "<field> <operator> <value>" instead of the field itself.
type Comparison struct {
	Operator Operator `json:"operator"`
	Value    float64  `json:"value"`
}

// FieldRequest is one entry of a FieldSelector. On the wire it is either a
// boolean flag or a comparison object.
type FieldRequest struct {
	Flag       bool
	Comparison *Comparison
}

// Disclose requests the raw field value.
func Disclose() FieldRequest { return FieldRequest{Flag: true} }

// Compare requests a comparison result.
func Compare(op Operator, value float64) FieldRequest {
	return FieldRequest{Comparison: &Comparison{Operator: op, Value: value}}
}

// Requested reports whether the entry asks for anything.
func (f FieldRequest) Requested() bool {
	return f.Flag || f.Comparison != nil
}

func (f FieldRequest) MarshalJSON() ([]byte, error) {
	if f.Comparison != nil {
		return json.Marshal(f.Comparison)
	}
	return json.Marshal(f.Flag)
}

func (f *FieldRequest) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")):
		*f = FieldRequest{Flag: true}
		return nil
	case bytes.Equal(data, []byte("false")), bytes.Equal(data, []byte("null")):
		*f = FieldRequest{}
		return nil
	}
	var c Comparison
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("field request must be a boolean or comparison: %w", err)
	}
	if !c.Operator.Valid() {
		return fmt.Errorf("unknown comparison operator %q", c.Operator)
	}
	*f = FieldRequest{Comparison: &c}
	return nil
}

// FieldSelector maps field names to what the requester wants disclosed.
// Absent or false entries are not requested.
type FieldSelector map[string]FieldRequest

// Requested returns the selector without entries that ask for nothing.
func (s FieldSelector) Requested() FieldSelector {
	out := make(FieldSelector, len(s))
	for name, req := range s {
		if req.Requested() {
			out[name] = req
		}
	}
	return out
}

// Capitalize upper-cases the first letter of a field name for display.
func Capitalize(field string) string {
	r, size := utf8.DecodeRuneInString(field)
	if r == utf8.RuneError {
		return field
	}
	return string(unicode.ToUpper(r)) + field[size:]
}

// OpenRequest is an approval request addressed to the caller that has no
// response with a matching request id in its conversation yet.
type OpenRequest struct {
	RequestID       string        `json:"request_id"`
	Company         string        `json:"company"`
	DataType        DataType      `json:"data_type"`
	RequestedFields FieldSelector `json:"requested_fields"`
	PeerAddress     string        `json:"peer_address"`
	ConversationID  string        `json:"conversation_id"`
	ReceivedAt      time.Time     `json:"received_at"`
}

// RequestKey identifies a request across conversations. Message ids repeat
// between conversations, so the request id alone is ambiguous.
type RequestKey struct {
	ConversationID string
	RequestID      string
}

func (r OpenRequest) Key() RequestKey {
	return RequestKey{ConversationID: r.ConversationID, RequestID: r.RequestID}
}

// ReceivedResponse is a response to a request the caller sent.
type ReceivedResponse struct {
	RequestID     string         `json:"request_id"`
	PeerAddress   string         `json:"peer_address"`
	Approved      bool           `json:"approved"`
	DataType      DataType       `json:"data_type"`
	DisclosedData map[string]any `json:"disclosed_data"`
	RespondedAt   time.Time      `json:"responded_at"`
	// Request is the original request when it is still in the conversation history.
	Request *OpenRequest `json:"request,omitempty"`
}
