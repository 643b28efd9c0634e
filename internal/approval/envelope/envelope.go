// Package envelope maps approval payloads to and from message bodies.
//
// Bodies are compact JSON objects with a "type" discriminator. Anything that
// is not a recognizable envelope decodes to Unrecognized: plain chat text
// shares the channel with structured payloads and must never abort a scan.
package envelope

import (
	"encoding/json"
	"fmt"

	"seeddid/internal/approval/models"
)

// Kind is the wire discriminator.
type Kind string

const (
	KindRequest      Kind = "approval_request"
	KindResponse     Kind = "request_response"
	KindUnrecognized Kind = ""
)

// Envelope is one of Request, Response or Unrecognized.
type Envelope interface {
	Kind() Kind
	isEnvelope()
}

// Request asks the recipient to disclose fields of one credential.
type Request struct {
	Company         string
	DataType        models.DataType
	RequestedFields models.FieldSelector
}

// Response answers the request carried by message RequestID.
// DisclosedData is nil when the request was rejected. Its values must be
// JSON-native (string, float64, bool, nil, []any or map[string]any) to survive
// a round trip: other numeric types decode as float64.
type Response struct {
	RequestID     string
	Approved      bool
	DataType      models.DataType
	DisclosedData map[string]any
}

// Unrecognized is any body that is not a known envelope.
type Unrecognized struct {
	Body string
}

func (Request) Kind() Kind      { return KindRequest }
func (Response) Kind() Kind     { return KindResponse }
func (Unrecognized) Kind() Kind { return KindUnrecognized }

func (Request) isEnvelope()      {}
func (Response) isEnvelope()     {}
func (Unrecognized) isEnvelope() {}

type wireRequest struct {
	Type            Kind                 `json:"type"`
	Company         string               `json:"company"`
	DataType        models.DataType      `json:"dataType"`
	RequestedFields models.FieldSelector `json:"requestedFields"`
}

type wireResponse struct {
	Type          Kind            `json:"type"`
	RequestID     string          `json:"requestId"`
	Approved      bool            `json:"approved"`
	DataType      models.DataType `json:"dataType"`
	DisclosedData map[string]any  `json:"disclosedData"`
}

// Encode serializes e into a message body.
func Encode(e Envelope) (string, error) {
	var v any
	switch env := e.(type) {
	case Request:
		fields := env.RequestedFields
		if fields == nil {
			fields = models.FieldSelector{}
		}
		v = wireRequest{
			Type:            KindRequest,
			Company:         env.Company,
			DataType:        env.DataType,
			RequestedFields: fields,
		}
	case Response:
		v = wireResponse{
			Type:          KindResponse,
			RequestID:     env.RequestID,
			Approved:      env.Approved,
			DataType:      env.DataType,
			DisclosedData: env.DisclosedData,
		}
	case Unrecognized:
		return env.Body, nil
	default:
		return "", fmt.Errorf("unsupported envelope %T", e)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s envelope: %w", e.Kind(), err)
	}
	return string(b), nil
}

// Decode parses a message body. It never fails: bodies that are not valid
// envelopes come back as Unrecognized.
func Decode(body string) Envelope {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal([]byte(body), &head); err != nil {
		return Unrecognized{Body: body}
	}

	switch head.Type {
	case KindRequest:
		var w wireRequest
		if err := json.Unmarshal([]byte(body), &w); err != nil {
			return Unrecognized{Body: body}
		}
		// Senders refuse to emit these, so a request without them is noise.
		if w.Company == "" || w.DataType == "" {
			return Unrecognized{Body: body}
		}
		if w.RequestedFields == nil {
			w.RequestedFields = models.FieldSelector{}
		}
		return Request{
			Company:         w.Company,
			DataType:        w.DataType,
			RequestedFields: w.RequestedFields,
		}
	case KindResponse:
		var w wireResponse
		if err := json.Unmarshal([]byte(body), &w); err != nil {
			return Unrecognized{Body: body}
		}
		return Response{
			RequestID:     w.RequestID,
			Approved:      w.Approved,
			DataType:      w.DataType,
			DisclosedData: w.DisclosedData,
		}
	default:
		return Unrecognized{Body: body}
	}
}
