package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"seeddid/internal/approval/disclosure"
	"seeddid/internal/approval/envelope"
	"seeddid/internal/approval/models"
	"seeddid/internal/messaging"
)

const (
	self    = "0xuser"
	company = "0xacme"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeSource struct {
	values map[string]disclosure.Value
	// sealed values are only reachable through RevealComparison.
	sealed map[string]float64
}

func (f fakeSource) FieldValue(_ context.Context, _ string, _ models.DataType, field string) (disclosure.Value, error) {
	if _, ok := f.sealed[field]; ok {
		return disclosure.Value{Sealed: true}, nil
	}
	v, ok := f.values[field]
	if !ok {
		return disclosure.Value{}, disclosure.ErrFieldNotFound
	}
	return v, nil
}

func (f fakeSource) RevealComparison(_ context.Context, _ string, _ models.DataType, field string, cmp models.Comparison) (bool, error) {
	v, ok := f.sealed[field]
	if !ok {
		return false, disclosure.ErrFieldNotFound
	}
	return cmp.Operator.Evaluate(v, cmp.Value), nil
}

func conversationWith(peer string) messaging.Conversation {
	return messaging.Conversation{
		ID:          messaging.ConversationID(self, peer),
		PeerAddress: peer,
		CreatedAt:   baseTime,
	}
}

func encode(t *testing.T, env envelope.Envelope) string {
	t.Helper()
	body, err := envelope.Encode(env)
	require.NoError(t, err)
	return body
}

func requestMsg(t *testing.T, id, sender, companyName string, fields models.FieldSelector) messaging.Message {
	t.Helper()
	return messaging.Message{
		ID:            id,
		SenderAddress: sender,
		SentAt:        baseTime,
		Body: encode(t, envelope.Request{
			Company:         companyName,
			DataType:        models.DataTypeAadhar,
			RequestedFields: fields,
		}),
	}
}

func responseMsg(t *testing.T, id, sender, requestID string, approved bool) messaging.Message {
	t.Helper()
	return messaging.Message{
		ID:            id,
		SenderAddress: sender,
		SentAt:        baseTime.Add(time.Minute),
		Body: encode(t, envelope.Response{
			RequestID: requestID,
			Approved:  approved,
			DataType:  models.DataTypeAadhar,
		}),
	}
}

func chatMsg(id, sender, body string) messaging.Message {
	return messaging.Message{ID: id, SenderAddress: sender, SentAt: baseTime, Body: body}
}

func requestIDs(reqs []models.OpenRequest) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.RequestID)
	}
	return out
}

func keyOf(peer, requestID string) models.RequestKey {
	return models.RequestKey{ConversationID: messaging.ConversationID(self, peer), RequestID: requestID}
}
