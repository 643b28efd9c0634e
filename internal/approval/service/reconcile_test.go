package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"seeddid/internal/approval/disclosure"
	"seeddid/internal/approval/envelope"
	"seeddid/internal/approval/models"
	"seeddid/internal/messaging"
	"seeddid/internal/messaging/mocks"
	"seeddid/internal/messaging/store/memory"
)

func permutations(msgs []messaging.Message) [][]messaging.Message {
	if len(msgs) <= 1 {
		return [][]messaging.Message{append([]messaging.Message(nil), msgs...)}
	}
	var out [][]messaging.Message
	for i := range msgs {
		rest := make([]messaging.Message, 0, len(msgs)-1)
		rest = append(rest, msgs[:i]...)
		rest = append(rest, msgs[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]messaging.Message{msgs[i]}, p...))
		}
	}
	return out
}

func TestOpenRequestsIgnoreMessageOrder(t *testing.T) {
	conv := conversationWith(company)
	history := []messaging.Message{
		requestMsg(t, "m1", company, "Acme", models.FieldSelector{"name": models.Disclose()}),
		requestMsg(t, "m2", company, "Acme", models.FieldSelector{"age": models.Disclose()}),
		requestMsg(t, "m3", company, "Acme", models.FieldSelector{"dob": models.Disclose()}),
		responseMsg(t, "r1", self, "m2", true),
		chatMsg("c1", company, "ping"),
	}

	for _, perm := range permutations(history) {
		open, unrecognized := openInConversation(conv, perm, self)
		ids := requestIDs(open)
		assert.ElementsMatch(t, []string{"m1", "m3"}, ids)
		assert.Equal(t, 1, unrecognized)
	}
}

func TestOpenRequestsDeduplicateIDs(t *testing.T) {
	conv := conversationWith(company)
	req := requestMsg(t, "m1", company, "Acme", models.FieldSelector{"name": models.Disclose()})

	open, _ := openInConversation(conv, []messaging.Message{req, req}, self)
	assert.Equal(t, []string{"m1"}, requestIDs(open))
}

func TestEveryRequestAnsweredYieldsNothing(t *testing.T) {
	conv := conversationWith(company)
	open, _ := openInConversation(conv, []messaging.Message{
		requestMsg(t, "m1", company, "Acme", nil),
		requestMsg(t, "m2", company, "Acme", nil),
		responseMsg(t, "r2", self, "m2", false),
		responseMsg(t, "r1", self, "m1", true),
	}, self)
	assert.Empty(t, open)
}

func TestOpenSet(t *testing.T) {
	set := newOpenSet()
	set.add(models.OpenRequest{ConversationID: "c1", RequestID: "a", Company: "first"})
	set.add(models.OpenRequest{ConversationID: "c1", RequestID: "b"})
	set.add(models.OpenRequest{ConversationID: "c1", RequestID: "a", Company: "second"})
	set.add(models.OpenRequest{ConversationID: "c2", RequestID: "a", Company: "other"})

	assert.Equal(t, 3, set.Len())
	got, ok := set.Get(models.RequestKey{ConversationID: "c1", RequestID: "a"})
	require.True(t, ok)
	assert.Equal(t, "first", got.Company)
	got, ok = set.Get(models.RequestKey{ConversationID: "c2", RequestID: "a"})
	require.True(t, ok)
	assert.Equal(t, "other", got.Company)

	assert.True(t, set.Retire(models.RequestKey{ConversationID: "c1", RequestID: "a"}))
	assert.False(t, set.Retire(models.RequestKey{ConversationID: "c1", RequestID: "a"}))
	assert.Equal(t, []string{"b", "a"}, requestIDs(set.List()))
	_, ok = set.Get(models.RequestKey{ConversationID: "c2", RequestID: "a"})
	assert.True(t, ok, "retiring in one conversation leaves the other")
}

// Message ids are only unique inside a conversation. Two peers can each hold
// an open request with the same id and both must be listed and answerable.
func TestRequestIDsScopedPerConversation(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	ch := mocks.NewMockChannel(ctrl)
	ch.EXPECT().Address().Return(self).AnyTimes()

	const acme, globex = "0xpeera", "0xpeerb"
	acmeConv, globexConv := conversationWith(acme), conversationWith(globex)
	acmeReq := requestMsg(t, "1", acme, "Acme", models.FieldSelector{"name": models.Disclose()})
	globexReq := requestMsg(t, "1", globex, "Globex", models.FieldSelector{"age": models.Disclose()})

	svc, err := New(fakeSource{values: map[string]disclosure.Value{"name": {Raw: "Asha"}}})
	require.NoError(t, err)

	ch.EXPECT().ListConversations(gomock.Any()).Return([]messaging.Conversation{acmeConv, globexConv}, nil)
	ch.EXPECT().ListMessages(gomock.Any(), acmeConv).Return([]messaging.Message{acmeReq}, nil)
	ch.EXPECT().ListMessages(gomock.Any(), globexConv).Return([]messaging.Message{globexReq}, nil)

	set, err := svc.ScanOpenRequests(ctx, ch, self)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	open := set.List()
	assert.Equal(t, "Acme", open[0].Company)
	assert.Equal(t, "Globex", open[1].Company)

	var sent string
	ch.EXPECT().NewConversation(gomock.Any(), acme).Return(acmeConv, nil)
	ch.EXPECT().Send(gomock.Any(), acmeConv, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ messaging.Conversation, body string) (messaging.Receipt, error) {
			sent = body
			return messaging.Receipt{MessageID: "2"}, nil
		})

	_, err = svc.Respond(ctx, ch, set, keyOf(acme, "1"), true)
	require.NoError(t, err)
	resp, ok := envelope.Decode(sent).(envelope.Response)
	require.True(t, ok)
	assert.Equal(t, "1", resp.RequestID)
	assert.Equal(t, map[string]any{"name": "Asha"}, resp.DisclosedData)

	require.Equal(t, 1, set.Len())
	left, ok := set.Get(keyOf(globex, "1"))
	require.True(t, ok, "answering one conversation leaves the other open")
	assert.Equal(t, "Globex", left.Company)

	answered := responseMsg(t, "2", self, "1", true)
	ch.EXPECT().ListConversations(gomock.Any()).Return([]messaging.Conversation{acmeConv, globexConv}, nil)
	ch.EXPECT().ListMessages(gomock.Any(), acmeConv).Return([]messaging.Message{acmeReq, answered}, nil)
	ch.EXPECT().ListMessages(gomock.Any(), globexConv).Return([]messaging.Message{globexReq}, nil)

	rescanned, err := svc.ScanOpenRequests(ctx, ch, self)
	require.NoError(t, err)
	require.Equal(t, 1, rescanned.Len())
	_, ok = rescanned.Get(keyOf(globex, "1"))
	assert.True(t, ok, "a response only closes the request in its own conversation")
}

// The flow below runs both sides of an exchange over the in-memory hub.
func TestRequestResponseRoundTrip(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	companyCh, err := hub.Channel(ctx, company)
	require.NoError(t, err)
	userCh, err := hub.Channel(ctx, self)
	require.NoError(t, err)

	svc, err := New(fakeSource{
		values: map[string]disclosure.Value{"post": {Raw: "Engineer"}},
		sealed: map[string]float64{"salary": 120000},
	})
	require.NoError(t, err)

	first, err := svc.SendRequest(ctx, companyCh, self, envelope.Request{
		Company:         "Acme",
		DataType:        models.DataTypeJob,
		RequestedFields: models.FieldSelector{"post": models.Disclose(), "salary": models.Compare(models.OperatorMoreThan, 100000)},
	})
	require.NoError(t, err)
	second, err := svc.SendRequest(ctx, companyCh, self, envelope.Request{
		Company:         "Acme",
		DataType:        models.DataTypeJob,
		RequestedFields: models.FieldSelector{"post": models.Disclose()},
	})
	require.NoError(t, err)
	chat, err := companyCh.NewConversation(ctx, self)
	require.NoError(t, err)
	_, err = companyCh.Send(ctx, chat, "are you there?")
	require.NoError(t, err)

	set, err := svc.ScanOpenRequests(ctx, userCh, self)
	require.NoError(t, err)
	assert.Equal(t, []string{first.MessageID, second.MessageID}, requestIDs(set.List()))

	again, err := svc.ScanOpenRequests(ctx, userCh, self)
	require.NoError(t, err)
	assert.Equal(t, set.List(), again.List(), "scans without new messages agree")

	_, err = svc.Respond(ctx, userCh, set, keyOf(company, first.MessageID), true)
	require.NoError(t, err)
	assert.Equal(t, []string{second.MessageID}, requestIDs(set.List()))

	rescanned, err := svc.ScanOpenRequests(ctx, userCh, self)
	require.NoError(t, err)
	assert.Equal(t, []string{second.MessageID}, requestIDs(rescanned.List()))

	companyView, err := svc.ScanOpenRequests(ctx, companyCh, company)
	require.NoError(t, err)
	assert.Zero(t, companyView.Len(), "own requests are not open for the sender")

	responses, err := svc.ReceivedResponses(ctx, companyCh, company)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, first.MessageID, responses[0].RequestID)
	assert.True(t, responses[0].Approved)
	assert.Equal(t, map[string]any{"post": "Engineer", "salary": true}, responses[0].DisclosedData)
	require.NotNil(t, responses[0].Request)
	assert.Equal(t, "Acme", responses[0].Request.Company)

	mine, err := svc.ReceivedResponses(ctx, userCh, self)
	require.NoError(t, err)
	assert.Empty(t, mine, "own responses are not received")
}
