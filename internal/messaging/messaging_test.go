package messaging

//go:generate mockgen -source=messaging.go -destination=mocks/mocks.go -package=mocks Channel,Hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationIDIsSymmetric(t *testing.T) {
	assert.Equal(t, ConversationID("0xB0b", "0xAlice"), ConversationID("0xalice", "0xbob"))

	a, b, ok := Participants(ConversationID("0xbob", "0xalice"))
	require.True(t, ok)
	assert.Equal(t, "0xalice", a)
	assert.Equal(t, "0xbob", b)
}

func TestAuthorize(t *testing.T) {
	conv := Conversation{ID: ConversationID("0xalice", "0xbob"), PeerAddress: "0xbob"}
	assert.NoError(t, Authorize("0xAlice", conv))
	assert.ErrorIs(t, Authorize("", conv), ErrUnauthenticated)
	assert.ErrorIs(t, Authorize("0xcarol", conv), ErrUnauthenticated)
}

func TestValidatePeer(t *testing.T) {
	assert.NoError(t, ValidatePeer("0xalice", "0xbob"))
	assert.ErrorIs(t, ValidatePeer("0xalice", " "), ErrInvalidPeer)
	assert.ErrorIs(t, ValidatePeer("0xalice", "0xALICE"), ErrInvalidPeer)
	assert.ErrorIs(t, ValidatePeer("", "0xbob"), ErrUnauthenticated)
}
