package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"seeddid/internal/audit"
	"seeddid/internal/auth/models"
	"seeddid/internal/auth/token"
	dErrors "seeddid/pkg/domain-errors"
)

type keyMap map[string]ed25519.PublicKey

func (k keyMap) PublicKey(_ context.Context, address string) (ed25519.PublicKey, error) {
	if address == "0xbroken" {
		return nil, errors.New("connection reset")
	}
	pub, ok := k[address]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "wallet address not found")
	}
	return pub, nil
}

type LoginSuite struct {
	suite.Suite
	service *Service
	tokens  *token.Service
	events  *audit.StorePublisher
	priv    ed25519.PrivateKey
}

func TestLoginSuite(t *testing.T) {
	suite.Run(t, new(LoginSuite))
}

func (s *LoginSuite) SetupTest() {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	s.Require().NoError(err)
	s.priv = priv
	s.tokens = token.NewService("test-key", "seeddid", time.Hour)
	s.events = audit.NewStorePublisher(audit.NewMemoryStore())
	s.service, err = New(keyMap{"0xalice": pub}, s.tokens, WithAuditPublisher(s.events))
	s.Require().NoError(err)
}

func (s *LoginSuite) sign(priv ed25519.PrivateKey) string {
	return hex.EncodeToString(ed25519.Sign(priv, []byte(s.service.Challenge())))
}

func (s *LoginSuite) TestValidSignatureIssuesToken() {
	ctx := context.Background()
	session, err := s.service.Login(ctx, models.LoginRequest{Address: "0xAlice", Signature: "0x" + s.sign(s.priv)})
	s.Require().NoError(err)
	s.Equal("0xalice", session.Address)
	s.Equal("Bearer", session.TokenType)

	address, err := s.tokens.ValidateToken(ctx, session.AccessToken)
	s.Require().NoError(err)
	s.Equal("0xalice", address)

	events, err := s.events.List(ctx, "0xalice")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionLoginSucceeded, events[0].Action)
}

func (s *LoginSuite) TestWrongKeyIsUnauthorized() {
	_, other, err := ed25519.GenerateKey(rand.Reader)
	s.Require().NoError(err)

	_, err = s.service.Login(context.Background(), models.LoginRequest{Address: "0xalice", Signature: s.sign(other)})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	events, err := s.events.List(context.Background(), "0xalice")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionLoginFailed, events[0].Action)
}

func (s *LoginSuite) TestUnknownAddressLooksLikeBadSignature() {
	_, err := s.service.Login(context.Background(), models.LoginRequest{Address: "0xbob", Signature: s.sign(s.priv)})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Equal("invalid signature", dErrors.Message(err))
}

func (s *LoginSuite) TestMalformedSignature() {
	_, err := s.service.Login(context.Background(), models.LoginRequest{Address: "0xalice", Signature: "zz"})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *LoginSuite) TestMissingFields() {
	_, err := s.service.Login(context.Background(), models.LoginRequest{Address: "0xalice"})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *LoginSuite) TestLookupFailureIsInternal() {
	_, err := s.service.Login(context.Background(), models.LoginRequest{Address: "0xbroken", Signature: s.sign(s.priv)})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
