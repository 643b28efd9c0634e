package httptransport

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	approvalhandler "seeddid/internal/approval/handler"
	approvalmodels "seeddid/internal/approval/models"
	approvalservice "seeddid/internal/approval/service"
	authhandler "seeddid/internal/auth/handler"
	authmodels "seeddid/internal/auth/models"
	authservice "seeddid/internal/auth/service"
	"seeddid/internal/auth/token"
	"seeddid/internal/credential/confidential"
	credentialhandler "seeddid/internal/credential/handler"
	credentialservice "seeddid/internal/credential/service"
	credentialstore "seeddid/internal/credential/store"
	didhandler "seeddid/internal/did/handler"
	didmodels "seeddid/internal/did/models"
	didservice "seeddid/internal/did/service"
	didstore "seeddid/internal/did/store"
	"seeddid/internal/messaging/store/memory"
	"seeddid/internal/platform/metrics"
	"seeddid/internal/platform/secrets"
	schemahandler "seeddid/internal/schema/handler"
	schemaservice "seeddid/internal/schema/service"
	schemastore "seeddid/internal/schema/store"
	"seeddid/pkg/testutil"
)

func newBox(t *testing.T) *secrets.Box {
	t.Helper()
	key, err := secrets.GenerateKey()
	require.NoError(t, err)
	box, err := secrets.NewBox(key)
	require.NoError(t, err)
	return box
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	schemas, err := schemaservice.New(schemastore.NewInMemory(), schemaservice.WithMetrics(m))
	require.NoError(t, err)
	dids, err := didservice.New(didstore.NewInMemory(), newBox(t))
	require.NoError(t, err)
	credentials, err := credentialservice.New(credentialstore.NewInMemory(), schemas, confidential.New(newBox(t)))
	require.NoError(t, err)
	approvals, err := approvalservice.New(credentials, approvalservice.WithMetrics(m))
	require.NoError(t, err)
	tokens := token.NewService("router-test-key", "seeddid", time.Hour)
	auth, err := authservice.New(dids, tokens)
	require.NoError(t, err)

	return NewRouter(Routes{
		Public: []Registrar{
			authhandler.New(auth, logger),
			schemahandler.New(schemas, logger),
			didhandler.New(dids, logger),
		},
		Authenticated: []Registrar{
			credentialhandler.New(credentials, logger),
			approvalhandler.New(approvals, memory.NewHub(), logger),
		},
	}, Options{
		Logger:         logger,
		Metrics:        m,
		Gatherer:       reg,
		Tokens:         tokens,
		AllowedOrigins: []string{"http://localhost:3000"},
	})
}

// signIn registers a DID for address and returns a bearer token.
func signIn(t *testing.T, router http.Handler, address string) string {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	rec := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/did", didmodels.SaveRequest{
		Address:    address,
		PublicKey:  didmodels.EncodeKey(pub),
		PrivateKey: didmodels.EncodeKey(priv.Seed()),
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	sig := hex.EncodeToString(ed25519.Sign(priv, []byte(authmodels.ChallengeMessage)))
	rec = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", authmodels.LoginRequest{
		Address:   address,
		Signature: sig,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return testutil.UnmarshalResponse[authmodels.Session](t, rec).AccessToken
}

func authed(t *testing.T, method, path, bearer string, body any) *http.Request {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	req.Header.Set("Authorization", "Bearer "+bearer)
	return req
}

func TestOperationalEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "seeddid_http_request_duration_seconds")
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	router := newTestRouter(t)
	for _, path := range []string{"/approvals", "/approvals/responses", "/credentials/Job"} {
		rec := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, path, nil))
		testutil.AssertStatusAndError(t, rec, http.StatusUnauthorized, "unauthorized")
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t)
	req := testutil.NewJSONRequest(t, http.MethodOptions, "/approvals", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := testutil.DoRequest(router, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSealedComparisonDisclosure(t *testing.T) {
	router := newTestRouter(t)
	userToken := signIn(t, router, "0xuser")
	companyToken := signIn(t, router, "0xacme")

	rec := testutil.DoRequest(router, authed(t, http.MethodPost, "/credentials", userToken, map[string]any{
		"dataType": "Job",
		"fields":   map[string]any{"company": "Initech", "post": "Engineer", "salary": 150000, "yoe": 6},
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = testutil.DoRequest(router, authed(t, http.MethodPost, "/approvals/requests", companyToken, map[string]any{
		"peer":     "0xuser",
		"company":  "Acme",
		"dataType": "Job",
		"requestedFields": map[string]any{
			"post":   true,
			"salary": map[string]any{"operator": "more", "value": 100000},
		},
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = testutil.DoRequest(router, authed(t, http.MethodGet, "/approvals", userToken, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	inbox := *testutil.UnmarshalResponse[[]struct {
		RequestID      string `json:"request_id"`
		ConversationID string `json:"conversation_id"`
		Summary        string `json:"summary"`
	}](t, rec)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Post, Salary more than 100000", inbox[0].Summary)

	rec = testutil.DoRequest(router, authed(t, http.MethodPost, "/approvals/"+inbox[0].ConversationID+"/"+inbox[0].RequestID+"/respond", userToken, map[string]any{"approved": true}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = testutil.DoRequest(router, authed(t, http.MethodGet, "/approvals/responses", companyToken, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	responses := *testutil.UnmarshalResponse[[]approvalmodels.ReceivedResponse](t, rec)
	require.Len(t, responses, 1)
	assert.Equal(t, map[string]any{"post": "Engineer", "salary": true}, responses[0].DisclosedData)
	assert.NotContains(t, rec.Body.String(), "150000")
}
