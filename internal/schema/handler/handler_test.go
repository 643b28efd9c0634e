package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seeddid/internal/schema/models"
	"seeddid/internal/schema/service"
	"seeddid/internal/schema/store"
)

func newSchemaRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, err := service.New(store.NewInMemory())
	require.NoError(t, err)
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func do(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSchemaLifecycle(t *testing.T) {
	router := newSchemaRouter(t)

	rec := do(router, http.MethodGet, "/schema", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "empty catalogue is not found")

	degree := map[string]any{
		"name": "Degree",
		"fields": []map[string]any{
			{"name": "university", "type": "string", "isEncrypted": false},
			{"name": "gpa", "type": "number", "isEncrypted": true},
		},
	}
	rec = do(router, http.MethodPost, "/schema", degree)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(router, http.MethodPost, "/schema", degree)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(router, http.MethodGet, "/schema", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Schema
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.True(t, list[0].Fields[1].IsEncrypted)

	rec = do(router, http.MethodGet, "/schema/Degree", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var one models.Schema
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&one))
	assert.Equal(t, "Degree", one.Name)

	rec = do(router, http.MethodGet, "/schema/Unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSchemaRejectsInvalidBodies(t *testing.T) {
	router := newSchemaRouter(t)
	cases := map[string]any{
		"missing name":     map[string]any{"fields": []any{}},
		"fields not array": map[string]any{"name": "X", "fields": "nope"},
		"missing fields":   map[string]any{"name": "X"},
		"unnamed field":    map[string]any{"name": "X", "fields": []map[string]any{{"type": "string"}}},
		"duplicate field": map[string]any{"name": "X", "fields": []map[string]any{
			{"name": "a", "type": "string"}, {"name": "A", "type": "string"},
		}},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(router, http.MethodPost, "/schema", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
