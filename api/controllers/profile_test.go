package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaskub292929/to-korea-sub000/api/middleware"
	"github.com/tomaskub292929/to-korea-sub000/internal/authprovider"
	"github.com/tomaskub292929/to-korea-sub000/internal/users"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

func restoredRequest(t *testing.T, method string, body any) *http.Request {
	t.Helper()
	factory, mgr, backend := newAuthFixture(t)
	backend.accounts["acct-anna"] = authprovider.Account{ID: "acct-anna", Email: "anna@example.com"}
	_, err := mgr.CreateProfile(context.Background(), "acct-anna", users.ProfileSeed{Email: "anna@example.com", FirstName: "Anna", LastName: "Kim"})
	require.NoError(t, err)

	sess, err := factory.Open()
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	require.NoError(t, sess.Restore(context.Background(), "access-acct-anna"))

	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, "/api/v1/me", nil)
	} else {
		req = httptest.NewRequest(method, "/api/v1/me", jsonBody(t, body))
		req.Header.Set("Content-Type", "application/json")
	}
	ctx := middleware.WithSession(req.Context(), sess)
	ctx = middleware.WithUserID(ctx, "acct-anna")
	ctx = middleware.WithRole(ctx, enums.RoleStudent)
	return req.WithContext(ctx)
}

func TestMeGet(t *testing.T) {
	rec := httptest.NewRecorder()
	MeGet(nil).ServeHTTP(rec, restoredRequest(t, http.MethodGet, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var dto users.UserDTO
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &dto))
	assert.Equal(t, "Anna", dto.FirstName)
}

func TestMeGetWithoutSession(t *testing.T) {
	rec := httptest.NewRecorder()
	MeGet(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeUpdateMergesFields(t *testing.T) {
	rec := httptest.NewRecorder()
	MeUpdate(nil).ServeHTTP(rec, restoredRequest(t, http.MethodPatch, map[string]any{"country": "  Mongolia ", "profileCompleted": true}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dto users.UserDTO
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &dto))
	require.NotNil(t, dto.Country)
	assert.Equal(t, "Mongolia", *dto.Country)
	assert.True(t, dto.ProfileCompleted)
	assert.Equal(t, "Kim", dto.LastName)
}

func TestMeUpdateRejectsEmptyPatch(t *testing.T) {
	rec := httptest.NewRecorder()
	MeUpdate(nil).ServeHTTP(rec, restoredRequest(t, http.MethodPatch, map[string]any{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
