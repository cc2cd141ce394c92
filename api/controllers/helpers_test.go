package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/tomaskub292929/to-korea-sub000/api/middleware"
	"github.com/tomaskub292929/to-korea-sub000/internal/applications"
	"github.com/tomaskub292929/to-korea-sub000/internal/realtime"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/dbtest"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

// newRequest builds a request as the router would hand it over: caller
// identity in the context and chi URL params resolved.
func newRequest(method, target string, body io.Reader, userID string, role enums.Role, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if userID != "" {
		ctx = middleware.WithUserID(ctx, userID)
		ctx = middleware.WithRole(ctx, role)
	}
	return req.WithContext(ctx)
}

type appFixture struct {
	svc  *applications.Service
	feed *realtime.LocalFeed
}

func newAppFixture(t *testing.T) appFixture {
	t.Helper()
	conn := dbtest.Open(t)
	feed := realtime.NewLocalFeed()
	svc, err := applications.NewService(applications.ServiceParams{
		Repo:    applications.NewRepository(conn),
		Tx:      db.NewFromGorm(conn),
		Changes: feed,
	})
	require.NoError(t, err)
	return appFixture{svc: svc, feed: feed}
}
