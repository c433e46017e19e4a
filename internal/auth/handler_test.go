package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postAuthenticate(h *Handler, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/api/authentication/authenticate", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Authenticate(w, r)
	return w
}

func TestHandler_AuthenticateSuccess(t *testing.T) {
	f := newServiceFixture(t, false)
	h := NewHandler(f.service)

	w := postAuthenticate(h, `{"userName":"alice","password":"alice-password"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(1800), resp.ExpiresIn)

	claims, err := f.signer.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(3), claims.CityID)
}

func TestHandler_AuthenticateFailuresLookAlike(t *testing.T) {
	f := newServiceFixture(t, false)
	h := NewHandler(f.service)

	unknown := postAuthenticate(h, `{"userName":"mallory","password":"whatever-password"}`)
	wrong := postAuthenticate(h, `{"userName":"alice","password":"wrong-password"}`)
	empty := postAuthenticate(h, `{"userName":"","password":""}`)

	for _, w := range []*httptest.ResponseRecorder{unknown, wrong, empty} {
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
	}
}

func TestHandler_AuthenticateBadBody(t *testing.T) {
	f := newServiceFixture(t, false)
	h := NewHandler(f.service)

	assert.Equal(t, http.StatusBadRequest, postAuthenticate(h, `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, postAuthenticate(h, `{"userName":"alice","password":"x","role":"admin"}`).Code)
}

func TestHandler_AuthenticateUpstreamFailure(t *testing.T) {
	f := newServiceFixture(t, false)
	f.store.err = errors.New("db down")
	h := NewHandler(f.service)

	w := postAuthenticate(h, `{"userName":"alice","password":"alice-password"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"service unavailable"}`, w.Body.String())
}

func TestHandler_AuthenticateLocked(t *testing.T) {
	f := newServiceFixture(t, true)
	h := NewHandler(f.service)

	for i := 0; i < 3; i++ {
		postAuthenticate(h, `{"userName":"alice","password":"wrong-password"}`)
	}

	w := postAuthenticate(h, `{"userName":"alice","password":"alice-password"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "900", w.Header().Get("Retry-After"))
}
