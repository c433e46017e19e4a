package maintenance

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"cityinfo-api/internal/auth"
	"cityinfo-api/internal/observability"
)

type fakeCleaner struct {
	calls     int
	retention time.Duration
	batchSize int
	err       error
}

func (f *fakeCleaner) CleanupStaleLoginAttempts(_ context.Context, retention time.Duration, batchSize int) (auth.CleanupResult, error) {
	f.calls++
	f.retention = retention
	f.batchSize = batchSize
	if f.err != nil {
		return auth.CleanupResult{}, f.err
	}
	return auth.CleanupResult{DeletedLoginAttempts: 4}, nil
}

func run(h *CleanupHandler, authorization string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	if authorization != "" {
		r.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	h.Handle(w, r)
	return w
}

func TestCleanupHandler_HiddenWithoutSecret(t *testing.T) {
	cleaner := &fakeCleaner{}
	h := NewCleanupHandler(cleaner, observability.NewLoggerWithWriter(&bytes.Buffer{}), " ", time.Hour, 10)

	assert.Equal(t, http.StatusNotFound, run(h, "Bearer anything").Code)
	assert.Zero(t, cleaner.calls)
}

func TestCleanupHandler_RequiresSecret(t *testing.T) {
	cleaner := &fakeCleaner{}
	h := NewCleanupHandler(cleaner, observability.NewLoggerWithWriter(&bytes.Buffer{}), "cron-secret", time.Hour, 10)

	assert.Equal(t, http.StatusUnauthorized, run(h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, run(h, "Bearer wrong").Code)
	assert.Zero(t, cleaner.calls)
}

func TestCleanupHandler_Runs(t *testing.T) {
	var logs bytes.Buffer
	cleaner := &fakeCleaner{}
	h := NewCleanupHandler(cleaner, observability.NewLoggerWithWriter(&logs), "cron-secret", 48*time.Hour, 25)

	w := run(h, "Bearer cron-secret")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","result":{"deleted_login_attempts":4}}`, w.Body.String())
	assert.Equal(t, 48*time.Hour, cleaner.retention)
	assert.Equal(t, 25, cleaner.batchSize)
	assert.Contains(t, logs.String(), "auth_cleanup_completed")
}

func TestCleanupHandler_Failure(t *testing.T) {
	var logs bytes.Buffer
	h := NewCleanupHandler(&fakeCleaner{err: errors.New("db down")}, observability.NewLoggerWithWriter(&logs), "cron-secret", time.Hour, 10)

	w := run(h, "Bearer cron-secret")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, logs.String(), "auth_cleanup_failed")
}
