package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itemtally/itemtally/internal/server/middleware"
)

func TestHTTPStatusFromCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatusFromCode(CodeInvalidInput))
	assert.Equal(t, http.StatusNotFound, HTTPStatusFromCode(CodeNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatusFromCode(CodeServiceUnavailable))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromCode(CodeDatabase))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromCode("SOMETHING_ELSE"))
}

func TestAsEnvelopeWrapsPlainErrors(t *testing.T) {
	ctx := middleware.WithRequestID(context.Background(), "req-1")
	env := AsEnvelope(ctx, stderrors.New("disk full"))
	assert.Equal(t, CodeInternal, env.Code)
	assert.Equal(t, "disk full", env.Context["wrapped_error"])
	assert.Equal(t, "req-1", env.CorrelationID)

	original := NewNotFoundError("missing")
	assert.Same(t, original, AsEnvelope(ctx, original))
	assert.Equal(t, CodeInternal, AsEnvelope(ctx, nil).Code)
}

func TestWrapDatabaseErrorUsesRequestID(t *testing.T) {
	ctx := middleware.WithRequestID(context.Background(), "req-42")

	env := WrapDatabaseError(ctx, stderrors.New("locked"), "resume lookup failed")
	assert.Equal(t, CodeDatabase, env.Code)
	assert.Equal(t, "req-42", env.CorrelationID)
	assert.Equal(t, "locked", env.Context["wrapped_error"])
}

func TestRespondWithEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/resume/unknown", nil)
	req = req.WithContext(middleware.WithRequestID(req.Context(), "req-7"))
	rec := httptest.NewRecorder()

	RespondWithEnvelope(rec, req, NewNotFoundError("no resume page for unknown"))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeNotFound, body.Error.Code)
	assert.Equal(t, "no resume page for unknown", body.Error.Message)
	assert.Equal(t, "req-7", body.Error.RequestID)
}

func TestResponseDetailsPrefersDetails(t *testing.T) {
	env := NewServiceUnavailableError("down").WithDetails(map[string]interface{}{"status": "unhealthy"})
	env, err := env.WithContext(map[string]interface{}{"status": "ignored", "probe": "ready"})
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"status": "unhealthy", "probe": "ready"}, ResponseDetails(env))
	assert.Nil(t, ResponseDetails(NewNotFoundError("x")))
}

func TestRespondWithErrorWithoutRequestIDGeneratesOne(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithError(rec, httptest.NewRequest(http.MethodGet, "/resume", nil), stderrors.New("boom"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeInternal, body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
	assert.Equal(t, "boom", body.Error.Details["wrapped_error"])
}
