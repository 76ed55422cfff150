package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ErrMissingCredentials, http.StatusUnauthorized},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrUnknownIdentity, http.StatusUnauthorized},
		{ErrIncorrectPassword, http.StatusUnauthorized},
		{ErrProfileIncomplete, http.StatusNotFound},
		{ErrAlreadyExists, http.StatusConflict},
		{ErrForbidden, http.StatusForbidden},
		{ErrAuthenticationFailed, http.StatusInternalServerError},
		{errors.New("some internal thing"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, StatusForError(tc.err), tc.err.Error())
	}

	// Wrapped taxonomy errors map the same as bare ones.
	wrapped := fmt.Errorf("token parse: %w", ErrInvalidCredentials)
	assert.Equal(t, http.StatusUnauthorized, StatusForError(wrapped))
}

func TestErrorResponseFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	rec := httptest.NewRecorder()
	ErrorResponseFor(rec, req, ErrInvalidCredentials)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"status":401`)
	assert.Contains(t, rec.Body.String(), `"path":"/api/v1/auth/login"`)
	assert.Contains(t, rec.Body.String(), ErrInvalidCredentials.Error())
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Login string `json:"login"`
	}

	t.Run("Valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"login":"alice"}`))
		rec := httptest.NewRecorder()

		var p payload
		assert.NoError(t, DecodeJSONBody(rec, req, &p))
		assert.Equal(t, "alice", p.Login)
	})

	t.Run("UnknownField", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"login":"alice","extra":1}`))
		rec := httptest.NewRecorder()

		var p payload
		err := DecodeJSONBody(rec, req, &p)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown key")
	})

	t.Run("Empty", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		rec := httptest.NewRecorder()

		var p payload
		err := DecodeJSONBody(rec, req, &p)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "must not be empty")
	})

	t.Run("TwoValues", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"login":"a"}{"login":"b"}`))
		rec := httptest.NewRecorder()

		var p payload
		err := DecodeJSONBody(rec, req, &p)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "single JSON value")
	})
}
