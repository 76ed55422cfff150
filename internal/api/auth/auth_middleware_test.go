package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/vozurbana/voz-urbana-api/internal/api"
)

func gateTestChain(repo Repository, tokens *TokenService, next http.Handler) http.Handler {
	return Authenticate(slog.Default(), tokens, repo)(next)
}

func decodeStandardError(t *testing.T, rec *httptest.ResponseRecorder) api.StandardError {
	t.Helper()
	var body api.StandardError
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthenticate(t *testing.T) {
	tokens := NewTokenService(testJWTConfig())

	passthrough := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("PublicPathBypassesGate", func(t *testing.T) {
		mockRepo := new(MockRepository)
		gate := gateTestChain(mockRepo, tokens, passthrough)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		mockRepo.AssertNotCalled(t, "GetIdentityByID", mock.Anything, mock.Anything)
	})

	t.Run("PathSharingAPublicSuffixIsStillProtected", func(t *testing.T) {
		mockRepo := new(MockRepository)
		gate := gateTestChain(mockRepo, tokens, passthrough)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/auth/login", nil)
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		mockRepo := new(MockRepository)
		gate := gateTestChain(mockRepo, tokens, passthrough)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeStandardError(t, rec)
		assert.Equal(t, http.StatusUnauthorized, body.Status)
		assert.Equal(t, api.ErrMissingCredentials.Error(), body.Message)
		assert.Equal(t, "/api/v1/reports", body.Path)
	})

	t.Run("MalformedHeader", func(t *testing.T) {
		mockRepo := new(MockRepository)
		gate := gateTestChain(mockRepo, tokens, passthrough)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwdw==")
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, api.ErrMissingCredentials.Error(), decodeStandardError(t, rec).Message)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		mockRepo := new(MockRepository)
		gate := gateTestChain(mockRepo, tokens, passthrough)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, api.ErrInvalidCredentials.Error(), decodeStandardError(t, rec).Message)
		mockRepo.AssertNotCalled(t, "GetIdentityByID", mock.Anything, mock.Anything)
	})

	t.Run("SubjectWithoutIdentityRow", func(t *testing.T) {
		mockRepo := new(MockRepository)
		gate := gateTestChain(mockRepo, tokens, passthrough)

		ident := testIdentity()
		pair, err := tokens.IssueTokenPair(ident)
		assert.NoError(t, err)
		mockRepo.On("GetIdentityByID", mock.Anything, ident.ID).
			Return(nil, api.ErrUnknownIdentity).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, api.ErrUnknownIdentity.Error(), decodeStandardError(t, rec).Message)
		mockRepo.AssertExpectations(t)
	})

	t.Run("StoreFailureIsNotUnauthorized", func(t *testing.T) {
		mockRepo := new(MockRepository)
		gate := gateTestChain(mockRepo, tokens, passthrough)

		ident := testIdentity()
		pair, err := tokens.IssueTokenPair(ident)
		assert.NoError(t, err)
		mockRepo.On("GetIdentityByID", mock.Anything, ident.ID).
			Return(nil, errors.New("db connection refused")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, req)

		// A store fault must not log the caller out with a 401, and no
		// internal detail may leak into the body.
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeStandardError(t, rec)
		assert.Equal(t, api.ErrAuthenticationFailed.Error(), body.Message)
		assert.NotContains(t, rec.Body.String(), "connection refused")
		mockRepo.AssertExpectations(t)
	})

	t.Run("ValidTokenPublishesIdentity", func(t *testing.T) {
		mockRepo := new(MockRepository)
		ident := testIdentity()

		var seen *Identity
		inspect := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = IdentityFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})
		gate := gateTestChain(mockRepo, tokens, inspect)

		pair, err := tokens.IssueTokenPair(ident)
		assert.NoError(t, err)
		mockRepo.On("GetIdentityByID", mock.Anything, ident.ID).Return(ident, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, ident, seen)
		mockRepo.AssertExpectations(t)
	})
}

func TestRequireRole(t *testing.T) {
	passthrough := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	adminOnly := RequireRole(slog.Default(), RoleAdmin)(passthrough)

	withIdentity := func(req *http.Request, ident *Identity) *http.Request {
		return req.WithContext(context.WithValue(req.Context(), IdentityKey, ident))
	}

	t.Run("AdminPasses", func(t *testing.T) {
		admin := &Identity{ID: 1, Login: "chief@example.com", Role: RoleAdmin, Status: StatusSignin}
		req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/auth/register/admin", nil), admin)
		rec := httptest.NewRecorder()
		adminOnly.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("UserIsForbidden", func(t *testing.T) {
		req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/auth/register/admin", nil), testIdentity())
		rec := httptest.NewRecorder()
		adminOnly.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, api.ErrForbidden.Error(), decodeStandardError(t, rec).Message)
	})

	t.Run("MissingIdentityIsInternalFault", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register/admin", nil)
		rec := httptest.NewRecorder()
		adminOnly.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
