package api

import (
	"errors"
	"net/http"
)

// Failure taxonomy surfaced by the auth core. Anything outside this set is
// normalized to ErrAuthenticationFailed before it reaches a caller.
var (
	ErrMissingCredentials   = errors.New("access token not provided")
	ErrInvalidCredentials   = errors.New("invalid login or password")
	ErrUnknownIdentity      = errors.New("no authenticated user for subject")
	ErrAlreadyExists        = errors.New("login already registered")
	ErrIncorrectPassword    = errors.New("current password is incorrect")
	ErrProfileIncomplete    = errors.New("user has not finished registration")
	ErrForbidden            = errors.New("action requires administrative privileges")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// StatusForError maps a taxonomy error to its HTTP status code.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrMissingCredentials),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUnknownIdentity),
		errors.Is(err, ErrIncorrectPassword):
		return http.StatusUnauthorized
	case errors.Is(err, ErrProfileIncomplete):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
