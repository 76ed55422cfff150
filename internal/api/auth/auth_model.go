package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the closed set of authorities an identity can hold.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Status tracks where an identity is in its signup lifecycle. An identity is
// created in StatusSignup and moves to StatusSignin exactly once, when its
// role-matching profile exists. There is no way back.
type Status string

const (
	StatusSignup Status = "SIGNUP"
	StatusSignin Status = "SIGNIN"
)

// Identity is one authenticatable principal. Login and ID are immutable after
// creation; PasswordHash only changes through the change-password flow.
type Identity struct {
	ID           int64     `json:"id"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TokenPair is the ephemeral credential artifact returned by token-issuing
// operations. It is never persisted.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Claims are the JWT claims carried by both tokens of a pair. Subject holds
// the identity id.
type Claims struct {
	Role   string `json:"role,omitempty"`
	Status string `json:"status,omitempty"`
	jwt.RegisteredClaims
}

type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// GoogleLoginRequest carries the email already verified by the upstream
// OAuth exchange; this core never sees provider tokens.
type GoogleLoginRequest struct {
	Email string `json:"email"`
}

type RegisterRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
