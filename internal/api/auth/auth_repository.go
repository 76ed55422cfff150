package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vozurbana/voz-urbana-api/internal/api"
)

var _ Repository = (*PostgresRepository)(nil)

// Repository is the credential store plus the two profile-completion stores.
type Repository interface {
	GetIdentityByLogin(ctx context.Context, login string) (*Identity, error)
	GetIdentityByID(ctx context.Context, id int64) (*Identity, error)
	CreateIdentity(ctx context.Context, login, passwordHash string, role Role) (*Identity, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	ProfileExists(ctx context.Context, id int64, role Role) (bool, error)
}

// DBTX is the slice of pgxpool.Pool the repository needs; pgxmock satisfies
// it in tests.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	logger *slog.Logger
	db     DBTX
}

func NewPostgresRepository(db DBTX, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{
		logger: logger,
		db:     db,
	}
}

const identityColumns = "id, login, password_hash, role, status, created_at, updated_at"

func (r *PostgresRepository) scanIdentity(row pgx.Row) (*Identity, error) {
	var ident Identity
	err := row.Scan(&ident.ID, &ident.Login, &ident.PasswordHash,
		&ident.Role, &ident.Status, &ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrUnknownIdentity
		}
		return nil, fmt.Errorf("identity query failed: %w", err)
	}
	return &ident, nil
}

func (r *PostgresRepository) GetIdentityByLogin(ctx context.Context, login string) (*Identity, error) {
	return r.scanIdentity(r.db.QueryRow(ctx,
		"SELECT "+identityColumns+" FROM auth_users WHERE login = $1",
		login))
}

func (r *PostgresRepository) GetIdentityByID(ctx context.Context, id int64) (*Identity, error) {
	return r.scanIdentity(r.db.QueryRow(ctx,
		"SELECT "+identityColumns+" FROM auth_users WHERE id = $1",
		id))
}

// CreateIdentity inserts a new identity in status SIGNUP. The login
// uniqueness constraint is the authority on conflicts: a unique violation
// maps to ErrAlreadyExists so concurrent find-or-create callers can retry
// the lookup.
func (r *PostgresRepository) CreateIdentity(ctx context.Context, login, passwordHash string, role Role) (*Identity, error) {
	ident, err := r.scanIdentity(r.db.QueryRow(ctx,
		`INSERT INTO auth_users (login, password_hash, role, status)
         VALUES ($1, $2, $3, $4)
         RETURNING `+identityColumns,
		login, passwordHash, role, StatusSignup))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, api.ErrAlreadyExists
		}
		return nil, fmt.Errorf("create identity: %w", err)
	}
	return ident, nil
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE auth_users SET password_hash = $1, updated_at = $2 WHERE id = $3",
		passwordHash, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update password: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrUnknownIdentity
	}
	return nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE auth_users SET status = $1, updated_at = $2 WHERE id = $3",
		status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update status: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrUnknownIdentity
	}
	return nil
}

// ProfileExists answers whether the role-matching profile-completion record
// exists for the identity. Admins complete the administrative profile,
// everyone else the standard one.
func (r *PostgresRepository) ProfileExists(ctx context.Context, id int64, role Role) (bool, error) {
	table := "user_profiles"
	if role == RoleAdmin {
		table = "admin_profiles"
	}

	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM "+table+" WHERE auth_user_id = $1)",
		id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("profile lookup failed: %w", err)
	}
	return exists, nil
}
