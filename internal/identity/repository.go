package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS identity_accounts (
    id            UUID PRIMARY KEY,
    handle        TEXT NOT NULL UNIQUE,
    pin_hash      BYTEA NOT NULL,
    token_version INT NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL,
    last_login    TIMESTAMPTZ
);
`

// Repository persists account holders.
type Repository interface {
	Create(ctx context.Context, account Account) error
	FindByHandle(ctx context.Context, handle string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateTokenVersion(ctx context.Context, id string, version int) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the accounts table if it does not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schema)
	return err
}

// Create inserts a new account.
func (r *PostgresRepository) Create(ctx context.Context, account Account) error {
	accountID, err := uuid.Parse(account.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO identity_accounts (id, handle, pin_hash, token_version, created_at)
        VALUES ($1, $2, $3, $4, $5)`, accountID, account.Handle, account.PINHash, account.TokenVersion, account.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAccountExists
	}
	return err
}

// FindByHandle fetches an account by handle.
func (r *PostgresRepository) FindByHandle(ctx context.Context, handle string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT id, handle, pin_hash, token_version, created_at, last_login
        FROM identity_accounts WHERE handle = $1`, handle)
	return scanAccount(row)
}

// FindByID fetches an account by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrAccountNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, handle, pin_hash, token_version, created_at, last_login
        FROM identity_accounts WHERE id = $1`, accountID)
	return scanAccount(row)
}

// UpdateLastLogin stores the time of the latest successful authentication.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, `UPDATE identity_accounts SET last_login = $1 WHERE id = $2`, id, at.UTC())
}

// UpdateTokenVersion stores a new token version, invalidating older tokens.
func (r *PostgresRepository) UpdateTokenVersion(ctx context.Context, id string, version int) error {
	return r.update(ctx, `UPDATE identity_accounts SET token_version = $1 WHERE id = $2`, id, version)
}

func (r *PostgresRepository) update(ctx context.Context, query, id string, value any) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrAccountNotFound
	}
	cmd, err := r.db.Exec(ctx, query, value, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		id        uuid.UUID
		createdAt time.Time
		lastLogin *time.Time
		account   Account
	)
	if err := row.Scan(&id, &account.Handle, &account.PINHash, &account.TokenVersion, &createdAt, &lastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	account.ID = id.String()
	account.CreatedAt = createdAt.UTC()
	if lastLogin != nil {
		utc := lastLogin.UTC()
		account.LastLogin = &utc
	}
	return account, nil
}
