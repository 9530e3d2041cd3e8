package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/FilipeAphrody/sentinel-identity/internal/domain"
)

// PostgresCredentialRepo implements domain.CredentialRepository using
// PostgreSQL. The credentials table carries unique constraints on both
// user_id and email.
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo creates a new repository instance.
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

const credentialColumns = "user_id, email, password_hash, created_at, updated_at"

func scanCredential(row *sql.Row) (*domain.Credential, error) {
	cred := &domain.Credential{}
	err := row.Scan(
		&cred.UserID,
		&cred.Email,
		&cred.PasswordHash,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return cred, nil
}

// GetByEmail retrieves a credential by its email address.
func (r *PostgresCredentialRepo) GetByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	query := "SELECT " + credentialColumns + " FROM credentials WHERE email = $1"
	return scanCredential(r.db.QueryRowContext(ctx, query, email))
}

// GetByID retrieves a credential by its user id.
func (r *PostgresCredentialRepo) GetByID(ctx context.Context, userID string) (*domain.Credential, error) {
	query := "SELECT " + credentialColumns + " FROM credentials WHERE user_id = $1"
	return scanCredential(r.db.QueryRowContext(ctx, query, userID))
}

// Create inserts a new credential. A unique-constraint violation on email
// surfaces as domain.ErrDuplicateEmail so the caller can map it to Conflict.
func (r *PostgresCredentialRepo) Create(ctx context.Context, cred *domain.Credential) error {
	query := `
		INSERT INTO credentials (user_id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	cred.CreatedAt = time.Now()
	cred.UpdatedAt = cred.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		cred.UserID,
		cred.Email,
		cred.PasswordHash,
		cred.CreatedAt,
		cred.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create credential: %w", err)
	}

	return nil
}

// UpdatePasswordHash replaces the stored hash for an existing credential.
func (r *PostgresCredentialRepo) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	query := `
		UPDATE credentials
		SET password_hash = $1, updated_at = $2
		WHERE user_id = $3
	`

	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrCredentialNotFound
	}

	return nil
}

// Delete removes a credential permanently.
func (r *PostgresCredentialRepo) Delete(ctx context.Context, userID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM credentials WHERE user_id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrCredentialNotFound
	}

	return nil
}
