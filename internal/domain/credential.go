package domain

import (
	"context"
	"time"
)

// Credential is the identity record owned by the credential store.
type Credential struct {
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose the password hash in JSON
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TokenPair is the result of a token issuance. It is never persisted;
// both tokens carry the same subject but are signed with distinct secrets.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse defines the payload returned after a successful login or
// registration.
type AuthResponse struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Profile is a credential with the secret material stripped, safe to hand
// back to the owner.
type Profile struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CredentialRepository defines the contract for credential persistence.
// Uniqueness of both email and userId is enforced by the implementation.
type CredentialRepository interface {
	GetByEmail(ctx context.Context, email string) (*Credential, error)
	GetByID(ctx context.Context, userID string) (*Credential, error)
	Create(ctx context.Context, cred *Credential) error
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	Delete(ctx context.Context, userID string) error
}

// RevocationStore tracks which refresh token is currently valid per user and
// which access tokens have been revoked before their natural expiry.
// At most one refresh token is valid per user; SetRefreshValid overwrites.
type RevocationStore interface {
	SetRefreshValid(ctx context.Context, userID, token string) error
	IsRefreshValid(ctx context.Context, userID, token string) (bool, error)
	InvalidateRefresh(ctx context.Context, userID string) error
	BlacklistAccessToken(ctx context.Context, token string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

// EventPublisher announces identity-lifecycle events to other services.
// Delivery is best-effort: the result says whether the message made it onto
// the wire, and callers must not treat a drop as a failure of their own
// operation.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, event IdentityEvent) PublishResult
}
