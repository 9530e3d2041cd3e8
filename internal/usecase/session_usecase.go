package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FilipeAphrody/sentinel-identity/internal/domain"
	"github.com/FilipeAphrody/sentinel-identity/pkg/security"
)

// SessionUsecase orchestrates the credential and session lifecycle: it is
// the only component that sees the credential store, the token manager, the
// revocation store and the event publisher together. It holds no mutable
// state of its own; every request is an independent unit of work.
type SessionUsecase struct {
	creds       domain.CredentialRepository
	revocations domain.RevocationStore
	events      domain.EventPublisher
	tokens      *security.TokenManager
	logger      *slog.Logger
}

func NewSessionUsecase(
	creds domain.CredentialRepository,
	revocations domain.RevocationStore,
	events domain.EventPublisher,
	tokens *security.TokenManager,
	logger *slog.Logger,
) *SessionUsecase {
	return &SessionUsecase{
		creds:       creds,
		revocations: revocations,
		events:      events,
		tokens:      tokens,
		logger:      logger,
	}
}

// Register creates a credential for a new email, announces USER_CREATED and
// issues the first token pair. The credential write and the event publish
// are not transactional: a created account whose event was dropped stays
// created.
func (u *SessionUsecase) Register(ctx context.Context, email, password string) (*domain.AuthResponse, error) {
	_, err := u.creds.GetByEmail(ctx, email)
	if err == nil {
		return nil, fmt.Errorf("%w: user already exists", domain.ErrConflict)
	}
	if !errors.Is(err, domain.ErrCredentialNotFound) {
		return nil, fmt.Errorf("%w: credential lookup: %v", domain.ErrInternal, err)
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %v", domain.ErrInternal, err)
	}

	cred := &domain.Credential{
		UserID:       uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
	}
	if err := u.creds.Create(ctx, cred); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, fmt.Errorf("%w: user already exists", domain.ErrConflict)
		}
		return nil, fmt.Errorf("%w: create credential: %v", domain.ErrInternal, err)
	}

	u.announce(ctx, domain.RouteUserCreate, domain.NewIdentityEvent(domain.EventUserCreated, domain.EventPayload{
		UserID: cred.UserID,
		Email:  cred.Email,
	}))

	pair, err := u.issuePair(cred.UserID)
	if err != nil {
		return nil, err
	}

	return &domain.AuthResponse{
		UserID:       cred.UserID,
		Email:        cred.Email,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int64(u.tokens.AccessTTL().Seconds()),
	}, nil
}

// Login verifies an email/password pair and issues a fresh token pair. A
// missing account and a wrong password return the identical Unauthorized
// error so the endpoint cannot be used to enumerate emails. Login does not
// touch revocation state: tokens revoked by an earlier logout stay revoked
// regardless of new issuance.
func (u *SessionUsecase) Login(ctx context.Context, email, password string) (*domain.AuthResponse, error) {
	cred, err := u.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: credential lookup: %v", domain.ErrInternal, err)
	}

	if !security.VerifyPassword(password, cred.PasswordHash) {
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}

	pair, err := u.issuePair(cred.UserID)
	if err != nil {
		return nil, err
	}

	return &domain.AuthResponse{
		UserID:       cred.UserID,
		Email:        cred.Email,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int64(u.tokens.AccessTTL().Seconds()),
	}, nil
}

// RefreshTokens issues a brand-new token pair for an already-authenticated
// subject. The presented refresh token's store validity is a precondition
// enforced by the refresh guard before this runs; the only check here is
// that the account still exists, which is what neutralizes tokens of
// deleted accounts.
func (u *SessionUsecase) RefreshTokens(ctx context.Context, userID string) (*domain.TokenPair, error) {
	_, err := u.creds.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return nil, fmt.Errorf("%w: user not found", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: credential lookup: %v", domain.ErrInternal, err)
	}

	return u.issuePair(userID)
}

// Logout invalidates the user's refresh marker, blacklists the presented
// access token for its remaining lifetime, and announces USER_LOGGED_OUT.
// The three sub-steps are attempted independently: a store failure in one
// does not stop the others, but surfaces as an internal error so a token is
// never left silently un-revoked. Completed steps are not rolled back, which
// makes a repeated logout safe.
//
// accessToken and tokenExpiry are optional; tokenExpiry comes from an
// unverified decode, which is fine because it only bounds the blacklist TTL.
// A token already past its expiry is skipped: the signature check rejects it
// anyway and a zero-TTL entry would be wasted memory.
func (u *SessionUsecase) Logout(ctx context.Context, userID, accessToken string, tokenExpiry time.Time) error {
	var failures []error

	if err := u.revocations.InvalidateRefresh(ctx, userID); err != nil {
		failures = append(failures, fmt.Errorf("invalidate refresh: %w", err))
	}

	if accessToken != "" && !tokenExpiry.IsZero() {
		if remaining := time.Until(tokenExpiry); remaining > 0 {
			if err := u.revocations.BlacklistAccessToken(ctx, accessToken, remaining); err != nil {
				failures = append(failures, fmt.Errorf("blacklist access token: %w", err))
			}
		}
	}

	u.announce(ctx, domain.RouteUserLogout, domain.NewIdentityEvent(domain.EventUserLoggedOut, domain.EventPayload{
		UserID: userID,
	}))

	if len(failures) > 0 {
		u.logger.Error("logout incomplete", "user_id", userID, "error", errors.Join(failures...))
		return fmt.Errorf("%w: logout failed", domain.ErrInternal)
	}

	u.logger.Info("user logged out", "user_id", userID)
	return nil
}

// ChangePassword verifies the old password and persists a hash of the new
// one. Outstanding tokens are NOT revoked; they stay valid until natural
// expiry. Flagged for product review, implemented as designed.
func (u *SessionUsecase) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	cred, err := u.creds.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return fmt.Errorf("%w: user not found", domain.ErrUnauthorized)
		}
		return fmt.Errorf("%w: credential lookup: %v", domain.ErrInternal, err)
	}

	if !security.VerifyPassword(oldPassword, cred.PasswordHash) {
		return fmt.Errorf("%w: invalid old password", domain.ErrUnauthorized)
	}

	newHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: hash password: %v", domain.ErrInternal, err)
	}

	if err := u.creds.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return fmt.Errorf("%w: user not found", domain.ErrUnauthorized)
		}
		return fmt.Errorf("%w: update credential: %v", domain.ErrInternal, err)
	}

	return nil
}

// DeleteAccount verifies the password, deletes the credential and announces
// USER_DELETED. Existing tokens are not proactively revoked: any subsequent
// refresh or identity lookup against the deleted credential fails, which is
// what actually neutralizes them.
func (u *SessionUsecase) DeleteAccount(ctx context.Context, userID, password string) error {
	cred, err := u.creds.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return fmt.Errorf("%w: user not found", domain.ErrUnauthorized)
		}
		return fmt.Errorf("%w: credential lookup: %v", domain.ErrInternal, err)
	}

	if !security.VerifyPassword(password, cred.PasswordHash) {
		return fmt.Errorf("%w: invalid password", domain.ErrUnauthorized)
	}

	if err := u.creds.Delete(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return fmt.Errorf("%w: user not found", domain.ErrUnauthorized)
		}
		return fmt.Errorf("%w: delete credential: %v", domain.ErrInternal, err)
	}

	u.announce(ctx, domain.RouteUserDelete, domain.NewIdentityEvent(domain.EventUserDeleted, domain.EventPayload{
		UserID: userID,
	}))

	return nil
}

// VerifyToken is a pure query over an access token. Every verification
// failure collapses into an invalid result; it never returns an error.
func (u *SessionUsecase) VerifyToken(token string) security.VerificationResult {
	return u.tokens.Verify(token, security.AccessToken)
}

// GetProfile returns the credential with the secret material stripped.
func (u *SessionUsecase) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	cred, err := u.creds.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return nil, fmt.Errorf("%w: user not found", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: credential lookup: %v", domain.ErrInternal, err)
	}

	return &domain.Profile{
		UserID:    cred.UserID,
		Email:     cred.Email,
		CreatedAt: cred.CreatedAt,
		UpdatedAt: cred.UpdatedAt,
	}, nil
}

// CheckEmailAvailability reports whether an email is free to register.
func (u *SessionUsecase) CheckEmailAvailability(ctx context.Context, email string) (bool, error) {
	_, err := u.creds.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, domain.ErrCredentialNotFound) {
		return true, nil
	}
	return false, fmt.Errorf("%w: credential lookup: %v", domain.ErrInternal, err)
}

func (u *SessionUsecase) issuePair(userID string) (*domain.TokenPair, error) {
	accessToken, err := u.tokens.IssueAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: issue access token: %v", domain.ErrInternal, err)
	}
	refreshToken, err := u.tokens.IssueRefreshToken(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: issue refresh token: %v", domain.ErrInternal, err)
	}
	return &domain.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// announce publishes an identity event. Publication is best-effort by
// contract: a drop is logged and swallowed, never propagated to the flow
// that caused the event.
func (u *SessionUsecase) announce(ctx context.Context, routingKey string, event domain.IdentityEvent) {
	result := u.events.Publish(ctx, domain.UserEventsExchange, routingKey, event)
	if !result.Published {
		u.logger.Warn("identity event dropped",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"routing_key", routingKey,
			"reason", result.Reason,
		)
	}
}
