package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "sentinel-identity"

// TokenKind selects which signing secret applies to an operation.
type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

// Claims are the verified contents of a token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// VerificationResult folds every verification failure (expired, bad
// signature, malformed, wrong kind) into Valid == false. Callers are never
// told why a token failed.
type VerificationResult struct {
	Valid  bool
	Claims *Claims
}

// TokenManager issues and verifies the access/refresh token pair. The two
// kinds are signed with distinct secrets, so possession of one token never
// implies the ability to mint the other.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenManager creates a manager. Both secrets must be non-empty; that is
// enforced at configuration load, not here.
func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessTTL reports the configured access-token lifetime.
func (m *TokenManager) AccessTTL() time.Duration {
	return m.accessTTL
}

// IssueAccessToken creates a short-lived signed token for userID.
func (m *TokenManager) IssueAccessToken(userID string) (string, error) {
	return m.sign(userID, m.accessSecret, m.accessTTL)
}

// IssueRefreshToken creates a long-lived signed token for userID.
func (m *TokenManager) IssueRefreshToken(userID string) (string, error) {
	return m.sign(userID, m.refreshSecret, m.refreshTTL)
}

func (m *TokenManager) sign(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Verify parses and validates a token against the secret for kind.
func (m *TokenManager) Verify(tokenString string, kind TokenKind) VerificationResult {
	secret := m.accessSecret
	if kind == RefreshToken {
		secret = m.refreshSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return VerificationResult{Valid: false}
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" || claims.ExpiresAt == nil {
		return VerificationResult{Valid: false}
	}

	verified := &Claims{
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		verified.IssuedAt = claims.IssuedAt.Time
	}
	return VerificationResult{Valid: true, Claims: verified}
}

// ExtractExpiryUnverified reads a token's expiry WITHOUT checking its
// signature. It exists solely so logout can compute a blacklist TTL from a
// token it is about to revoke; it must never be used to establish trust.
func ExtractExpiryUnverified(tokenString string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no expiry claim")
	}
	return claims.ExpiresAt.Time, nil
}
