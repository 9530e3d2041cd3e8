package security

import "golang.org/x/crypto/bcrypt"

// Work factor follows the OWASP recommendation for bcrypt and matches the
// cost the existing credential hashes were produced with.
const bcryptCost = 12

// HashPassword generates a salted bcrypt hash from a plaintext password.
// The plaintext is not retained beyond the call.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyPassword checks a plaintext password against a stored bcrypt hash.
// The comparison is constant-time inside bcrypt. A malformed stored hash
// verifies false rather than erroring: a corrupt record must behave exactly
// like a wrong password.
func VerifyPassword(password, encodedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
}
