package domain

import "errors"

// Operation error taxonomy. Sub-causes of ErrUnauthorized (missing account,
// wrong password, invalid token) are deliberately indistinguishable to the
// caller so the API does not leak which part of a credential was wrong.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
)

// Repository-level sentinels, translated into the taxonomy above by the
// session usecase.
var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrDuplicateEmail     = errors.New("email already registered")
)
