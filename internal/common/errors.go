// Package common defines shared constants and sentinel errors used across
// the server layers of dumpvault. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Returned to callers the access gate rejects.
	ErrorUnauthorized = errors.New("unauthorized")
)
