package auth

import "errors"

// Common authentication errors.
var (
	// ErrInvalidToken indicates the token is malformed, has an invalid
	// signature, or fails validation for a reason other than expiry.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token's expiry has passed.
	ErrExpiredToken = errors.New("token expired")

	// ErrTokenNotYetValid indicates the token's not-before claim is in the
	// future.
	ErrTokenNotYetValid = errors.New("token not yet valid")
)
