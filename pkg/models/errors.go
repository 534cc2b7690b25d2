package models

import "errors"

// Common errors for credential and access control operations.
var (
	// User errors
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
	ErrInvalidUser   = errors.New("invalid username")

	// Role errors
	ErrRoleNotFound = errors.New("role not found")
	ErrInvalidRole  = errors.New("invalid role")

	// Auth configuration errors
	ErrInvalidAuthConfig = errors.New("invalid auth configuration")
)
