package service

import "errors"

var (
	// ErrValidation wraps every request shape problem; handlers map it to 400.
	ErrValidation = errors.New("validation failed")

	// ErrConflict marks uniqueness violations caught before the database does.
	ErrConflict = errors.New("already exists")

	// ErrSystemRoleProtected is returned before any write touches a system role.
	ErrSystemRoleProtected = errors.New("system role cannot be modified")

	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionInvalid covers revoked, expired and unknown refresh sessions.
	ErrSessionInvalid = errors.New("session invalid")
)
