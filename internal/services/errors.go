package services

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingParameter indicates a required request field was absent or empty.
	ErrMissingParameter = errors.New("missing parameter")
	// ErrInvalidParameter indicates a field was present but not acceptable.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrDuplicateUser indicates the email is already registered.
	ErrDuplicateUser = errors.New("user already exists")
	// ErrInvalidCredentials is returned for both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates the caller named a user other than the session user.
	ErrForbidden = errors.New("forbidden")
	// ErrStorageDisabled indicates no object storage backend is configured.
	ErrStorageDisabled = errors.New("object storage is not configured")
)

// ParamError names the request field behind a missing or invalid parameter.
type ParamError struct {
	Param string
	Err   error
}

func (e *ParamError) Error() string {
	if errors.Is(e.Err, ErrMissingParameter) {
		return e.Param + " is required"
	}
	return fmt.Sprintf("invalid %s", e.Param)
}

func (e *ParamError) Unwrap() error {
	return e.Err
}

func missing(param string) error {
	return &ParamError{Param: param, Err: ErrMissingParameter}
}

func invalid(param string) error {
	return &ParamError{Param: param, Err: ErrInvalidParameter}
}

// Authorize checks that a client supplied userId names the session user.
func Authorize(sessionUserID, userID string) error {
	if userID == "" {
		return missing("userId")
	}
	if userID != sessionUserID {
		return ErrForbidden
	}
	return nil
}
