// Package services defines the business logic for users, threads, messages
// and documents. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// Translation into user-facing notices or HTTP status codes is performed by
// the session controller and the handler layer.
package services

import (
	"errors"
	"fmt"

	"github.com/tbourn/smartlang-chat/internal/repo"
)

// Auth errors.
var (
	// ErrInvalidCredentials is returned for both unknown users and wrong
	// passwords so callers cannot tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidUser is returned when a signup has a blank username or
	// password.
	ErrInvalidUser = errors.New("username and password are required")

	// ErrUsernameTaken is returned by signup when the username exists.
	ErrUsernameTaken = errors.New("username already exists")

	// ErrInvalidToken is returned for malformed, expired or forged tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// Thread and message errors.
var (
	// ErrThreadNotFound indicates that the thread does not exist or is not
	// owned by the current user.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrNoThread is returned when an action needs a selected thread.
	ErrNoThread = errors.New("no thread selected")

	// ErrEmptySubmission is returned when a submission has neither text nor
	// a file.
	ErrEmptySubmission = errors.New("message and file are both empty")

	// ErrInvalidRole is returned when appending a message with an unknown role.
	ErrInvalidRole = errors.New("invalid message role")

	// ErrTooLong is returned when a message exceeds the configured limit.
	ErrTooLong = errors.New("message too long")

	// ErrMessageNotFound indicates that the requested message does not exist.
	ErrMessageNotFound = errors.New("message not found")
)

// Infrastructure errors.
var (
	// ErrStoreUnavailable wraps any persistence failure other than not-found.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrCompletion wraps failures of the completion provider.
	ErrCompletion = errors.New("completion failed")
)

// storeErr maps repository errors: not-found becomes notFound (when given),
// everything else is wrapped in ErrStoreUnavailable.
func storeErr(err, notFound error) error {
	if err == nil {
		return nil
	}
	if notFound != nil && repo.IsNotFound(err) {
		return notFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
