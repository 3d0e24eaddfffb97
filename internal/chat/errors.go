package chat

import (
	"errors"
	"fmt"
)

var (
	ErrAuthRequired     = errors.New("authentication required")
	ErrAuthInvalid      = errors.New("invalid credentials")
	ErrAccessDenied     = errors.New("access denied")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidData      = errors.New("invalid data")
	ErrRoomIDRequired   = fmt.Errorf("%w: roomId is required", ErrInvalidData)
	ErrNotFound         = errors.New("not found")
	ErrPersistence      = errors.New("persistence error")

	// ErrPresenceDegraded is only logged, callers see the user as offline.
	ErrPresenceDegraded = errors.New("presence degraded")
)
