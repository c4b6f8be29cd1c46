package service

import "errors"

var (
	ErrUnauthenticated = errors.New("sign in required")
	ErrForbidden       = errors.New("not allowed for this room")
	ErrBanned          = errors.New("banned from this room")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidKind     = errors.New("invalid reaction kind")
	ErrHostCannotReact = errors.New("host cannot react in their own room")
	ErrRoomNotFound    = errors.New("room not found")
	ErrNotConfigured   = errors.New("token signing is not configured")
)
