package rooms

import (
	"errors"

	"github.com/mossy-p/burner-signaling/internal/apperr"
)

var (
	ErrNotFound    = apperr.New(apperr.NotFound, "room not found")
	ErrExpired     = apperr.New(apperr.NotFound, "room expired")
	ErrBadPasscode = apperr.New(apperr.BadCredentialMaterial, "wrong passcode")
	ErrFull        = apperr.New(apperr.Conflict, "room is full")
	ErrForbidden   = apperr.New(apperr.Forbidden, "only the host can do that")
	ErrNotMember   = apperr.New(apperr.Forbidden, "not a participant of this room")
	ErrChatOff     = apperr.New(apperr.Forbidden, "chat is disabled in this meeting")
	ErrScreenOff   = apperr.New(apperr.Forbidden, "screen sharing is disabled in this meeting")
	ErrUnknownConn = apperr.New(apperr.AuthInvalid, "connection is not registered")

	errInvariant = apperr.New(apperr.Unexpected, "internal error")
)

// ErrStopped is returned once the coordinator has shut down.
var ErrStopped = errors.New("rooms: coordinator stopped")
