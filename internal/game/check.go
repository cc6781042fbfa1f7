// internal/game/check.go
package game

import (
	"errors"

	"github.com/trainwreck-game/trainwreck/internal/store"
)

// CheckError is a validation failure: the command is legal to attempt but
// not in this chat, phase or ledger state. It is reported to the originating
// chat as a single plain-text message and mutates nothing. Everything else
// bubbling out of a handler is treated as a programming or infrastructure
// error.
type CheckError struct {
	Message string
}

func (e *CheckError) Error() string {
	return e.Message
}

func checkf(msg string) error {
	return &CheckError{Message: msg}
}

// translateStoreErr maps ledger/registry sentinel errors onto the user-facing
// message for them, leaving unknown errors untouched.
func translateStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrGameNotFound):
		return checkf("Game not found, please check the game id and try again")
	case errors.Is(err, store.ErrChatNotFound):
		return checkf("Chat is not assigned to any role")
	case errors.Is(err, store.ErrChatAssigned):
		return checkf("This chat is already assigned to a game")
	case errors.Is(err, store.ErrRoleOccupied):
		return checkf("That role is already taken, ask your admin to delete it first")
	case errors.Is(err, store.ErrInsufficientCards):
		return checkf("Not enough cards left to show")
	case errors.Is(err, store.ErrCardNotShown):
		return checkf("That card is not part of the current draw")
	case errors.Is(err, store.ErrStartInvariant):
		return checkf("Cannot start game: all required chats must exist")
	default:
		return err
	}
}
