// internal/store/store.go

// Package store persists games, chat registrations and per-team card ledgers.
// Every command handler runs its guard checks and mutations inside a single
// Atomic call so that two rapid duplicate button presses cannot both pass a
// "is this card still shown" check before either commits.
package store

import (
	"context"
	"errors"

	"github.com/trainwreck-game/trainwreck/internal/models"
)

var (
	// ErrGameNotFound means the game id does not exist.
	ErrGameNotFound = errors.New("game not found")
	// ErrChatNotFound means the chat id is not registered to any game.
	ErrChatNotFound = errors.New("chat not found")
	// ErrChatAssigned means the chat already holds a role in some game.
	ErrChatAssigned = errors.New("chat already assigned")
	// ErrRoleOccupied means the game already has a chat in that role.
	ErrRoleOccupied = errors.New("role already occupied")
	// ErrInsufficientCards means fewer undrawn cards qualify than requested.
	// A reveal must never silently return a short list: the selection
	// keyboard is built 1:1 with the returned set.
	ErrInsufficientCards = errors.New("not enough cards left to show")
	// ErrAlreadyRevealed means the chat still has shown cards of that kind.
	// A second reveal would orphan the set the player is looking at.
	ErrAlreadyRevealed = errors.New("cards already revealed")
	// ErrCardNotShown means a selection named a card not currently shown.
	ErrCardNotShown = errors.New("card is not shown")
	// ErrCardNotDrawn means a resolve named a card not currently drawn or pending.
	ErrCardNotDrawn = errors.New("card is not drawn")
	// ErrStartInvariant means starting was attempted without all required
	// chats assigned or without a running team.
	ErrStartInvariant = errors.New("cannot start game: all required chats must exist")
	// ErrRunningTeamInvariant means the running team pointer was aimed at a
	// role without an assigned team chat.
	ErrRunningTeamInvariant = errors.New("running team must reference an assigned team chat")
)

// RevealFilter narrows the undrawn pool a reveal draws from.
type RevealFilter struct {
	ExtremesOnly bool
}

// Tx exposes every registry and ledger operation within one transaction.
// Implementations roll back all mutations when the Atomic callback errors.
type Tx interface {
	// Registry.
	CreateGame(gameID int, adminChatID int64) error
	GameIDExists(gameID int) (bool, error)
	GetGame(gameID int) (*models.Game, error)
	DeleteGame(gameID int) error
	// AssignChat registers chatID in role for the game and, for team roles,
	// bulk-creates one undrawn ledger row per card in ledger.
	AssignChat(gameID int, chatID int64, role models.Role, ledger []models.Card) error
	DeleteChat(gameID int, role models.Role) error
	GetChat(chatID int64) (*models.Chat, error)

	// SetStarted(true) re-checks the started-game invariant before flipping
	// the flag; the whole transaction aborts on violation.
	SetStarted(gameID int, started bool) error
	SetPaused(gameID int, paused bool) error
	SetRunningTeam(gameID int, role models.Role) error
	SetAllOrNothing(gameID int, active bool) error
	SetB1G1F(gameID int, state models.B1G1FState) error
	SetNextDrawCount(gameID int, n int) error
	AddScore(chatID int64, points int) error
	SetPending(chatID int64, p *models.PendingPrompt) error

	// Ledger.
	//
	// Reveal transitions count undrawn cards of the kind to shown, chosen
	// uniformly at random without replacement, and returns them. It fails
	// with ErrAlreadyRevealed while earlier shown cards of the kind exist
	// and with ErrInsufficientCards when the pool is too small.
	Reveal(chatID int64, kind models.CardKind, count int, filter RevealFilter) ([]models.Card, error)
	// Select transitions the named shown card to drawn. With clearOtherShown
	// every other shown card of the same kind reverts to undrawn.
	Select(chatID int64, cardID int, clearOtherShown bool) (*models.Card, error)
	// ResolveDrawn transitions a drawn or pending card to used or pending.
	ResolveDrawn(chatID int64, cardID int, newState models.CardState) error
	CardsInState(chatID int64, kind models.CardKind, state models.CardState) ([]models.Card, error)
	CountUndrawn(chatID int64, kind models.CardKind, filter RevealFilter) (int, error)
	// ResetOnCatch spends the caught team's open cards: task shown→undrawn,
	// task drawn/pending→used, powerups back to undrawn in every state.
	ResetOnCatch(chatID int64) error
}

// Store runs transactions against the backing state.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	Close()
}
