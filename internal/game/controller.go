// internal/game/controller.go

// Package game implements the cycle state machine: revealing a bounded
// random subset of undrawn cards, committing to one, applying special-card
// side effects and moving the game between paused/running/started phases.
// Every handler runs its guard checks and mutations inside one store
// transaction; outbound sends ride along and the transaction rolls back as a
// whole on any failure.
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/trainwreck-game/trainwreck/internal/cache"
	"github.com/trainwreck-game/trainwreck/internal/catalog"
	"github.com/trainwreck-game/trainwreck/internal/models"
	"github.com/trainwreck-game/trainwreck/internal/store"
)

// Controller orchestrates every command and callback against the store.
type Controller struct {
	store     store.Store
	catalog   *catalog.Catalog
	messenger Messenger
	recorder  *cache.Recorder
	logger    *logrus.Logger

	// rollDice and newGameID are injectable for deterministic tests.
	rollDice  func() int
	newGameID func() int
}

// NewController wires the controller. recorder may be nil.
func NewController(st store.Store, cat *catalog.Catalog, m Messenger, rec *cache.Recorder, logger *logrus.Logger) *Controller {
	return &Controller{
		store:     st,
		catalog:   cat,
		messenger: m,
		recorder:  rec,
		logger:    logger,
		rollDice:  func() int { return rand.Intn(3) + 1 },
		newGameID: func() int { return rand.Intn(900000) + 100000 },
	}
}

// run executes op transactionally. A CheckError rolls everything back and is
// reported to the chat as one plain-text message; any other error is logged
// and reported generically.
func (c *Controller) run(ctx context.Context, chatID int64, op func(tx store.Tx) error) error {
	err := c.store.Atomic(ctx, op)
	if err == nil {
		return nil
	}

	var check *CheckError
	if errors.As(err, &check) {
		if sendErr := c.messenger.SendText(ctx, chatID, check.Message); sendErr != nil {
			c.logger.WithError(sendErr).WithField("chat", chatID).Warn("sending check failure notice")
		}
		return nil
	}

	c.logger.WithError(err).WithField("chat", chatID).Error("handler aborted")
	if sendErr := c.messenger.SendText(ctx, chatID, "Something went wrong, no changes were made"); sendErr != nil {
		c.logger.WithError(sendErr).WithField("chat", chatID).Warn("sending abort notice")
	}
	return err
}

func (c *Controller) record(ctx context.Context, gameID int, chatID int64, eventType string, payload map[string]any) {
	c.recorder.Record(ctx, cache.GameEventRecord{
		GameID:    gameID,
		ChatID:    chatID,
		EventType: eventType,
		Payload:   payload,
	})
}

// --- Guards ---

func getChat(tx store.Tx, chatID int64) (*models.Chat, error) {
	chat, err := tx.GetChat(chatID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return chat, nil
}

// adminGame resolves the game whose admin chat sent the command.
func adminGame(tx store.Tx, chatID int64) (*models.Game, error) {
	chat, err := getChat(tx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.Role != models.RoleAdmin {
		return nil, checkf("This is not an admin chat")
	}
	game, err := tx.GetGame(chat.GameID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return game, nil
}

// runningTeam resolves the running team's chat and game from a team command.
func runningTeam(tx store.Tx, chatID int64) (*models.Chat, *models.Game, error) {
	chat, err := getChat(tx, chatID)
	if err != nil {
		return nil, nil, err
	}
	if !chat.Role.IsTeam() {
		return nil, nil, checkf("This chat is not a team chat")
	}
	game, err := tx.GetGame(chat.GameID)
	if err != nil {
		return nil, nil, translateStoreErr(err)
	}
	if err := requireStarted(game); err != nil {
		return nil, nil, err
	}
	if game.IsPaused {
		return nil, nil, checkf("The game is currently paused")
	}
	if game.RunningTeam != chat.Role {
		return nil, nil, checkf("Your team is not currently running")
	}
	return chat, game, nil
}

func requireStarted(g *models.Game) error {
	if !g.IsStarted {
		return checkf("Game is not started, please wait for your admin to start the game")
	}
	return nil
}

// requireNoPending rejects a fresh command while the chat still has an
// outstanding interactive prompt. Chats without a role pass: they cannot
// have a prompt.
func requireNoPending(tx store.Tx, chatID int64) error {
	chat, err := tx.GetChat(chatID)
	if err != nil {
		if errors.Is(err, store.ErrChatNotFound) {
			return nil
		}
		return err
	}
	if chat.Pending != nil {
		return checkf("Finish or cancel the current operation first")
	}
	return nil
}

// --- Prompt helpers ---

// clearPending strips the outstanding keyboard and marker, if any.
func (c *Controller) clearPending(ctx context.Context, tx store.Tx, chat *models.Chat) error {
	if chat.Pending == nil {
		return nil
	}
	if err := c.messenger.RemoveKeyboard(ctx, chat.ID, chat.Pending.MessageID); err != nil {
		c.logger.WithError(err).WithField("chat", chat.ID).Warn("removing stale keyboard")
	}
	chat.Pending = nil
	return tx.SetPending(chat.ID, nil)
}

// promptCards sends a numbered selection keyboard over cards and records the
// new pending marker with a fresh epoch token.
func (c *Controller) promptCards(ctx context.Context, tx store.Tx, chatID int64, action Action, text, label string, cards []models.Card) error {
	token := uuid.New()
	buttons := make([]Button, len(cards))
	for i, card := range cards {
		buttons[i] = Button{
			Label: fmt.Sprintf("%s %d", label, i+1),
			Data:  Callback{Action: action, Token: token, Value: strconv.Itoa(card.ID)}.Encode(),
		}
	}
	messageID, err := c.messenger.Prompt(ctx, chatID, text, buttons)
	if err != nil {
		return err
	}
	return tx.SetPending(chatID, &models.PendingPrompt{
		Token:     token,
		Action:    string(action),
		MessageID: messageID,
	})
}

// promptChoices sends a keyboard of fixed labeled choices.
func (c *Controller) promptChoices(ctx context.Context, tx store.Tx, chatID int64, action Action, text string, choices [][2]string) error {
	token := uuid.New()
	buttons := make([]Button, len(choices))
	for i, choice := range choices {
		buttons[i] = Button{
			Label: choice[0],
			Data:  Callback{Action: action, Token: token, Value: choice[1]}.Encode(),
		}
	}
	messageID, err := c.messenger.Prompt(ctx, chatID, text, buttons)
	if err != nil {
		return err
	}
	return tx.SetPending(chatID, &models.PendingPrompt{
		Token:     token,
		Action:    string(action),
		MessageID: messageID,
	})
}

func (c *Controller) sendCards(ctx context.Context, chatID int64, cards []models.Card) error {
	for _, card := range cards {
		if err := c.messenger.SendImage(ctx, chatID, card.Image); err != nil {
			return err
		}
	}
	return nil
}
