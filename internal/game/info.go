// internal/game/info.go
package game

import (
	"context"
	"errors"

	"github.com/trainwreck-game/trainwreck/internal/models"
	"github.com/trainwreck-game/trainwreck/internal/store"
)

const helpText = "Available commands:\n" +
	"/help - Lists all available commands\n" +
	"/rules - Displays the game rule cards\n" +
	"/create_game - Creates a new game and assigns this chat as the admin chat\n" +
	"/create_team_<1-3> <game id> - Assigns this chat to the chosen team\n" +
	"/create_location_chat <game id> - Assigns this chat as the location chat\n" +
	"/current_task - Shows the current task card(s) for your team\n" +
	"/show_powerups - Displays your team's drawn powerup cards\n" +
	"/use_powerup - Lets your team choose a drawn powerup to use\n" +
	"/complete_task - Marks the current task as complete and continues the draw\n" +
	"/cancel - Cancels the current selection\n"

const adminHelpText = "\nAdmin commands:\n" +
	"/delete_game - Deletes the game and unassigns all chats\n" +
	"/delete_team_<1-3> - Deletes the team chat assignment\n" +
	"/delete_location_chat - Deletes the location chat assignment\n" +
	"/start_game - Starts the game for all teams\n" +
	"/end_game - Ends the game for all teams, can be undone with /start_game\n" +
	"/catch - Registers a catch and rotates the running team\n" +
	"/restart_game - Restarts the game for all teams after a catch\n"

// Start greets a chat that first talks to the coordinator.
func (c *Controller) Start(ctx context.Context, chatID int64) error {
	return c.messenger.SendText(ctx, chatID, "Welcome to TrainWreck! Type /help for a list of commands.")
}

// Help lists the commands; admin chats additionally see the admin section.
func (c *Controller) Help(ctx context.Context, chatID int64) error {
	text := helpText
	err := c.store.Atomic(ctx, func(tx store.Tx) error {
		chat, err := tx.GetChat(chatID)
		if err != nil {
			if errors.Is(err, store.ErrChatNotFound) {
				return nil
			}
			return err
		}
		if chat.Role == models.RoleAdmin {
			text += adminHelpText
		}
		return nil
	})
	if err != nil {
		c.logger.WithError(err).WithField("chat", chatID).Warn("resolving chat for help text")
	}
	return c.messenger.SendText(ctx, chatID, text)
}

// Rules sends every rule card to the requesting chat.
func (c *Controller) Rules(ctx context.Context, chatID int64) error {
	return c.sendCards(ctx, chatID, c.catalog.Rules())
}

// Cancel clears the chat's outstanding prompt, stripping its keyboard.
func (c *Controller) Cancel(ctx context.Context, chatID int64) error {
	return c.run(ctx, chatID, func(tx store.Tx) error {
		chat, err := getChat(tx, chatID)
		if err != nil {
			return err
		}
		if chat.Pending == nil {
			return checkf("No operation to cancel")
		}
		if err := c.clearPending(ctx, tx, chat); err != nil {
			return err
		}
		return c.messenger.SendText(ctx, chatID, "Operation cancelled")
	})
}

// CurrentTask shows the running team's drawn (and pair-pending) task cards.
func (c *Controller) CurrentTask(ctx context.Context, chatID int64) error {
	return c.run(ctx, chatID, func(tx store.Tx) error {
		chat, _, err := runningTeam(tx, chatID)
		if err != nil {
			return err
		}
		drawn, err := tx.CardsInState(chat.ID, models.KindTask, models.StateDrawn)
		if err != nil {
			return err
		}
		parked, err := tx.CardsInState(chat.ID, models.KindTask, models.StatePending)
		if err != nil {
			return err
		}
		cards := append(parked, drawn...)
		if len(cards) == 0 {
			return checkf("Your team has no drawn task")
		}
		return c.sendCards(ctx, chatID, cards)
	})
}

// ShowPowerups shows the running team's drawn powerup cards.
func (c *Controller) ShowPowerups(ctx context.Context, chatID int64) error {
	return c.run(ctx, chatID, func(tx store.Tx) error {
		chat, _, err := runningTeam(tx, chatID)
		if err != nil {
			return err
		}
		drawn, err := tx.CardsInState(chat.ID, models.KindPowerup, models.StateDrawn)
		if err != nil {
			return err
		}
		if len(drawn) == 0 {
			return checkf("Your team has no drawn powerups")
		}
		return c.sendCards(ctx, chatID, drawn)
	})
}
