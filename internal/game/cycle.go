// internal/game/cycle.go
package game

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/trainwreck-game/trainwreck/internal/models"
	"github.com/trainwreck-game/trainwreck/internal/store"
)

const defaultDrawCount = 3

// revealTasks draws the next task set for the running chat and prompts the
// selection. The draw size is 3 unless an mbs roll set a one-shot override,
// and all-or-nothing restricts the pool to extreme tasks.
func (c *Controller) revealTasks(ctx context.Context, tx store.Tx, gameID int, chatID int64) error {
	game, err := tx.GetGame(gameID)
	if err != nil {
		return translateStoreErr(err)
	}

	count := defaultDrawCount
	if game.NextDrawCount > 0 {
		count = game.NextDrawCount
		if err := tx.SetNextDrawCount(gameID, 0); err != nil {
			return err
		}
	}
	// An armed buy-one-get-one-free draw needs two picks, so a dice roll of 1
	// must not shrink the reveal below that.
	if game.B1G1F == models.B1G1FNoneDrawn && count < 2 {
		count = 2
	}
	filter := store.RevealFilter{ExtremesOnly: game.AllOrNothing}

	cards, err := tx.Reveal(chatID, models.KindTask, count, filter)
	if err != nil {
		return translateStoreErr(err)
	}
	if err := c.sendCards(ctx, chatID, cards); err != nil {
		return err
	}
	return c.promptCards(ctx, tx, chatID, ActionSelectTask, "Select your task:", "Task", cards)
}

// revealChoicePrompt asks whether to draw more tasks or powerups next.
func (c *Controller) revealChoicePrompt(ctx context.Context, tx store.Tx, chatID int64) error {
	return c.promptChoices(ctx, tx, chatID, ActionRevealChoice, "Reveal more tasks or powerups?", [][2]string{
		{"Tasks", ChoiceTasks},
		{"Powerups", ChoicePowerups},
	})
}

// HandleCallback consumes one button press. A press whose token does not
// match the chat's outstanding prompt belongs to an earlier draw: the user
// gets a notice and nothing changes.
func (c *Controller) HandleCallback(ctx context.Context, chatID int64, data string) error {
	cb, ok := DecodeCallback(data)
	return c.run(ctx, chatID, func(tx store.Tx) error {
		chat, err := getChat(tx, chatID)
		if err != nil {
			return err
		}
		if !ok || chat.Pending == nil ||
			chat.Pending.Token != cb.Token || chat.Pending.Action != string(cb.Action) {
			return checkf("This draw is no longer valid")
		}
		if err := c.clearPending(ctx, tx, chat); err != nil {
			return err
		}

		switch cb.Action {
		case ActionSelectTask:
			return c.onSelectTask(ctx, tx, chat, cb.Value)
		case ActionSelectPowerup:
			return c.onSelectPowerup(ctx, tx, chat, cb.Value)
		case ActionRevealChoice:
			return c.onRevealChoice(ctx, tx, chat, cb.Value)
		case ActionFullerton:
			return c.onFullerton(ctx, tx, chat, cb.Value)
		case ActionB1G1FOffer:
			return c.onB1G1FOffer(ctx, tx, chat, cb.Value)
		case ActionB1G1FComplete:
			return c.onB1G1FComplete(ctx, tx, chat, cb.Value)
		case ActionUsePowerup:
			return c.onUsePowerupSelect(ctx, tx, chat, cb.Value)
		}
		return fmt.Errorf("unhandled callback action %q", cb.Action)
	})
}

func cardIDValue(value string) (int, error) {
	id, err := strconv.Atoi(value)
	if err != nil {
		return 0, checkf("This draw is no longer valid")
	}
	return id, nil
}

// guardRunningCallback re-checks phase and role inside the transaction; a
// catch or end between prompt and press invalidates the button.
func guardRunningCallback(tx store.Tx, chat *models.Chat) (*models.Game, error) {
	game, err := tx.GetGame(chat.GameID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if !game.IsStarted || game.IsPaused || game.RunningTeam != chat.Role {
		return nil, checkf("This draw is no longer valid")
	}
	return game, nil
}

func (c *Controller) onSelectTask(ctx context.Context, tx store.Tx, chat *models.Chat, value string) error {
	game, err := guardRunningCallback(tx, chat)
	if err != nil {
		return err
	}
	cardID, err := cardIDValue(value)
	if err != nil {
		return err
	}

	// The extreme-only restriction covers exactly the reveal being consumed.
	if game.AllOrNothing {
		if err := tx.SetAllOrNothing(game.ID, false); err != nil {
			return err
		}
	}

	switch game.B1G1F {
	case models.B1G1FNoneDrawn:
		// First pick of the pair keeps its siblings shown so the second
		// pick still has the full set to choose from.
		card, err := tx.Select(chat.ID, cardID, false)
		if err != nil {
			return translateStoreErr(err)
		}
		if err := tx.SetB1G1F(game.ID, models.B1G1FOneDrawn); err != nil {
			return err
		}
		c.record(ctx, game.ID, chat.ID, "task_selected", map[string]any{"card": card.ID, "b1g1f": true})
		if err := c.messenger.SendText(ctx, chat.ID, "You have selected the following task:"); err != nil {
			return err
		}
		if err := c.messenger.SendImage(ctx, chat.ID, card.Image); err != nil {
			return err
		}
		remaining, err := tx.CardsInState(chat.ID, models.KindTask, models.StateShown)
		if err != nil {
			return err
		}
		return c.promptCards(ctx, tx, chat.ID, ActionSelectTask, "Select your second task:", "Task", remaining)

	case models.B1G1FOneDrawn:
		card, err := tx.Select(chat.ID, cardID, true)
		if err != nil {
			return translateStoreErr(err)
		}
		if err := tx.SetB1G1F(game.ID, models.B1G1FBothDrawn); err != nil {
			return err
		}
		c.record(ctx, game.ID, chat.ID, "task_selected", map[string]any{"card": card.ID, "b1g1f": true})
		drawn, err := tx.CardsInState(chat.ID, models.KindTask, models.StateDrawn)
		if err != nil {
			return err
		}
		if err := c.messenger.SendText(ctx, chat.ID, "You have selected the following tasks:"); err != nil {
			return err
		}
		return c.sendCards(ctx, chat.ID, drawn)

	default:
		card, err := tx.Select(chat.ID, cardID, true)
		if err != nil {
			return translateStoreErr(err)
		}
		c.record(ctx, game.ID, chat.ID, "task_selected", map[string]any{"card": card.ID})
		if err := c.messenger.SendText(ctx, chat.ID, "You have selected the following task:"); err != nil {
			return err
		}
		return c.messenger.SendImage(ctx, chat.ID, card.Image)
	}
}

// CompleteTask scores the running team's drawn task and moves the cycle on.
// Under an active buy-one-get-one-free pair it instead walks the two-step
// completion flow.
func (c *Controller) CompleteTask(ctx context.Context, chatID int64) error {
	return c.run(ctx, chatID, func(tx store.Tx) error {
		chat, game, err := runningTeam(tx, chatID)
		if err != nil {
			return err
		}
		if chat.Pending != nil {
			return checkf("Finish or cancel the current operation first")
		}

		drawn, err := tx.CardsInState(chat.ID, models.KindTask, models.StateDrawn)
		if err != nil {
			return err
		}

		switch game.B1G1F {
		case models.B1G1FBothDrawn:
			if len(drawn) != 2 {
				return fmt.Errorf("b1g1f both-drawn with %d drawn tasks", len(drawn))
			}
			return c.promptCards(ctx, tx, chat.ID, ActionB1G1FComplete,
				"Which task did you complete?", "Task", drawn)

		case models.B1G1FOneCompleted:
			parked, err := tx.CardsInState(chat.ID, models.KindTask, models.StatePending)
			if err != nil {
				return err
			}
			if len(parked) != 1 || len(drawn) != 1 {
				return fmt.Errorf("b1g1f one-completed with %d pending and %d drawn tasks", len(parked), len(drawn))
			}
			total := parked[0].Points() + drawn[0].Points()
			if err := tx.ResolveDrawn(chat.ID, parked[0].ID, models.StateUsed); err != nil {
				return translateStoreErr(err)
			}
			if err := tx.ResolveDrawn(chat.ID, drawn[0].ID, models.StateUsed); err != nil {
				return translateStoreErr(err)
			}
			if err := tx.AddScore(chat.ID, total); err != nil {
				return err
			}
			if err := tx.SetB1G1F(game.ID, models.B1G1FInactive); err != nil {
				return err
			}
			c.record(ctx, game.ID, chat.ID, "task_completed", map[string]any{
				"cards": []int{parked[0].ID, drawn[0].ID}, "points": total, "b1g1f": true,
			})
			if err := c.messenger.SendText(ctx, chat.ID, fmt.Sprintf(
				"Both tasks completed! Your team earned %d points", total)); err != nil {
				return err
			}
			return c.revealChoicePrompt(ctx, tx, chat.ID)

		case models.B1G1FNoneDrawn, models.B1G1FOneDrawn:
			return checkf("Select your tasks first")

		default:
			if len(drawn) == 0 {
				return checkf("Your team has no drawn task, select a task first")
			}
			if len(drawn) > 1 {
				return fmt.Errorf("%d drawn tasks outside a b1g1f pair", len(drawn))
			}
			return c.completeSingleTask(ctx, tx, chat, game, drawn[0])
		}
	})
}

func (c *Controller) completeSingleTask(ctx context.Context, tx store.Tx, chat *models.Chat, game *models.Game, card models.Card) error {
	if err := tx.ResolveDrawn(chat.ID, card.ID, models.StateUsed); err != nil {
		return translateStoreErr(err)
	}
	points := card.Points()
	if err := tx.AddScore(chat.ID, points); err != nil {
		return err
	}
	c.record(ctx, game.ID, chat.ID, "task_completed", map[string]any{"card": card.ID, "points": points})
	if err := c.messenger.SendText(ctx, chat.ID, fmt.Sprintf(
		"Task completed! Your team earned %d points", points)); err != nil {
		return err
	}

	switch card.Task.Special {
	case models.TaskSpecialFullerton:
		return c.promptChoices(ctx, tx, chat.ID, ActionFullerton,
			"Did you arrive early or late?", [][2]string{
				{"Early / on time", ChoiceEarly},
				{"Late", ChoiceLate},
			})
	case models.TaskSpecialMBS:
		roll := c.rollDice()
		if err := tx.SetNextDrawCount(game.ID, roll); err != nil {
			return err
		}
		c.record(ctx, game.ID, chat.ID, "dice_rolled", map[string]any{"roll": roll})
		if err := c.messenger.SendText(ctx, chat.ID, fmt.Sprintf(
			"You rolled a %d! Your next draw will reveal %d task(s)", roll, roll)); err != nil {
			return err
		}
		return c.revealChoicePrompt(ctx, tx, chat.ID)
	default:
		return c.revealChoicePrompt(ctx, tx, chat.ID)
	}
}

func (c *Controller) onB1G1FComplete(ctx context.Context, tx store.Tx, chat *models.Chat, value string) error {
	game, err := guardRunningCallback(tx, chat)
	if err != nil {
		return err
	}
	if game.B1G1F != models.B1G1FBothDrawn {
		return fmt.Errorf("b1g1f completion choice in state %q", game.B1G1F)
	}
	cardID, err := cardIDValue(value)
	if err != nil {
		return err
	}

	// Completed but unscored until the partner task lands.
	if err := tx.ResolveDrawn(chat.ID, cardID, models.StatePending); err != nil {
		return translateStoreErr(err)
	}
	if err := tx.SetB1G1F(game.ID, models.B1G1FOneCompleted); err != nil {
		return err
	}
	c.record(ctx, game.ID, chat.ID, "b1g1f_first_completed", map[string]any{"card": cardID})
	return c.messenger.SendText(ctx, chat.ID,
		"Noted! Complete your second task, then run /complete_task again")
}

func (c *Controller) onFullerton(ctx context.Context, tx store.Tx, chat *models.Chat, value string) error {
	game, err := guardRunningCallback(tx, chat)
	if err != nil {
		return err
	}
	switch value {
	case ChoiceEarly:
		c.record(ctx, game.ID, chat.ID, "fullerton", map[string]any{"early": true})
		return c.revealChoicePrompt(ctx, tx, chat.ID)
	case ChoiceLate:
		// Late skips the reveal choice and goes straight to the next tasks.
		c.record(ctx, game.ID, chat.ID, "fullerton", map[string]any{"early": false})
		if err := c.messenger.SendText(ctx, chat.ID,
			"Too late! Drawing your next tasks right away"); err != nil {
			return err
		}
		return c.revealTasks(ctx, tx, game.ID, chat.ID)
	}
	return checkf("This draw is no longer valid")
}

func (c *Controller) onRevealChoice(ctx context.Context, tx store.Tx, chat *models.Chat, value string) error {
	game, err := guardRunningCallback(tx, chat)
	if err != nil {
		return err
	}
	switch value {
	case ChoiceTasks:
		return c.revealTasks(ctx, tx, game.ID, chat.ID)
	case ChoicePowerups:
		cards, err := tx.Reveal(chat.ID, models.KindPowerup, defaultDrawCount, store.RevealFilter{})
		if err != nil {
			return translateStoreErr(err)
		}
		if err := c.sendCards(ctx, chat.ID, cards); err != nil {
			return err
		}
		return c.promptCards(ctx, tx, chat.ID, ActionSelectPowerup, "Select your powerup:", "Powerup", cards)
	}
	return checkf("This draw is no longer valid")
}

func (c *Controller) onSelectPowerup(ctx context.Context, tx store.Tx, chat *models.Chat, value string) error {
	game, err := guardRunningCallback(tx, chat)
	if err != nil {
		return err
	}
	cardID, err := cardIDValue(value)
	if err != nil {
		return err
	}
	card, err := tx.Select(chat.ID, cardID, true)
	if err != nil {
		return translateStoreErr(err)
	}
	c.record(ctx, game.ID, chat.ID, "powerup_selected", map[string]any{"card": card.ID})
	if err := c.messenger.SendText(ctx, chat.ID, "You have drawn the following powerup:"); err != nil {
		return err
	}
	if err := c.messenger.SendImage(ctx, chat.ID, card.Image); err != nil {
		return err
	}

	if card.Powerup.Special == models.PowerupSpecialB1G1F {
		// Offer immediate use only when a dual draw is actually possible.
		undrawn, err := tx.CountUndrawn(chat.ID, models.KindTask, store.RevealFilter{})
		if err != nil {
			return err
		}
		if undrawn >= 2 {
			return c.promptChoices(ctx, tx, chat.ID, ActionB1G1FOffer,
				"Use it immediately on your next draw?", [][2]string{
					{"Use now", ChoiceUseNow + "/" + strconv.Itoa(card.ID)},
					{"Keep for later", ChoiceKeep + "/" + strconv.Itoa(card.ID)},
				})
		}
	}
	return c.revealTasks(ctx, tx, game.ID, chat.ID)
}

func (c *Controller) onB1G1FOffer(ctx context.Context, tx store.Tx, chat *models.Chat, value string) error {
	game, err := guardRunningCallback(tx, chat)
	if err != nil {
		return err
	}
	choice, idStr, found := strings.Cut(value, "/")
	if !found {
		return checkf("This draw is no longer valid")
	}
	cardID, err := cardIDValue(idStr)
	if err != nil {
		return err
	}

	switch choice {
	case ChoiceUseNow:
		if err := tx.ResolveDrawn(chat.ID, cardID, models.StateUsed); err != nil {
			return translateStoreErr(err)
		}
		if err := tx.SetB1G1F(game.ID, models.B1G1FNoneDrawn); err != nil {
			return err
		}
		c.record(ctx, game.ID, chat.ID, "b1g1f_armed", map[string]any{"card": cardID})
		if err := c.messenger.SendText(ctx, chat.ID,
			"Buy one get one free is active: pick two tasks from your next draw"); err != nil {
			return err
		}
	case ChoiceKeep:
		if err := c.messenger.SendText(ctx, chat.ID,
			"Powerup kept, redeem it later with /use_powerup"); err != nil {
			return err
		}
	default:
		return checkf("This draw is no longer valid")
	}
	return c.revealTasks(ctx, tx, game.ID, chat.ID)
}

// UsePowerup lets the running team activate any drawn powerup mid-cycle.
func (c *Controller) UsePowerup(ctx context.Context, chatID int64) error {
	return c.run(ctx, chatID, func(tx store.Tx) error {
		chat, _, err := runningTeam(tx, chatID)
		if err != nil {
			return err
		}
		if chat.Pending != nil {
			return checkf("Finish or cancel the current operation first")
		}
		drawn, err := tx.CardsInState(chat.ID, models.KindPowerup, models.StateDrawn)
		if err != nil {
			return err
		}
		if len(drawn) == 0 {
			return checkf("Your team has no drawn powerups")
		}
		return c.promptCards(ctx, tx, chat.ID, ActionUsePowerup, "Select a powerup to use:", "Powerup", drawn)
	})
}

func (c *Controller) onUsePowerupSelect(ctx context.Context, tx store.Tx, chat *models.Chat, value string) error {
	game, err := guardRunningCallback(tx, chat)
	if err != nil {
		return err
	}
	cardID, err := cardIDValue(value)
	if err != nil {
		return err
	}
	card := c.catalog.Get(cardID)
	if card == nil || card.Kind != models.KindPowerup {
		return checkf("This draw is no longer valid")
	}
	if err := tx.ResolveDrawn(chat.ID, cardID, models.StateUsed); err != nil {
		return translateStoreErr(err)
	}

	switch card.Powerup.Special {
	case models.PowerupSpecialAllOrNothing:
		if err := tx.SetAllOrNothing(game.ID, true); err != nil {
			return err
		}
	case models.PowerupSpecialB1G1F:
		if err := tx.SetB1G1F(game.ID, models.B1G1FNoneDrawn); err != nil {
			return err
		}
	}

	c.record(ctx, game.ID, chat.ID, "powerup_used", map[string]any{"card": card.ID})
	if err := c.messenger.SendText(ctx, chat.ID, "Your team used the following powerup:"); err != nil {
		return err
	}
	if err := c.messenger.SendImage(ctx, chat.ID, card.Image); err != nil {
		return err
	}

	if card.Powerup.SendToChasers {
		teamNum := chat.Role.TeamIndex() + 1
		for _, role := range models.TeamRoles {
			otherID, ok := game.Chats[role]
			if !ok || otherID == chat.ID {
				continue
			}
			if err := c.messenger.SendText(ctx, otherID, fmt.Sprintf(
				"Team %d used the following powerup:", teamNum)); err != nil {
				return err
			}
			if err := c.messenger.SendImage(ctx, otherID, card.Image); err != nil {
				return err
			}
		}
	}
	return nil
}
