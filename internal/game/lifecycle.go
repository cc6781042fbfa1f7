// internal/game/lifecycle.go
package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/trainwreck-game/trainwreck/internal/models"
	"github.com/trainwreck-game/trainwreck/internal/store"
)

const (
	runnerAnnouncement = "The game has started! You are the runners, please send your location into the location chat"
	chaserAnnouncement = "The game has started! You are the chasers, please wait 20 minutes before starting your chase"
)

// CreateGame registers a new game with the sender as its admin chat.
func (c *Controller) CreateGame(ctx context.Context, chatID int64) error {
	return c.run(ctx, chatID, func(tx store.Tx) error {
		if err := requireNoPending(tx, chatID); err != nil {
			return err
		}
		if _, err := tx.GetChat(chatID); err == nil {
			return checkf("This chat is already assigned to a game")
		}

		var gameID int
		for {
			gameID = c.newGameID()
			exists, err := tx.GameIDExists(gameID)
			if err != nil {
				return err
			}
			if !exists {
				break
			}
		}
		if err := tx.CreateGame(gameID, chatID); err != nil {
			return translateStoreErr(err)
		}

		c.record(ctx, gameID, chatID, "game_created", nil)
		return c.messenger.SendText(ctx, chatID, fmt.Sprintf(
			"New game created with game id: %d, this chat is the admin chat of the game\n\n"+
				"Use this id to set the team and location chats via /create_team_<team number> and /create_location_chat",
			gameID,
		))
	})
}

// CreateTeam assigns the sender as team teamNum's chat and seeds its ledger
// with one undrawn row per non-rule card.
func (c *Controller) CreateTeam(ctx context.Context, chatID int64, gameID, teamNum int) error {
	return c.run(ctx, chatID, func(tx store.Tx) error {
		if err := requireNoPending(tx, chatID); err != nil {
			return err
		}
		role, err := models.TeamRole(teamNum)
		if err != nil {
			return checkf("Please provide a team number between 1 and 3")
		}
		if err := tx.AssignChat(gameID, chatID, role, c.catalog.NonRule()); err != nil {
			return translateStoreErr(err)
		}

		c.record(ctx, gameID, chatID, "chat_assigned", map[string]any{"role": string(role)})
		return c.messenger.SendText(ctx, chatID, fmt.Sprintf("This chat has been assigned to team %d", teamNum))
	})
}

// CreateLocationChat assigns the sender as the game's location chat.
func (c *Controller) CreateLocationChat(ctx context.Context, chatID int64, gameID int) error {
	return c.run(ctx, chatID, func(tx store.Tx) error {
		if err := requireNoPending(tx, chatID); err != nil {
			return err
		}
		if err := tx.AssignChat(gameID, chatID, models.RoleLocation, nil); err != nil {
			return translateStoreErr(err)
		}

		c.record(ctx, gameID, chatID, "chat_assigned", map[string]any{"role": string(models.RoleLocation)})
		return c.messenger.SendText(ctx, chatID, "This chat has been assigned as the location chat")
	})
}

// DeleteGame destroys the game, cascading to its chats and ledgers.
func (c *Controller) DeleteGame(ctx context.Context, chatID int64) error {
	return c.run(ctx, chatID, func(tx store.Tx) error {
		if err := requireNoPending(tx, chatID); err != nil {
			return err
		}
		game, err := adminGame(tx, chatID)
		if err != nil {
			return err
		}
		if err := tx.DeleteGame(game.ID); err != nil {
			return translateStoreErr(err)
		}

		c.record(ctx, game.ID, chatID, "game_deleted", nil)
		return c.messenger.SendText(ctx, chatID, "Game successfully deleted, all chats have been unassigned")
	})
}

// DeleteTeam removes team teamNum's chat assignment and its ledger rows.
func (c *Controller) DeleteTeam(ctx context.Context, chatID int64, teamNum int) error {
	return c.run(ctx, chatID, func(tx store.Tx) error {
		if err := requireNoPending(tx, chatID); err != nil {
			return err
		}
		game, err := adminGame(tx, chatID)
		if err != nil {
			return err
		}
		if game.IsStarted {
			return checkf("Game is started, end the game before deleting chats")
		}
		role, err := models.TeamRole(teamNum)
		if err != nil {
			return checkf("Please provide a team number between 1 and 3")
		}
		if err := tx.DeleteChat(game.ID, role); err != nil {
			return checkf(fmt.Sprintf("Team %d chat does not exist, cannot delete", teamNum))
		}

		c.record(ctx, game.ID, chatID, "chat_deleted", map[string]any{"role": string(role)})
		return c.messenger.SendText(ctx, chatID, fmt.Sprintf(
			"Team %d chat successfully deleted, team can now create a new chat assignment", teamNum))
	})
}

// DeleteLocationChat removes the location chat assignment.
func (c *Controller) DeleteLocationChat(ctx context.Context, chatID int64) error {
	return c.run(ctx, chatID, func(tx store.Tx) error {
		if err := requireNoPending(tx, chatID); err != nil {
			return err
		}
		game, err := adminGame(tx, chatID)
		if err != nil {
			return err
		}
		if game.IsStarted {
			return checkf("Game is started, end the game before deleting chats")
		}
		if err := tx.DeleteChat(game.ID, models.RoleLocation); err != nil {
			return checkf("Location chat does not exist, cannot delete")
		}

		c.record(ctx, game.ID, chatID, "chat_deleted", map[string]any{"role": string(models.RoleLocation)})
		return c.messenger.SendText(ctx, chatID,
			"Location chat successfully deleted, a new location chat can now be created")
	})
}

// StartGame flips the game to started with team 1 running and opens the
// first cycle. Starting requires all four non-admin chats assigned; the
// store re-checks the invariant before committing the flag.
func (c *Controller) StartGame(ctx context.Context, chatID int64) error {
	return c.run(ctx, chatID, func(tx store.Tx) error {
		if err := requireNoPending(tx, chatID); err != nil {
			return err
		}
		game, err := adminGame(tx, chatID)
		if err != nil {
			return err
		}
		if game.IsStarted {
			return checkf("Game is already started")
		}
		if missing := game.MissingChats(); len(missing) > 0 {
			names := make([]string, len(missing))
			for i, role := range missing {
				names[i] = string(role)
			}
			return checkf("Missing required chats: " + strings.Join(names, ", "))
		}

		if err := tx.SetRunningTeam(game.ID, models.RoleTeam1); err != nil {
			return translateStoreErr(err)
		}
		if err := tx.SetStarted(game.ID, true); err != nil {
			return translateStoreErr(err)
		}

		c.record(ctx, game.ID, chatID, "game_started", nil)
		return c.startCycle(ctx, tx, game.ID)
	})
}

// EndGame flips the started flag off; /start_game undoes it.
func (c *Controller) EndGame(ctx context.Context, chatID int64) error {
	return c.run(ctx, chatID, func(tx store.Tx) error {
		if err := requireNoPending(tx, chatID); err != nil {
			return err
		}
		game, err := adminGame(tx, chatID)
		if err != nil {
			return err
		}
		if !game.IsStarted {
			return checkf("Game is not started")
		}
		if err := tx.SetStarted(game.ID, false); err != nil {
			return translateStoreErr(err)
		}

		c.record(ctx, game.ID, chatID, "game_ended", nil)
		return c.messenger.SendText(ctx, chatID,
			"Game successfully ended, teams can now wait for the next game or ask their admin to restart the game")
	})
}

// Catch ends the current runner's tenure: open cards are spent, the running
// pointer rotates to the next team and the game pauses until /restart_game.
func (c *Controller) Catch(ctx context.Context, chatID int64) error {
	return c.run(ctx, chatID, func(tx store.Tx) error {
		if err := requireNoPending(tx, chatID); err != nil {
			return err
		}
		game, err := adminGame(tx, chatID)
		if err != nil {
			return err
		}
		if err := requireStarted(game); err != nil {
			return err
		}
		if game.IsPaused {
			return checkf("Game is currently paused, cannot register catch")
		}

		runningChat, err := tx.GetChat(game.RunningChatID())
		if err != nil {
			return translateStoreErr(err)
		}
		if err := c.clearPending(ctx, tx, runningChat); err != nil {
			return err
		}
		if err := tx.ResetOnCatch(runningChat.ID); err != nil {
			return translateStoreErr(err)
		}

		if err := tx.SetRunningTeam(game.ID, game.NextRunningTeam()); err != nil {
			return translateStoreErr(err)
		}
		if err := tx.SetPaused(game.ID, true); err != nil {
			return err
		}
		if err := tx.SetAllOrNothing(game.ID, false); err != nil {
			return err
		}
		if err := tx.SetB1G1F(game.ID, models.B1G1FInactive); err != nil {
			return err
		}
		if err := tx.SetNextDrawCount(game.ID, 0); err != nil {
			return err
		}

		c.record(ctx, game.ID, runningChat.ID, "catch", map[string]any{
			"caught_team": string(runningChat.Role),
		})
		if locationID, ok := game.Chats[models.RoleLocation]; ok {
			if err := c.messenger.SendText(ctx, locationID,
				"A catch has been registered, the runners can stop sharing their location"); err != nil {
				return err
			}
		}
		return c.messenger.SendText(ctx, chatID,
			"Catch registered, the next team is now the running team. Use /restart_game to start the next cycle.")
	})
}

// RestartGame resumes a paused game and opens the next cycle.
func (c *Controller) RestartGame(ctx context.Context, chatID int64) error {
	return c.run(ctx, chatID, func(tx store.Tx) error {
		if err := requireNoPending(tx, chatID); err != nil {
			return err
		}
		game, err := adminGame(tx, chatID)
		if err != nil {
			return err
		}
		if err := requireStarted(game); err != nil {
			return err
		}
		if !game.IsPaused {
			return checkf("Game is not paused, cannot restart game")
		}
		if err := tx.SetPaused(game.ID, false); err != nil {
			return err
		}

		c.record(ctx, game.ID, chatID, "cycle_restarted", nil)
		return c.startCycle(ctx, tx, game.ID)
	})
}

// startCycle announces roles and puts the first task draw in front of the
// running team. Any stale prompt marker on the running chat is cleared first.
func (c *Controller) startCycle(ctx context.Context, tx store.Tx, gameID int) error {
	game, err := tx.GetGame(gameID)
	if err != nil {
		return translateStoreErr(err)
	}
	runningChat, err := tx.GetChat(game.RunningChatID())
	if err != nil {
		return translateStoreErr(err)
	}
	if err := c.clearPending(ctx, tx, runningChat); err != nil {
		return err
	}

	for _, role := range models.TeamRoles {
		teamChatID := game.Chats[role]
		text := chaserAnnouncement
		if teamChatID == runningChat.ID {
			text = runnerAnnouncement
		}
		if err := c.messenger.SendText(ctx, teamChatID, text); err != nil {
			return err
		}
	}

	c.record(ctx, game.ID, runningChat.ID, "cycle_started", map[string]any{
		"running_team": string(game.RunningTeam),
	})
	return c.revealTasks(ctx, tx, gameID, runningChat.ID)
}
