// internal/handlers/router.go

// Package handlers routes inbound chat traffic into the cycle controller and
// carries the controller's outbound messages back over the websocket chat
// gateway.
package handlers

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/trainwreck-game/trainwreck/internal/game"
)

var gameIDPattern = regexp.MustCompile(`^\d{6}$`)

// Router maps command names and button presses onto controller operations.
type Router struct {
	ctrl      *game.Controller
	messenger game.Messenger
	logger    *logrus.Logger
}

// NewRouter builds the command router.
func NewRouter(ctrl *game.Controller, m game.Messenger, logger *logrus.Logger) *Router {
	return &Router{ctrl: ctrl, messenger: m, logger: logger}
}

// HandleCommand parses one inbound "/command arg" line from chatID.
func (r *Router) HandleCommand(ctx context.Context, chatID int64, text string) error {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil
	}
	name := strings.TrimPrefix(fields[0], "/")
	args := fields[1:]

	switch name {
	case "start":
		return r.ctrl.Start(ctx, chatID)
	case "help":
		return r.ctrl.Help(ctx, chatID)
	case "rules":
		return r.ctrl.Rules(ctx, chatID)
	case "cancel":
		return r.ctrl.Cancel(ctx, chatID)

	case "create_game":
		return r.ctrl.CreateGame(ctx, chatID)
	case "create_team_1", "create_team_2", "create_team_3":
		teamNum := int(name[len(name)-1] - '0')
		gameID, ok := r.gameIDArg(ctx, chatID, args)
		if !ok {
			return nil
		}
		return r.ctrl.CreateTeam(ctx, chatID, gameID, teamNum)
	case "create_location_chat":
		gameID, ok := r.gameIDArg(ctx, chatID, args)
		if !ok {
			return nil
		}
		return r.ctrl.CreateLocationChat(ctx, chatID, gameID)

	case "delete_game":
		return r.ctrl.DeleteGame(ctx, chatID)
	case "delete_team_1", "delete_team_2", "delete_team_3":
		teamNum := int(name[len(name)-1] - '0')
		return r.ctrl.DeleteTeam(ctx, chatID, teamNum)
	case "delete_location_chat":
		return r.ctrl.DeleteLocationChat(ctx, chatID)

	case "start_game":
		return r.ctrl.StartGame(ctx, chatID)
	case "end_game":
		return r.ctrl.EndGame(ctx, chatID)
	case "catch":
		return r.ctrl.Catch(ctx, chatID)
	case "restart_game":
		return r.ctrl.RestartGame(ctx, chatID)

	case "complete_task":
		return r.ctrl.CompleteTask(ctx, chatID)
	case "current_task":
		return r.ctrl.CurrentTask(ctx, chatID)
	case "show_powerups":
		return r.ctrl.ShowPowerups(ctx, chatID)
	case "use_powerup":
		return r.ctrl.UsePowerup(ctx, chatID)
	}

	return r.messenger.SendText(ctx, chatID, "Unknown command, type /help for a list of commands")
}

// HandleCallback forwards one button press; token validation happens in the
// controller so it is atomic with the mutation.
func (r *Router) HandleCallback(ctx context.Context, chatID int64, data string) error {
	return r.ctrl.HandleCallback(ctx, chatID, data)
}

func (r *Router) gameIDArg(ctx context.Context, chatID int64, args []string) (int, bool) {
	if len(args) != 1 || !gameIDPattern.MatchString(args[0]) {
		if err := r.messenger.SendText(ctx, chatID, "Please provide a valid game id"); err != nil {
			r.logger.WithError(err).WithField("chat", chatID).Warn("sending game id notice")
		}
		return 0, false
	}
	id, _ := strconv.Atoi(args[0])
	return id, true
}
