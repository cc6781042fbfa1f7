// internal/game/lifecycle_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainwreck-game/trainwreck/internal/models"
)

func standardDeck() []models.Card {
	return deck(
		taskCards(10, models.DifficultyNormal, models.TaskSpecialNone),
		taskCards(3, models.DifficultyExtreme, models.TaskSpecialNone),
		powerupCards(3, models.PowerupSpecialNone, false),
	)
}

func TestCreateGameAssignsAdmin(t *testing.T) {
	e := newEnv(t, standardDeck())
	require.NoError(t, e.ctrl.CreateGame(e.ctx, adminChat))

	assert.Equal(t, models.RoleAdmin, e.chat(adminChat).Role)
	assert.Contains(t, e.msgr.lastText(adminChat), "111111")

	// A chat holds at most one role.
	require.NoError(t, e.ctrl.CreateGame(e.ctx, adminChat))
	assert.Equal(t, "This chat is already assigned to a game", e.msgr.lastText(adminChat))
}

func TestCreateTeamValidation(t *testing.T) {
	e := newEnv(t, standardDeck())
	require.NoError(t, e.ctrl.CreateGame(e.ctx, adminChat))

	require.NoError(t, e.ctrl.CreateTeam(e.ctx, team1Chat, testGameID, 4))
	assert.Equal(t, "Please provide a team number between 1 and 3", e.msgr.lastText(team1Chat))

	require.NoError(t, e.ctrl.CreateTeam(e.ctx, team1Chat, 999999, 1))
	assert.Equal(t, "Game not found, please check the game id and try again", e.msgr.lastText(team1Chat))

	require.NoError(t, e.ctrl.CreateTeam(e.ctx, team1Chat, testGameID, 1))
	assert.Equal(t, "This chat has been assigned to team 1", e.msgr.lastText(team1Chat))

	require.NoError(t, e.ctrl.CreateTeam(e.ctx, team2Chat, testGameID, 1))
	assert.Equal(t, "That role is already taken, ask your admin to delete it first", e.msgr.lastText(team2Chat))
}

func TestStartGameRequiresAllChats(t *testing.T) {
	e := newEnv(t, standardDeck())
	require.NoError(t, e.ctrl.CreateGame(e.ctx, adminChat))
	require.NoError(t, e.ctrl.CreateTeam(e.ctx, team1Chat, testGameID, 1))

	require.NoError(t, e.ctrl.StartGame(e.ctx, adminChat))
	assert.Equal(t, "Missing required chats: location, team_2, team_3", e.msgr.lastText(adminChat))
	assert.False(t, e.game().IsStarted)
}

func TestStartGameRejectsNonAdmin(t *testing.T) {
	e := newEnv(t, standardDeck())
	e.setup()

	require.NoError(t, e.ctrl.StartGame(e.ctx, team1Chat))
	assert.Equal(t, "This is not an admin chat", e.msgr.lastText(team1Chat))
	assert.False(t, e.game().IsStarted)
}

func TestStartGameOpensFirstCycle(t *testing.T) {
	e := newEnv(t, standardDeck())
	e.start()

	g := e.game()
	assert.True(t, g.IsStarted)
	assert.Equal(t, models.RoleTeam1, g.RunningTeam)

	assert.Contains(t, e.msgr.texts[team1Chat], runnerAnnouncement)
	assert.Contains(t, e.msgr.texts[team2Chat], chaserAnnouncement)
	assert.Contains(t, e.msgr.texts[team3Chat], chaserAnnouncement)

	assert.Equal(t, 3, e.msgr.imageCount(team1Chat))
	prompt := e.msgr.lastPrompt(team1Chat)
	require.NotNil(t, prompt)
	assert.Equal(t, "Select your task:", prompt.text)
	assert.Len(t, prompt.buttons, 3)
	assert.NotNil(t, e.chat(team1Chat).Pending)

	require.NoError(t, e.ctrl.StartGame(e.ctx, adminChat))
	assert.Equal(t, "Game is already started", e.msgr.lastText(adminChat))
}

func TestEndGameBlocksTeamCommands(t *testing.T) {
	e := newEnv(t, standardDeck())
	e.start()
	e.press(team1Chat, 0)

	require.NoError(t, e.ctrl.EndGame(e.ctx, adminChat))
	assert.False(t, e.game().IsStarted)

	require.NoError(t, e.ctrl.CompleteTask(e.ctx, team1Chat))
	assert.Equal(t, "Game is not started, please wait for your admin to start the game",
		e.msgr.lastText(team1Chat))

	require.NoError(t, e.ctrl.EndGame(e.ctx, adminChat))
	assert.Equal(t, "Game is not started", e.msgr.lastText(adminChat))
}

func TestCatchRotatesPausesAndResets(t *testing.T) {
	e := newEnv(t, standardDeck())
	e.start()
	e.press(team1Chat, 0) // leave team 1 with a drawn task

	require.NoError(t, e.ctrl.Catch(e.ctx, adminChat))

	g := e.game()
	assert.True(t, g.IsPaused)
	assert.Equal(t, models.RoleTeam2, g.RunningTeam)
	assert.False(t, g.AllOrNothing)
	assert.Equal(t, models.B1G1FInactive, g.B1G1F)
	assert.Zero(t, g.NextDrawCount)

	// The drawn task is spent, the shown ones returned.
	assert.Len(t, e.cardsIn(team1Chat, models.KindTask, models.StateUsed), 1)
	assert.Empty(t, e.cardsIn(team1Chat, models.KindTask, models.StateShown))
	assert.Empty(t, e.cardsIn(team1Chat, models.KindTask, models.StateDrawn))

	assert.Equal(t, "A catch has been registered, the runners can stop sharing their location",
		e.msgr.lastText(locationChat))

	// Paused blocks the new runner until the admin restarts.
	require.NoError(t, e.ctrl.CompleteTask(e.ctx, team2Chat))
	assert.Equal(t, "The game is currently paused", e.msgr.lastText(team2Chat))

	require.NoError(t, e.ctrl.Catch(e.ctx, adminChat))
	assert.Equal(t, "Game is currently paused, cannot register catch", e.msgr.lastText(adminChat))
}

func TestCatchClearsOutstandingPrompt(t *testing.T) {
	e := newEnv(t, standardDeck())
	e.start()

	prompt := e.msgr.lastPrompt(team1Chat)
	require.NotNil(t, prompt)

	require.NoError(t, e.ctrl.Catch(e.ctx, adminChat))
	assert.Nil(t, e.chat(team1Chat).Pending)
	assert.Contains(t, e.msgr.removed, prompt.messageID)

	// The old button is dead even after the game resumes.
	require.NoError(t, e.ctrl.RestartGame(e.ctx, adminChat))
	require.NoError(t, e.ctrl.HandleCallback(e.ctx, team1Chat, prompt.buttons[0].Data))
	assert.Equal(t, "This draw is no longer valid", e.msgr.lastText(team1Chat))
	assert.Empty(t, e.cardsIn(team1Chat, models.KindTask, models.StateDrawn))
}

func TestCatchRequiresStartedGame(t *testing.T) {
	e := newEnv(t, standardDeck())
	e.setup()

	require.NoError(t, e.ctrl.Catch(e.ctx, adminChat))
	assert.Equal(t, "Game is not started, please wait for your admin to start the game",
		e.msgr.lastText(adminChat))
}

func TestRestartGameOpensNextCycle(t *testing.T) {
	e := newEnv(t, standardDeck())
	e.start()

	require.NoError(t, e.ctrl.RestartGame(e.ctx, adminChat))
	assert.Equal(t, "Game is not paused, cannot restart game", e.msgr.lastText(adminChat))

	require.NoError(t, e.ctrl.Catch(e.ctx, adminChat))
	require.NoError(t, e.ctrl.RestartGame(e.ctx, adminChat))

	g := e.game()
	assert.False(t, g.IsPaused)
	assert.Equal(t, models.RoleTeam2, g.RunningTeam)

	// Team 2 is now the runner and gets the task draw.
	assert.Contains(t, e.msgr.texts[team2Chat], runnerAnnouncement)
	prompt := e.msgr.lastPrompt(team2Chat)
	require.NotNil(t, prompt)
	assert.Equal(t, "Select your task:", prompt.text)
	assert.Len(t, prompt.buttons, 3)
}

func TestRunningTeamRotationWrapsAround(t *testing.T) {
	e := newEnv(t, standardDeck())
	e.start()

	for _, want := range []models.Role{models.RoleTeam2, models.RoleTeam3, models.RoleTeam1} {
		require.NoError(t, e.ctrl.Catch(e.ctx, adminChat))
		assert.Equal(t, want, e.game().RunningTeam)
		require.NoError(t, e.ctrl.RestartGame(e.ctx, adminChat))
	}
}

func TestDeleteTeamFreesRole(t *testing.T) {
	e := newEnv(t, standardDeck())
	e.setup()

	require.NoError(t, e.ctrl.DeleteTeam(e.ctx, adminChat, 2))
	assert.Equal(t, "Team 2 chat successfully deleted, team can now create a new chat assignment",
		e.msgr.lastText(adminChat))

	require.NoError(t, e.ctrl.CreateTeam(e.ctx, 21, testGameID, 2))
	assert.Equal(t, "This chat has been assigned to team 2", e.msgr.lastText(21))

	require.NoError(t, e.ctrl.DeleteTeam(e.ctx, adminChat, 3))
	require.NoError(t, e.ctrl.DeleteTeam(e.ctx, adminChat, 3))
	assert.Equal(t, "Team 3 chat does not exist, cannot delete", e.msgr.lastText(adminChat))
}

func TestDeleteChatRejectedWhileStarted(t *testing.T) {
	e := newEnv(t, standardDeck())
	e.start()

	// A started game needs all four chats; deletes would break the invariant.
	require.NoError(t, e.ctrl.DeleteTeam(e.ctx, adminChat, 2))
	assert.Equal(t, "Game is started, end the game before deleting chats", e.msgr.lastText(adminChat))
	assert.Equal(t, models.RoleTeam2, e.chat(team2Chat).Role)

	require.NoError(t, e.ctrl.DeleteLocationChat(e.ctx, adminChat))
	assert.Equal(t, "Game is started, end the game before deleting chats", e.msgr.lastText(adminChat))
	assert.Equal(t, models.RoleLocation, e.chat(locationChat).Role)

	require.NoError(t, e.ctrl.EndGame(e.ctx, adminChat))
	require.NoError(t, e.ctrl.DeleteTeam(e.ctx, adminChat, 2))
	assert.Equal(t, "Team 2 chat successfully deleted, team can now create a new chat assignment",
		e.msgr.lastText(adminChat))
}

func TestDeleteGameUnassignsEverything(t *testing.T) {
	e := newEnv(t, standardDeck())
	e.setup()

	require.NoError(t, e.ctrl.DeleteGame(e.ctx, adminChat))
	assert.Equal(t, "Game successfully deleted, all chats have been unassigned", e.msgr.lastText(adminChat))

	require.NoError(t, e.ctrl.CompleteTask(e.ctx, team1Chat))
	assert.Equal(t, "Chat is not assigned to any role", e.msgr.lastText(team1Chat))
}
