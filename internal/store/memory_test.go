// internal/store/memory_test.go
package store

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainwreck-game/trainwreck/internal/catalog"
	"github.com/trainwreck-game/trainwreck/internal/models"
)

func testCatalog() *catalog.Catalog {
	var cards []models.Card
	for i := 0; i < 8; i++ {
		cards = append(cards, models.Card{
			Kind: models.KindTask,
			Task: &models.TaskInfo{Difficulty: models.DifficultyNormal, Special: models.TaskSpecialNone},
		})
	}
	for i := 0; i < 4; i++ {
		cards = append(cards, models.Card{
			Kind: models.KindTask,
			Task: &models.TaskInfo{Difficulty: models.DifficultyExtreme, Special: models.TaskSpecialNone},
		})
	}
	for i := 0; i < 4; i++ {
		cards = append(cards, models.Card{
			Kind:    models.KindPowerup,
			Powerup: &models.PowerupInfo{Special: models.PowerupSpecialNone},
		})
	}
	cards = append(cards, models.Card{Kind: models.KindRule})
	return catalog.New(cards)
}

const (
	adminChat int64 = 1
	teamChat  int64 = 11
	gameID          = 123456
)

func setupTeam(t *testing.T) (*Memory, *catalog.Catalog) {
	t.Helper()
	cat := testCatalog()
	m := NewMemory(cat, rand.New(rand.NewSource(7)))
	err := m.Atomic(context.Background(), func(tx Tx) error {
		if err := tx.CreateGame(gameID, adminChat); err != nil {
			return err
		}
		return tx.AssignChat(gameID, teamChat, models.RoleTeam1, cat.NonRule())
	})
	require.NoError(t, err)
	return m, cat
}

// stateCounts tallies the team's ledger by state across both card kinds.
func stateCounts(t *testing.T, m *Memory, cat *catalog.Catalog) map[models.CardState]int {
	t.Helper()
	counts := make(map[models.CardState]int)
	err := m.Atomic(context.Background(), func(tx Tx) error {
		for _, state := range []models.CardState{
			models.StateUndrawn, models.StateShown, models.StateDrawn, models.StatePending, models.StateUsed,
		} {
			for _, kind := range []models.CardKind{models.KindTask, models.KindPowerup} {
				cards, err := tx.CardsInState(teamChat, kind, state)
				if err != nil {
					return err
				}
				counts[state] += len(cards)
			}
		}
		return nil
	})
	require.NoError(t, err)
	return counts
}

func TestLedgerPartitionsCatalog(t *testing.T) {
	m, cat := setupTeam(t)
	total := len(cat.NonRule())

	counts := stateCounts(t, m, cat)
	assert.Equal(t, total, counts[models.StateUndrawn])

	err := m.Atomic(context.Background(), func(tx Tx) error {
		shown, err := tx.Reveal(teamChat, models.KindTask, 3, RevealFilter{})
		if err != nil {
			return err
		}
		if _, err := tx.Select(teamChat, shown[0].ID, true); err != nil {
			return err
		}
		return nil
	})
	require.NoError(t, err)

	counts = stateCounts(t, m, cat)
	sum := 0
	for _, n := range counts {
		sum += n
	}
	assert.Equal(t, total, sum, "every non-rule card stays in exactly one state")
	assert.Equal(t, 1, counts[models.StateDrawn])
	assert.Equal(t, 0, counts[models.StateShown], "unchosen cards return to the pool")
}

func TestRevealIsExactOrFails(t *testing.T) {
	m, _ := setupTeam(t)
	ctx := context.Background()

	err := m.Atomic(ctx, func(tx Tx) error {
		shown, err := tx.Reveal(teamChat, models.KindTask, 3, RevealFilter{})
		require.NoError(t, err)
		require.Len(t, shown, 3)

		// A second reveal without an intervening select must not hand out a
		// different overlapping set.
		_, err = tx.Reveal(teamChat, models.KindTask, 3, RevealFilter{})
		assert.ErrorIs(t, err, ErrAlreadyRevealed)
		return nil
	})
	require.NoError(t, err)
}

func TestRevealInsufficientRollsBack(t *testing.T) {
	m, cat := setupTeam(t)
	ctx := context.Background()

	err := m.Atomic(ctx, func(tx Tx) error {
		_, err := tx.Reveal(teamChat, models.KindPowerup, 5, RevealFilter{})
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientCards)

	counts := stateCounts(t, m, cat)
	assert.Equal(t, 0, counts[models.StateShown], "failed reveal leaves no cards shown")
}

func TestRevealExtremesOnly(t *testing.T) {
	m, _ := setupTeam(t)

	err := m.Atomic(context.Background(), func(tx Tx) error {
		shown, err := tx.Reveal(teamChat, models.KindTask, 3, RevealFilter{ExtremesOnly: true})
		if err != nil {
			return err
		}
		for _, card := range shown {
			assert.True(t, card.IsExtreme())
		}
		return nil
	})
	require.NoError(t, err)
}

func TestSelectRequiresShown(t *testing.T) {
	m, cat := setupTeam(t)

	err := m.Atomic(context.Background(), func(tx Tx) error {
		_, err := tx.Select(teamChat, cat.NonRule()[0].ID, true)
		return err
	})
	assert.ErrorIs(t, err, ErrCardNotShown)
}

func TestSelectWithoutClearKeepsSiblings(t *testing.T) {
	m, _ := setupTeam(t)
	ctx := context.Background()

	err := m.Atomic(ctx, func(tx Tx) error {
		shown, err := tx.Reveal(teamChat, models.KindTask, 3, RevealFilter{})
		require.NoError(t, err)

		if _, err := tx.Select(teamChat, shown[0].ID, false); err != nil {
			return err
		}
		remaining, err := tx.CardsInState(teamChat, models.KindTask, models.StateShown)
		require.NoError(t, err)
		assert.Len(t, remaining, 2)

		if _, err := tx.Select(teamChat, shown[1].ID, true); err != nil {
			return err
		}
		remaining, err = tx.CardsInState(teamChat, models.KindTask, models.StateShown)
		require.NoError(t, err)
		assert.Empty(t, remaining)

		drawn, err := tx.CardsInState(teamChat, models.KindTask, models.StateDrawn)
		require.NoError(t, err)
		assert.Len(t, drawn, 2)
		return nil
	})
	require.NoError(t, err)
}

func TestResolveDrawnTransitions(t *testing.T) {
	m, _ := setupTeam(t)
	ctx := context.Background()

	err := m.Atomic(ctx, func(tx Tx) error {
		shown, err := tx.Reveal(teamChat, models.KindTask, 1, RevealFilter{})
		require.NoError(t, err)
		cardID := shown[0].ID

		assert.ErrorIs(t, tx.ResolveDrawn(teamChat, cardID, models.StateUsed), ErrCardNotDrawn,
			"shown cards are not resolvable")

		if _, err := tx.Select(teamChat, cardID, true); err != nil {
			return err
		}
		require.NoError(t, tx.ResolveDrawn(teamChat, cardID, models.StatePending))
		require.NoError(t, tx.ResolveDrawn(teamChat, cardID, models.StateUsed))
		assert.ErrorIs(t, tx.ResolveDrawn(teamChat, cardID, models.StateUsed), ErrCardNotDrawn)
		return nil
	})
	require.NoError(t, err)
}

func TestResetOnCatch(t *testing.T) {
	m, _ := setupTeam(t)
	ctx := context.Background()

	err := m.Atomic(ctx, func(tx Tx) error {
		shown, err := tx.Reveal(teamChat, models.KindTask, 3, RevealFilter{})
		require.NoError(t, err)
		if _, err := tx.Select(teamChat, shown[0].ID, false); err != nil {
			return err
		}
		powerups, err := tx.Reveal(teamChat, models.KindPowerup, 2, RevealFilter{})
		require.NoError(t, err)
		if _, err := tx.Select(teamChat, powerups[0].ID, true); err != nil {
			return err
		}
		return tx.ResetOnCatch(teamChat)
	})
	require.NoError(t, err)

	err = m.Atomic(ctx, func(tx Tx) error {
		usedTasks, err := tx.CardsInState(teamChat, models.KindTask, models.StateUsed)
		require.NoError(t, err)
		assert.Len(t, usedTasks, 1, "drawn tasks are spent on a catch, not returned")

		shownTasks, err := tx.CardsInState(teamChat, models.KindTask, models.StateShown)
		require.NoError(t, err)
		assert.Empty(t, shownTasks)

		undrawnPowerups, err := tx.CountUndrawn(teamChat, models.KindPowerup, RevealFilter{})
		require.NoError(t, err)
		assert.Equal(t, 4, undrawnPowerups, "the powerup ledger fully resets")
		return nil
	})
	require.NoError(t, err)
}

func TestAtomicRollsBackOnError(t *testing.T) {
	m, cat := setupTeam(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.Atomic(ctx, func(tx Tx) error {
		if _, err := tx.Reveal(teamChat, models.KindTask, 3, RevealFilter{}); err != nil {
			return err
		}
		if err := tx.AddScore(teamChat, 2); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	counts := stateCounts(t, m, cat)
	assert.Equal(t, 0, counts[models.StateShown])
	err = m.Atomic(ctx, func(tx Tx) error {
		chat, err := tx.GetChat(teamChat)
		require.NoError(t, err)
		assert.Equal(t, 0, chat.Score)
		return nil
	})
	require.NoError(t, err)
}

func TestStartedGameInvariant(t *testing.T) {
	m, cat := setupTeam(t)
	ctx := context.Background()

	err := m.Atomic(ctx, func(tx Tx) error {
		return tx.SetStarted(gameID, true)
	})
	assert.ErrorIs(t, err, ErrStartInvariant)

	err = m.Atomic(ctx, func(tx Tx) error {
		if err := tx.AssignChat(gameID, 12, models.RoleTeam2, cat.NonRule()); err != nil {
			return err
		}
		if err := tx.AssignChat(gameID, 13, models.RoleTeam3, cat.NonRule()); err != nil {
			return err
		}
		if err := tx.AssignChat(gameID, 99, models.RoleLocation, nil); err != nil {
			return err
		}
		if err := tx.SetRunningTeam(gameID, models.RoleTeam1); err != nil {
			return err
		}
		return tx.SetStarted(gameID, true)
	})
	require.NoError(t, err)
}

func TestRunningTeamMustBeAssignedTeam(t *testing.T) {
	m, _ := setupTeam(t)
	ctx := context.Background()

	err := m.Atomic(ctx, func(tx Tx) error {
		return tx.SetRunningTeam(gameID, models.RoleTeam2)
	})
	assert.ErrorIs(t, err, ErrRunningTeamInvariant, "team 2 has no chat yet")

	err = m.Atomic(ctx, func(tx Tx) error {
		return tx.SetRunningTeam(gameID, models.RoleLocation)
	})
	assert.ErrorIs(t, err, ErrRunningTeamInvariant)
}

func TestDeleteGameCascades(t *testing.T) {
	m, _ := setupTeam(t)
	ctx := context.Background()

	err := m.Atomic(ctx, func(tx Tx) error {
		return tx.DeleteGame(gameID)
	})
	require.NoError(t, err)

	err = m.Atomic(ctx, func(tx Tx) error {
		_, err := tx.GetChat(teamChat)
		assert.ErrorIs(t, err, ErrChatNotFound)
		_, err = tx.GetChat(adminChat)
		assert.ErrorIs(t, err, ErrChatNotFound)
		_, err = tx.GetGame(gameID)
		assert.ErrorIs(t, err, ErrGameNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestAssignChatConflicts(t *testing.T) {
	m, cat := setupTeam(t)
	ctx := context.Background()

	err := m.Atomic(ctx, func(tx Tx) error {
		return tx.AssignChat(gameID, teamChat, models.RoleTeam2, cat.NonRule())
	})
	assert.ErrorIs(t, err, ErrChatAssigned)

	err = m.Atomic(ctx, func(tx Tx) error {
		return tx.AssignChat(gameID, 12, models.RoleTeam1, cat.NonRule())
	})
	assert.ErrorIs(t, err, ErrRoleOccupied)
}
