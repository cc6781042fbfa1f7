// internal/game/game_test.go
package game

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/trainwreck-game/trainwreck/internal/catalog"
	"github.com/trainwreck-game/trainwreck/internal/models"
	"github.com/trainwreck-game/trainwreck/internal/store"
)

const (
	adminChat    int64 = 1
	team1Chat    int64 = 11
	team2Chat    int64 = 12
	team3Chat    int64 = 13
	locationChat int64 = 99

	testGameID = 111111
)

// mockMessenger captures every outbound send per chat.
type mockMessenger struct {
	mu      sync.Mutex
	nextID  int64
	texts   map[int64][]string
	images  map[int64][]string
	prompts map[int64][]capturedPrompt
	removed []int64
}

type capturedPrompt struct {
	messageID int64
	text      string
	buttons   []Button
}

func newMockMessenger() *mockMessenger {
	return &mockMessenger{
		texts:   make(map[int64][]string),
		images:  make(map[int64][]string),
		prompts: make(map[int64][]capturedPrompt),
	}
}

func (m *mockMessenger) SendText(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts[chatID] = append(m.texts[chatID], text)
	return nil
}

func (m *mockMessenger) SendImage(_ context.Context, chatID int64, image string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[chatID] = append(m.images[chatID], image)
	return nil
}

func (m *mockMessenger) Prompt(_ context.Context, chatID int64, text string, buttons []Button) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.prompts[chatID] = append(m.prompts[chatID], capturedPrompt{
		messageID: m.nextID,
		text:      text,
		buttons:   append([]Button(nil), buttons...),
	})
	return m.nextID, nil
}

func (m *mockMessenger) RemoveKeyboard(_ context.Context, _ int64, messageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, messageID)
	return nil
}

func (m *mockMessenger) lastText(chatID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	texts := m.texts[chatID]
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (m *mockMessenger) imageCount(chatID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.images[chatID])
}

func (m *mockMessenger) lastPrompt(chatID int64) *capturedPrompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	prompts := m.prompts[chatID]
	if len(prompts) == 0 {
		return nil
	}
	p := prompts[len(prompts)-1]
	return &p
}

// --- card builders ---

func taskCards(n int, diff models.TaskDifficulty, special models.TaskSpecial) []models.Card {
	cards := make([]models.Card, n)
	for i := range cards {
		cards[i] = models.Card{
			Kind: models.KindTask,
			Task: &models.TaskInfo{Difficulty: diff, Special: special},
		}
	}
	return cards
}

func powerupCards(n int, special models.PowerupSpecial, toChasers bool) []models.Card {
	cards := make([]models.Card, n)
	for i := range cards {
		cards[i] = models.Card{
			Kind:    models.KindPowerup,
			Powerup: &models.PowerupInfo{Special: special, SendToChasers: toChasers},
		}
	}
	return cards
}

func deck(groups ...[]models.Card) []models.Card {
	var cards []models.Card
	for _, g := range groups {
		cards = append(cards, g...)
	}
	return append(cards, models.Card{Kind: models.KindRule})
}

// env wires a controller against the in-memory store and the mock messenger.
type env struct {
	t    *testing.T
	ctx  context.Context
	st   *store.Memory
	cat  *catalog.Catalog
	msgr *mockMessenger
	ctrl *Controller
}

func newEnv(t *testing.T, cards []models.Card) *env {
	t.Helper()
	cat := catalog.New(cards)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	msgr := newMockMessenger()
	st := store.NewMemory(cat, rand.New(rand.NewSource(42)))
	ctrl := NewController(st, cat, msgr, nil, logger)
	ctrl.newGameID = func() int { return testGameID }
	ctrl.rollDice = func() int { return 2 }

	return &env{t: t, ctx: context.Background(), st: st, cat: cat, msgr: msgr, ctrl: ctrl}
}

// setup registers the admin, all three teams and the location chat.
func (e *env) setup() {
	e.t.Helper()
	require.NoError(e.t, e.ctrl.CreateGame(e.ctx, adminChat))
	require.NoError(e.t, e.ctrl.CreateTeam(e.ctx, team1Chat, testGameID, 1))
	require.NoError(e.t, e.ctrl.CreateTeam(e.ctx, team2Chat, testGameID, 2))
	require.NoError(e.t, e.ctrl.CreateTeam(e.ctx, team3Chat, testGameID, 3))
	require.NoError(e.t, e.ctrl.CreateLocationChat(e.ctx, locationChat, testGameID))
}

func (e *env) start() {
	e.t.Helper()
	e.setup()
	require.NoError(e.t, e.ctrl.StartGame(e.ctx, adminChat))
}

// press answers the chat's most recent prompt with button idx.
func (e *env) press(chatID int64, idx int) {
	e.t.Helper()
	prompt := e.msgr.lastPrompt(chatID)
	require.NotNil(e.t, prompt, "no prompt to answer")
	require.Greater(e.t, len(prompt.buttons), idx)
	require.NoError(e.t, e.ctrl.HandleCallback(e.ctx, chatID, prompt.buttons[idx].Data))
}

func (e *env) game() models.Game {
	e.t.Helper()
	var out models.Game
	err := e.st.Atomic(e.ctx, func(tx store.Tx) error {
		g, err := tx.GetGame(testGameID)
		if err != nil {
			return err
		}
		out = *g
		return nil
	})
	require.NoError(e.t, err)
	return out
}

func (e *env) chat(chatID int64) models.Chat {
	e.t.Helper()
	var out models.Chat
	err := e.st.Atomic(e.ctx, func(tx store.Tx) error {
		c, err := tx.GetChat(chatID)
		if err != nil {
			return err
		}
		out = *c
		return nil
	})
	require.NoError(e.t, err)
	return out
}

func (e *env) cardsIn(chatID int64, kind models.CardKind, state models.CardState) []models.Card {
	e.t.Helper()
	var out []models.Card
	err := e.st.Atomic(e.ctx, func(tx store.Tx) error {
		cards, err := tx.CardsInState(chatID, kind, state)
		if err != nil {
			return err
		}
		out = cards
		return nil
	})
	require.NoError(e.t, err)
	return out
}
