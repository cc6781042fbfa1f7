// internal/store/memory.go
package store

import (
	"context"
	"math/rand"
	"sync"

	"github.com/trainwreck-game/trainwreck/internal/catalog"
	"github.com/trainwreck-game/trainwreck/internal/models"
)

// Memory is an in-process Store. A single mutex serializes transactions and a
// full snapshot taken at transaction start backs the all-or-nothing rollback;
// the data per game is small enough that copying is cheap.
type Memory struct {
	mu      sync.Mutex
	catalog *catalog.Catalog
	rng     *rand.Rand

	games   map[int]*models.Game
	chats   map[int64]*models.Chat
	ledgers map[int64]map[int]models.CardState // chat id -> card id -> state
}

// NewMemory builds an empty in-memory store drawing cards with rng.
func NewMemory(cat *catalog.Catalog, rng *rand.Rand) *Memory {
	return &Memory{
		catalog: cat,
		rng:     rng,
		games:   make(map[int]*models.Game),
		chats:   make(map[int64]*models.Chat),
		ledgers: make(map[int64]map[int]models.CardState),
	}
}

type memSnapshot struct {
	games   map[int]*models.Game
	chats   map[int64]*models.Chat
	ledgers map[int64]map[int]models.CardState
}

func (m *Memory) snapshot() memSnapshot {
	s := memSnapshot{
		games:   make(map[int]*models.Game, len(m.games)),
		chats:   make(map[int64]*models.Chat, len(m.chats)),
		ledgers: make(map[int64]map[int]models.CardState, len(m.ledgers)),
	}
	for id, g := range m.games {
		cp := *g
		cp.Chats = make(map[models.Role]int64, len(g.Chats))
		for r, c := range g.Chats {
			cp.Chats[r] = c
		}
		s.games[id] = &cp
	}
	for id, c := range m.chats {
		cp := *c
		if c.Pending != nil {
			p := *c.Pending
			cp.Pending = &p
		}
		s.chats[id] = &cp
	}
	for id, l := range m.ledgers {
		cp := make(map[int]models.CardState, len(l))
		for card, st := range l {
			cp[card] = st
		}
		s.ledgers[id] = cp
	}
	return s
}

// Atomic runs fn holding the store lock, restoring the pre-transaction
// snapshot if fn returns an error.
func (m *Memory) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&memTx{m}); err != nil {
		m.games = snap.games
		m.chats = snap.chats
		m.ledgers = snap.ledgers
		return err
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() {}

// memTx applies operations directly against the Memory maps; rollback is
// handled by Atomic.
type memTx struct {
	m *Memory
}

func (t *memTx) CreateGame(gameID int, adminChatID int64) error {
	if _, ok := t.m.games[gameID]; ok {
		return ErrRoleOccupied
	}
	if _, ok := t.m.chats[adminChatID]; ok {
		return ErrChatAssigned
	}
	t.m.games[gameID] = &models.Game{
		ID:    gameID,
		Chats: map[models.Role]int64{models.RoleAdmin: adminChatID},
		B1G1F: models.B1G1FInactive,
	}
	t.m.chats[adminChatID] = &models.Chat{ID: adminChatID, GameID: gameID, Role: models.RoleAdmin}
	return nil
}

func (t *memTx) GameIDExists(gameID int) (bool, error) {
	_, ok := t.m.games[gameID]
	return ok, nil
}

func (t *memTx) GetGame(gameID int) (*models.Game, error) {
	g, ok := t.m.games[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	return g, nil
}

func (t *memTx) DeleteGame(gameID int) error {
	g, ok := t.m.games[gameID]
	if !ok {
		return ErrGameNotFound
	}
	for _, chatID := range g.Chats {
		delete(t.m.chats, chatID)
		delete(t.m.ledgers, chatID)
	}
	delete(t.m.games, gameID)
	return nil
}

func (t *memTx) AssignChat(gameID int, chatID int64, role models.Role, ledger []models.Card) error {
	g, ok := t.m.games[gameID]
	if !ok {
		return ErrGameNotFound
	}
	if _, ok := t.m.chats[chatID]; ok {
		return ErrChatAssigned
	}
	if _, ok := g.Chats[role]; ok {
		return ErrRoleOccupied
	}
	g.Chats[role] = chatID
	t.m.chats[chatID] = &models.Chat{ID: chatID, GameID: gameID, Role: role}
	if role.IsTeam() {
		rows := make(map[int]models.CardState, len(ledger))
		for _, card := range ledger {
			rows[card.ID] = models.StateUndrawn
		}
		t.m.ledgers[chatID] = rows
	}
	return nil
}

func (t *memTx) DeleteChat(gameID int, role models.Role) error {
	g, ok := t.m.games[gameID]
	if !ok {
		return ErrGameNotFound
	}
	chatID, ok := g.Chats[role]
	if !ok {
		return ErrChatNotFound
	}
	delete(g.Chats, role)
	delete(t.m.chats, chatID)
	delete(t.m.ledgers, chatID)
	return nil
}

func (t *memTx) GetChat(chatID int64) (*models.Chat, error) {
	c, ok := t.m.chats[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	return c, nil
}

func (t *memTx) SetStarted(gameID int, started bool) error {
	g, err := t.GetGame(gameID)
	if err != nil {
		return err
	}
	if started {
		if len(g.MissingChats()) > 0 || g.RunningTeam == "" {
			return ErrStartInvariant
		}
	}
	g.IsStarted = started
	return nil
}

func (t *memTx) SetPaused(gameID int, paused bool) error {
	g, err := t.GetGame(gameID)
	if err != nil {
		return err
	}
	g.IsPaused = paused
	return nil
}

func (t *memTx) SetRunningTeam(gameID int, role models.Role) error {
	g, err := t.GetGame(gameID)
	if err != nil {
		return err
	}
	if !role.IsTeam() {
		return ErrRunningTeamInvariant
	}
	if _, ok := g.Chats[role]; !ok {
		return ErrRunningTeamInvariant
	}
	g.RunningTeam = role
	return nil
}

func (t *memTx) SetAllOrNothing(gameID int, active bool) error {
	g, err := t.GetGame(gameID)
	if err != nil {
		return err
	}
	g.AllOrNothing = active
	return nil
}

func (t *memTx) SetB1G1F(gameID int, state models.B1G1FState) error {
	g, err := t.GetGame(gameID)
	if err != nil {
		return err
	}
	g.B1G1F = state
	return nil
}

func (t *memTx) SetNextDrawCount(gameID int, n int) error {
	g, err := t.GetGame(gameID)
	if err != nil {
		return err
	}
	g.NextDrawCount = n
	return nil
}

func (t *memTx) AddScore(chatID int64, points int) error {
	c, err := t.GetChat(chatID)
	if err != nil {
		return err
	}
	c.Score += points
	return nil
}

func (t *memTx) SetPending(chatID int64, p *models.PendingPrompt) error {
	c, err := t.GetChat(chatID)
	if err != nil {
		return err
	}
	c.Pending = p
	return nil
}

func (t *memTx) matches(cardID int, kind models.CardKind, filter RevealFilter) bool {
	card := t.m.catalog.Get(cardID)
	if card == nil || card.Kind != kind {
		return false
	}
	if filter.ExtremesOnly && !card.IsExtreme() {
		return false
	}
	return true
}

func (t *memTx) Reveal(chatID int64, kind models.CardKind, count int, filter RevealFilter) ([]models.Card, error) {
	ledger, ok := t.m.ledgers[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}

	var pool []int
	for cardID, state := range ledger {
		if state == models.StateShown {
			if card := t.m.catalog.Get(cardID); card != nil && card.Kind == kind {
				return nil, ErrAlreadyRevealed
			}
		}
		if state == models.StateUndrawn && t.matches(cardID, kind, filter) {
			pool = append(pool, cardID)
		}
	}
	if len(pool) < count {
		return nil, ErrInsufficientCards
	}

	t.m.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	shown := make([]models.Card, 0, count)
	for _, cardID := range pool[:count] {
		ledger[cardID] = models.StateShown
		shown = append(shown, *t.m.catalog.Get(cardID))
	}
	return shown, nil
}

func (t *memTx) Select(chatID int64, cardID int, clearOtherShown bool) (*models.Card, error) {
	ledger, ok := t.m.ledgers[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	if ledger[cardID] != models.StateShown {
		return nil, ErrCardNotShown
	}
	selected := t.m.catalog.Get(cardID)

	ledger[cardID] = models.StateDrawn
	if clearOtherShown {
		for otherID, state := range ledger {
			if otherID == cardID || state != models.StateShown {
				continue
			}
			if other := t.m.catalog.Get(otherID); other != nil && other.Kind == selected.Kind {
				ledger[otherID] = models.StateUndrawn
			}
		}
	}
	cp := *selected
	return &cp, nil
}

func (t *memTx) ResolveDrawn(chatID int64, cardID int, newState models.CardState) error {
	ledger, ok := t.m.ledgers[chatID]
	if !ok {
		return ErrChatNotFound
	}
	if state := ledger[cardID]; state != models.StateDrawn && state != models.StatePending {
		return ErrCardNotDrawn
	}
	if newState != models.StateUsed && newState != models.StatePending {
		return ErrCardNotDrawn
	}
	ledger[cardID] = newState
	return nil
}

func (t *memTx) CardsInState(chatID int64, kind models.CardKind, state models.CardState) ([]models.Card, error) {
	ledger, ok := t.m.ledgers[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	var out []models.Card
	for _, card := range t.m.catalog.NonRule() {
		if card.Kind == kind && ledger[card.ID] == state {
			out = append(out, card)
		}
	}
	return out, nil
}

func (t *memTx) CountUndrawn(chatID int64, kind models.CardKind, filter RevealFilter) (int, error) {
	ledger, ok := t.m.ledgers[chatID]
	if !ok {
		return 0, ErrChatNotFound
	}
	n := 0
	for cardID, state := range ledger {
		if state == models.StateUndrawn && t.matches(cardID, kind, filter) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) ResetOnCatch(chatID int64) error {
	ledger, ok := t.m.ledgers[chatID]
	if !ok {
		return ErrChatNotFound
	}
	for cardID, state := range ledger {
		card := t.m.catalog.Get(cardID)
		if card == nil {
			continue
		}
		switch card.Kind {
		case models.KindTask:
			switch state {
			case models.StateShown:
				ledger[cardID] = models.StateUndrawn
			case models.StateDrawn, models.StatePending:
				ledger[cardID] = models.StateUsed
			}
		case models.KindPowerup:
			ledger[cardID] = models.StateUndrawn
		}
	}
	return nil
}
