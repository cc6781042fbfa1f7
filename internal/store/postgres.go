// internal/store/postgres.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trainwreck-game/trainwreck/internal/catalog"
	"github.com/trainwreck-game/trainwreck/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
	id                INT PRIMARY KEY,
	is_started        BOOLEAN NOT NULL DEFAULT FALSE,
	is_paused         BOOLEAN NOT NULL DEFAULT FALSE,
	all_or_nothing    BOOLEAN NOT NULL DEFAULT FALSE,
	b1g1f             TEXT NOT NULL DEFAULT 'inactive',
	next_draw_count   INT NOT NULL DEFAULT 0,
	running_team_role TEXT,
	CONSTRAINT started_has_running_team
		CHECK (NOT is_started OR running_team_role IS NOT NULL),
	CONSTRAINT running_team_is_team
		CHECK (running_team_role IS NULL OR running_team_role IN ('team_1', 'team_2', 'team_3'))
);

CREATE TABLE IF NOT EXISTS chats (
	id                 BIGINT PRIMARY KEY,
	game_id            INT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	role               TEXT NOT NULL,
	score              INT,
	pending_token      UUID,
	pending_action     TEXT,
	pending_message_id BIGINT,
	CONSTRAINT unique_game_role UNIQUE (game_id, role),
	CONSTRAINT score_only_for_team_chats
		CHECK (score IS NULL OR role IN ('team_1', 'team_2', 'team_3'))
);

CREATE TABLE IF NOT EXISTS team_cards (
	chat_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	card_id INT NOT NULL,
	state   TEXT NOT NULL DEFAULT 'undrawn',
	PRIMARY KEY (chat_id, card_id)
);
`

// Postgres is the pgx-backed Store. Card definitions stay in the in-process
// catalog; ledger rows reference them by id.
type Postgres struct {
	pool    *pgxpool.Pool
	catalog *catalog.Catalog
}

// Connect opens a pool against databaseURL, pings it and ensures the schema.
func Connect(ctx context.Context, databaseURL string, cat *catalog.Catalog) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return &Postgres{pool: pool, catalog: cat}, nil
}

// Atomic runs fn inside one serializable transaction.
func (p *Postgres) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	return pgx.BeginTxFunc(ctx, p.pool, opts, func(tx pgx.Tx) error {
		return fn(&pgTx{ctx: ctx, tx: tx, catalog: p.catalog})
	})
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

type pgTx struct {
	ctx     context.Context
	tx      pgx.Tx
	catalog *catalog.Catalog
}

func (t *pgTx) CreateGame(gameID int, adminChatID int64) error {
	var exists bool
	err := t.tx.QueryRow(t.ctx, `SELECT EXISTS (SELECT 1 FROM chats WHERE id = $1)`, adminChatID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrChatAssigned
	}
	if _, err := t.tx.Exec(t.ctx, `INSERT INTO games (id) VALUES ($1)`, gameID); err != nil {
		return err
	}
	_, err = t.tx.Exec(t.ctx,
		`INSERT INTO chats (id, game_id, role) VALUES ($1, $2, $3)`,
		adminChatID, gameID, models.RoleAdmin)
	return err
}

func (t *pgTx) GameIDExists(gameID int) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(t.ctx, `SELECT EXISTS (SELECT 1 FROM games WHERE id = $1)`, gameID).Scan(&exists)
	return exists, err
}

func (t *pgTx) GetGame(gameID int) (*models.Game, error) {
	g := &models.Game{ID: gameID, Chats: make(map[models.Role]int64)}
	var runningRole *string
	err := t.tx.QueryRow(t.ctx, `
		SELECT is_started, is_paused, all_or_nothing, b1g1f, next_draw_count, running_team_role
		FROM games WHERE id = $1
	`, gameID).Scan(&g.IsStarted, &g.IsPaused, &g.AllOrNothing, &g.B1G1F, &g.NextDrawCount, &runningRole)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	if runningRole != nil {
		g.RunningTeam = models.Role(*runningRole)
	}

	rows, err := t.tx.Query(t.ctx, `SELECT id, role FROM chats WHERE game_id = $1`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var chatID int64
		var role models.Role
		if err := rows.Scan(&chatID, &role); err != nil {
			return nil, err
		}
		g.Chats[role] = chatID
	}
	return g, rows.Err()
}

func (t *pgTx) DeleteGame(gameID int) error {
	tag, err := t.tx.Exec(t.ctx, `DELETE FROM games WHERE id = $1`, gameID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGameNotFound
	}
	return nil
}

func (t *pgTx) AssignChat(gameID int, chatID int64, role models.Role, ledger []models.Card) error {
	exists, err := t.GameIDExists(gameID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrGameNotFound
	}
	var chatTaken, roleTaken bool
	err = t.tx.QueryRow(t.ctx, `
		SELECT
			EXISTS (SELECT 1 FROM chats WHERE id = $1),
			EXISTS (SELECT 1 FROM chats WHERE game_id = $2 AND role = $3)
	`, chatID, gameID, role).Scan(&chatTaken, &roleTaken)
	if err != nil {
		return err
	}
	if chatTaken {
		return ErrChatAssigned
	}
	if roleTaken {
		return ErrRoleOccupied
	}

	var score *int
	if role.IsTeam() {
		zero := 0
		score = &zero
	}
	_, err = t.tx.Exec(t.ctx,
		`INSERT INTO chats (id, game_id, role, score) VALUES ($1, $2, $3, $4)`,
		chatID, gameID, role, score)
	if err != nil {
		return err
	}
	if role.IsTeam() {
		for _, card := range ledger {
			if _, err := t.tx.Exec(t.ctx,
				`INSERT INTO team_cards (chat_id, card_id) VALUES ($1, $2)`,
				chatID, card.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *pgTx) DeleteChat(gameID int, role models.Role) error {
	tag, err := t.tx.Exec(t.ctx,
		`DELETE FROM chats WHERE game_id = $1 AND role = $2`, gameID, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrChatNotFound
	}
	return nil
}

func (t *pgTx) GetChat(chatID int64) (*models.Chat, error) {
	c := &models.Chat{ID: chatID}
	var score *int
	var token *uuid.UUID
	var action *string
	var messageID *int64
	err := t.tx.QueryRow(t.ctx, `
		SELECT game_id, role, score, pending_token, pending_action, pending_message_id
		FROM chats WHERE id = $1
	`, chatID).Scan(&c.GameID, &c.Role, &score, &token, &action, &messageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	if score != nil {
		c.Score = *score
	}
	if token != nil && action != nil && messageID != nil {
		c.Pending = &models.PendingPrompt{Token: *token, Action: *action, MessageID: *messageID}
	}
	return c, nil
}

func (t *pgTx) SetStarted(gameID int, started bool) error {
	if started {
		g, err := t.GetGame(gameID)
		if err != nil {
			return err
		}
		if len(g.MissingChats()) > 0 || g.RunningTeam == "" {
			return ErrStartInvariant
		}
	}
	tag, err := t.tx.Exec(t.ctx, `UPDATE games SET is_started = $2 WHERE id = $1`, gameID, started)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGameNotFound
	}
	return nil
}

func (t *pgTx) SetPaused(gameID int, paused bool) error {
	tag, err := t.tx.Exec(t.ctx, `UPDATE games SET is_paused = $2 WHERE id = $1`, gameID, paused)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGameNotFound
	}
	return nil
}

func (t *pgTx) SetRunningTeam(gameID int, role models.Role) error {
	if !role.IsTeam() {
		return ErrRunningTeamInvariant
	}
	var assigned bool
	err := t.tx.QueryRow(t.ctx,
		`SELECT EXISTS (SELECT 1 FROM chats WHERE game_id = $1 AND role = $2)`,
		gameID, role).Scan(&assigned)
	if err != nil {
		return err
	}
	if !assigned {
		return ErrRunningTeamInvariant
	}
	tag, err := t.tx.Exec(t.ctx, `UPDATE games SET running_team_role = $2 WHERE id = $1`, gameID, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGameNotFound
	}
	return nil
}

func (t *pgTx) SetAllOrNothing(gameID int, active bool) error {
	return t.updateGameField(gameID, `all_or_nothing`, active)
}

func (t *pgTx) SetB1G1F(gameID int, state models.B1G1FState) error {
	return t.updateGameField(gameID, `b1g1f`, string(state))
}

func (t *pgTx) SetNextDrawCount(gameID int, n int) error {
	return t.updateGameField(gameID, `next_draw_count`, n)
}

func (t *pgTx) updateGameField(gameID int, column string, value any) error {
	tag, err := t.tx.Exec(t.ctx,
		fmt.Sprintf(`UPDATE games SET %s = $2 WHERE id = $1`, column), gameID, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGameNotFound
	}
	return nil
}

func (t *pgTx) AddScore(chatID int64, points int) error {
	tag, err := t.tx.Exec(t.ctx,
		`UPDATE chats SET score = score + $2 WHERE id = $1`, chatID, points)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrChatNotFound
	}
	return nil
}

func (t *pgTx) SetPending(chatID int64, p *models.PendingPrompt) error {
	var token *uuid.UUID
	var action *string
	var messageID *int64
	if p != nil {
		token, action, messageID = &p.Token, &p.Action, &p.MessageID
	}
	tag, err := t.tx.Exec(t.ctx, `
		UPDATE chats SET pending_token = $2, pending_action = $3, pending_message_id = $4
		WHERE id = $1
	`, chatID, token, action, messageID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrChatNotFound
	}
	return nil
}

// kindIDs resolves the catalog ids matching kind and filter; the ledger table
// itself only stores card ids.
func (t *pgTx) kindIDs(kind models.CardKind, filter RevealFilter) []int {
	var ids []int
	for _, card := range t.catalog.NonRule() {
		if card.Kind != kind {
			continue
		}
		if filter.ExtremesOnly && !card.IsExtreme() {
			continue
		}
		ids = append(ids, card.ID)
	}
	return ids
}

func (t *pgTx) Reveal(chatID int64, kind models.CardKind, count int, filter RevealFilter) ([]models.Card, error) {
	var exists bool
	if err := t.tx.QueryRow(t.ctx,
		`SELECT EXISTS (SELECT 1 FROM team_cards WHERE chat_id = $1)`, chatID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrChatNotFound
	}

	var shown bool
	err := t.tx.QueryRow(t.ctx, `
		SELECT EXISTS (
			SELECT 1 FROM team_cards
			WHERE chat_id = $1 AND state = 'shown' AND card_id = ANY($2)
		)
	`, chatID, t.kindIDs(kind, RevealFilter{})).Scan(&shown)
	if err != nil {
		return nil, err
	}
	if shown {
		return nil, ErrAlreadyRevealed
	}

	rows, err := t.tx.Query(t.ctx, `
		SELECT card_id FROM team_cards
		WHERE chat_id = $1 AND state = 'undrawn' AND card_id = ANY($2)
		ORDER BY random() LIMIT $3
		FOR UPDATE
	`, chatID, t.kindIDs(kind, filter), count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var picked []int
	for rows.Next() {
		var cardID int
		if err := rows.Scan(&cardID); err != nil {
			return nil, err
		}
		picked = append(picked, cardID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(picked) < count {
		return nil, ErrInsufficientCards
	}

	out := make([]models.Card, 0, count)
	for _, cardID := range picked {
		if _, err := t.tx.Exec(t.ctx,
			`UPDATE team_cards SET state = 'shown' WHERE chat_id = $1 AND card_id = $2`,
			chatID, cardID); err != nil {
			return nil, err
		}
		out = append(out, *t.catalog.Get(cardID))
	}
	return out, nil
}

func (t *pgTx) Select(chatID int64, cardID int, clearOtherShown bool) (*models.Card, error) {
	card := t.catalog.Get(cardID)
	if card == nil {
		return nil, ErrCardNotShown
	}
	tag, err := t.tx.Exec(t.ctx, `
		UPDATE team_cards SET state = 'drawn'
		WHERE chat_id = $1 AND card_id = $2 AND state = 'shown'
	`, chatID, cardID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrCardNotShown
	}
	if clearOtherShown {
		if _, err := t.tx.Exec(t.ctx, `
			UPDATE team_cards SET state = 'undrawn'
			WHERE chat_id = $1 AND state = 'shown' AND card_id = ANY($2)
		`, chatID, t.kindIDs(card.Kind, RevealFilter{})); err != nil {
			return nil, err
		}
	}
	cp := *card
	return &cp, nil
}

func (t *pgTx) ResolveDrawn(chatID int64, cardID int, newState models.CardState) error {
	if newState != models.StateUsed && newState != models.StatePending {
		return ErrCardNotDrawn
	}
	tag, err := t.tx.Exec(t.ctx, `
		UPDATE team_cards SET state = $3
		WHERE chat_id = $1 AND card_id = $2 AND state IN ('drawn', 'pending')
	`, chatID, cardID, newState)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCardNotDrawn
	}
	return nil
}

func (t *pgTx) CardsInState(chatID int64, kind models.CardKind, state models.CardState) ([]models.Card, error) {
	rows, err := t.tx.Query(t.ctx, `
		SELECT card_id FROM team_cards
		WHERE chat_id = $1 AND state = $2 AND card_id = ANY($3)
		ORDER BY card_id
	`, chatID, state, t.kindIDs(kind, RevealFilter{}))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Card
	for rows.Next() {
		var cardID int
		if err := rows.Scan(&cardID); err != nil {
			return nil, err
		}
		out = append(out, *t.catalog.Get(cardID))
	}
	return out, rows.Err()
}

func (t *pgTx) CountUndrawn(chatID int64, kind models.CardKind, filter RevealFilter) (int, error) {
	var n int
	err := t.tx.QueryRow(t.ctx, `
		SELECT COUNT(*) FROM team_cards
		WHERE chat_id = $1 AND state = 'undrawn' AND card_id = ANY($2)
	`, chatID, t.kindIDs(kind, filter)).Scan(&n)
	return n, err
}

func (t *pgTx) ResetOnCatch(chatID int64) error {
	taskIDs := t.kindIDs(models.KindTask, RevealFilter{})
	powerupIDs := t.kindIDs(models.KindPowerup, RevealFilter{})

	if _, err := t.tx.Exec(t.ctx, `
		UPDATE team_cards SET state = 'undrawn'
		WHERE chat_id = $1 AND state = 'shown' AND card_id = ANY($2)
	`, chatID, taskIDs); err != nil {
		return err
	}
	if _, err := t.tx.Exec(t.ctx, `
		UPDATE team_cards SET state = 'used'
		WHERE chat_id = $1 AND state IN ('drawn', 'pending') AND card_id = ANY($2)
	`, chatID, taskIDs); err != nil {
		return err
	}
	_, err := t.tx.Exec(t.ctx, `
		UPDATE team_cards SET state = 'undrawn'
		WHERE chat_id = $1 AND card_id = ANY($2)
	`, chatID, powerupIDs)
	return err
}
