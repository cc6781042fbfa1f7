// internal/models/game.go
package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Role identifies what a registered chat is to its game.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleLocation Role = "location"
	RoleTeam1    Role = "team_1"
	RoleTeam2    Role = "team_2"
	RoleTeam3    Role = "team_3"
)

// TeamRoles lists the team roles in rotation order.
var TeamRoles = [3]Role{RoleTeam1, RoleTeam2, RoleTeam3}

// TeamRole returns the role for a 1-based team number.
func TeamRole(n int) (Role, error) {
	if n < 1 || n > 3 {
		return "", fmt.Errorf("invalid team number %d", n)
	}
	return TeamRoles[n-1], nil
}

// IsTeam reports whether the role is one of the three team roles.
func (r Role) IsTeam() bool {
	return r == RoleTeam1 || r == RoleTeam2 || r == RoleTeam3
}

// TeamIndex returns the 0-based rotation index of a team role, -1 otherwise.
func (r Role) TeamIndex() int {
	for i, tr := range TeamRoles {
		if r == tr {
			return i
		}
	}
	return -1
}

// B1G1FState tracks progress through the buy-one-get-one-free dual-task mode.
type B1G1FState string

const (
	B1G1FInactive     B1G1FState = "inactive"
	B1G1FNoneDrawn    B1G1FState = "none_drawn"    // powerup armed, no task picked yet
	B1G1FOneDrawn     B1G1FState = "one_drawn"     // first of the pair picked
	B1G1FBothDrawn    B1G1FState = "both_drawn"    // both picked, none completed
	B1G1FOneCompleted B1G1FState = "one_completed" // one completed and parked as pending
)

// PendingPrompt records the single outstanding interactive prompt of a chat.
// Token is the epoch nonce callbacks must echo; a mismatch means the button
// belongs to an earlier draw and must not mutate anything.
type PendingPrompt struct {
	Token     uuid.UUID `json:"token"`
	Action    string    `json:"action"` // wire action of the expected callback
	MessageID int64     `json:"messageId"`
}

// Chat is one registered external chat. Score is only meaningful for team
// roles and never decreases.
type Chat struct {
	ID      int64          `json:"id"`
	GameID  int            `json:"gameId"`
	Role    Role           `json:"role"`
	Score   int            `json:"score"`
	Pending *PendingPrompt `json:"pending,omitempty"`
}

// Game is one admin-initiated session. Chats maps role to chat id; only
// assigned roles are present. Invariant: IsStarted implies the location chat,
// all three team chats and RunningTeam are set.
type Game struct {
	ID        int            `json:"id"` // 6-digit identifier
	Chats     map[Role]int64 `json:"chats"`
	IsStarted bool           `json:"isStarted"`
	IsPaused  bool           `json:"isPaused"`

	AllOrNothing bool       `json:"allOrNothing"` // one-shot extreme-only reveal modifier
	B1G1F        B1G1FState `json:"b1g1f"`

	// NextDrawCount overrides the task reveal size once after an mbs roll;
	// 0 means the default of 3.
	NextDrawCount int `json:"nextDrawCount"`

	RunningTeam Role `json:"runningTeam"` // empty until the game is started
}

// RunningChatID returns the chat id of the running team, or 0 when unset.
func (g *Game) RunningChatID() int64 {
	if g.RunningTeam == "" {
		return 0
	}
	return g.Chats[g.RunningTeam]
}

// MissingChats lists the non-admin roles still unassigned, in a stable order.
func (g *Game) MissingChats() []Role {
	var missing []Role
	for _, r := range []Role{RoleLocation, RoleTeam1, RoleTeam2, RoleTeam3} {
		if _, ok := g.Chats[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

// NextRunningTeam returns the team role after the current one, (i+1) mod 3.
func (g *Game) NextRunningTeam() Role {
	i := g.RunningTeam.TeamIndex()
	if i < 0 {
		return ""
	}
	return TeamRoles[(i+1)%3]
}
