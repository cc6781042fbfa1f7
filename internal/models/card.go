// internal/models/card.go
package models

// CardKind discriminates the closed set of card variants in the catalog.
type CardKind string

const (
	KindTask    CardKind = "task"
	KindPowerup CardKind = "powerup"
	KindRule    CardKind = "rule"
)

// TaskDifficulty determines how many points a completed task is worth.
type TaskDifficulty string

const (
	DifficultyNormal  TaskDifficulty = "normal"
	DifficultyExtreme TaskDifficulty = "extreme"
)

// TaskSpecial marks task cards that trigger a branch after completion.
type TaskSpecial string

const (
	TaskSpecialNone      TaskSpecial = "none"
	TaskSpecialFullerton TaskSpecial = "fullerton" // arrived early/late prompt
	TaskSpecialMBS       TaskSpecial = "mbs"       // dice roll decides the next draw size
)

// PowerupSpecial marks powerup cards with an effect beyond the card text.
type PowerupSpecial string

const (
	PowerupSpecialNone         PowerupSpecial = "none"
	PowerupSpecialAllOrNothing PowerupSpecial = "all_or_nothing"
	PowerupSpecialB1G1F        PowerupSpecial = "buy_1_get_1_free"
)

// TaskInfo holds the fields only task cards carry.
type TaskInfo struct {
	Difficulty TaskDifficulty `json:"difficulty"`
	Special    TaskSpecial    `json:"special"`
}

// PowerupInfo holds the fields only powerup cards carry.
type PowerupInfo struct {
	Special PowerupSpecial `json:"special"`
	// SendToChasers broadcasts the card to the other team chats when used.
	SendToChasers bool `json:"sendToChasers"`
}

// Card is an immutable catalog entry. Exactly one of Task/Powerup is non-nil
// for the matching kind; rule cards carry display data only.
type Card struct {
	ID    int      `json:"id"`
	Kind  CardKind `json:"kind"`
	Image string   `json:"image"` // opaque reference passed to the transport
	Title string   `json:"title"`

	Task    *TaskInfo    `json:"task,omitempty"`
	Powerup *PowerupInfo `json:"powerup,omitempty"`
}

// Points returns the score value of a completed task card, 0 for other kinds.
func (c *Card) Points() int {
	if c.Kind != KindTask || c.Task == nil {
		return 0
	}
	if c.Task.Difficulty == DifficultyExtreme {
		return 3
	}
	return 2
}

// IsExtreme reports whether the card is an extreme-difficulty task.
func (c *Card) IsExtreme() bool {
	return c.Kind == KindTask && c.Task != nil && c.Task.Difficulty == DifficultyExtreme
}

// CardState is the per-team ledger state of a non-rule card.
type CardState string

const (
	StateUndrawn CardState = "undrawn"
	StateShown   CardState = "shown"
	StateDrawn   CardState = "drawn"
	StatePending CardState = "pending" // only during the buy-one-get-one-free pair
	StateUsed    CardState = "used"
)
