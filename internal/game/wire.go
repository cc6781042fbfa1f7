// internal/game/wire.go
package game

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Action names a callback prompt kind. The wire encoding below is an
// explicit, versioned table rather than anything derived from Go identifiers,
// so internal renames never change what buttons carry.
type Action string

const (
	ActionSelectTask    Action = "select_task"
	ActionSelectPowerup Action = "select_powerup"
	ActionRevealChoice  Action = "reveal_choice"
	ActionFullerton     Action = "fullerton"
	ActionB1G1FOffer    Action = "b1g1f_offer"    // use immediately vs keep
	ActionB1G1FComplete Action = "b1g1f_complete" // which of the pair was finished
	ActionUsePowerup    Action = "use_powerup"
)

// wireV1 is the closed v1 mapping between actions and wire tokens.
var wireV1 = map[Action]string{
	ActionSelectTask:    "v1/task",
	ActionSelectPowerup: "v1/powerup",
	ActionRevealChoice:  "v1/reveal",
	ActionFullerton:     "v1/fullerton",
	ActionB1G1FOffer:    "v1/b1g1f-offer",
	ActionB1G1FComplete: "v1/b1g1f-complete",
	ActionUsePowerup:    "v1/use-powerup",
}

var wireV1Reverse = func() map[string]Action {
	m := make(map[string]Action, len(wireV1))
	for action, token := range wireV1 {
		m[token] = action
	}
	return m
}()

// Choice values carried in callback data.
const (
	ChoiceTasks    = "tasks"
	ChoicePowerups = "powerups"
	ChoiceEarly    = "early"
	ChoiceLate     = "late"
	ChoiceUseNow   = "use"
	ChoiceKeep     = "keep"
)

// Callback is one decoded button press: which prompt kind it answers, the
// epoch token of the prompt it belongs to, and the chosen value (a card id
// or one of the Choice constants).
type Callback struct {
	Action Action
	Token  uuid.UUID
	Value  string
}

// Encode renders the callback as wire data for a button.
func (cb Callback) Encode() string {
	return fmt.Sprintf("%s:%s:%s", wireV1[cb.Action], cb.Token, cb.Value)
}

// DecodeCallback parses wire data back into a Callback. Unknown tokens and
// malformed data yield ok=false; the caller treats that as a stale button.
func DecodeCallback(data string) (Callback, bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 {
		return Callback{}, false
	}
	action, ok := wireV1Reverse[parts[0]]
	if !ok {
		return Callback{}, false
	}
	token, err := uuid.Parse(parts[1])
	if err != nil {
		return Callback{}, false
	}
	return Callback{Action: action, Token: token, Value: parts[2]}, true
}
