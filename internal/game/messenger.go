// internal/game/messenger.go
package game

import "context"

// Button is one option on an inline selection keyboard. Data is the encoded
// Callback the press sends back.
type Button struct {
	Label string
	Data  string
}

// Messenger is the outbound side of the chat platform. Delivery, formatting
// and retries belong to the implementation; the controller only states what
// to send where.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendImage(ctx context.Context, chatID int64, image string) error
	// Prompt sends text with a selection keyboard and returns the message id
	// used later to strip the keyboard again.
	Prompt(ctx context.Context, chatID int64, text string, buttons []Button) (int64, error)
	RemoveKeyboard(ctx context.Context, chatID int64, messageID int64) error
}
