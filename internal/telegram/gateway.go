package telegram

import "context"

// Gateway is the outbound half of the chat transport. Implementations
// must not be relied on to succeed: callers treat a failed delivery as
// non-fatal and never roll back state because of one.
type Gateway interface {
	// SendMessage delivers text (with optional inline buttons) to a chat
	// and returns the delivered message id for later edits.
	SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) (int64, error)

	// EditMessage rewrites a previously delivered message in place.
	EditMessage(ctx context.Context, chatID, messageID int64, text string, markup *InlineKeyboardMarkup) error

	// AnswerCallback acknowledges a button press so the client stops the
	// progress indicator.
	AnswerCallback(ctx context.Context, callbackID string) error

	// SetCommands publishes the bot command menu.
	SetCommands(ctx context.Context, commands []BotCommand) error
}
