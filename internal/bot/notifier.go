package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier pushes reminder texts to users over Telegram.
type Notifier struct {
	out Sender
}

// NewNotifier creates a notifier sending through out.
func NewNotifier(out Sender) *Notifier {
	return &Notifier{out: out}
}

// Notify sends an HTML message to a user's private chat.
func (n *Notifier) Notify(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := n.out.Send(msg)
	return err
}
