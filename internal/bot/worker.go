package bot

import (
	"context"
	"encoding/json"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lectureflow/internal/queue"
)

// Consume handles queued updates one at a time until ctx is done or msgs
// closes.
func Consume(ctx context.Context, h *Handler, msgs <-chan queue.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if msg.Type != queue.TypeUpdate {
				log.Printf("queue message %s: unexpected type %q", msg.ID, msg.Type)
				continue
			}
			var u tgbotapi.Update
			if err := json.Unmarshal(msg.Body, &u); err != nil {
				log.Printf("queue message %s: decode update: %v", msg.ID, err)
				continue
			}
			if err := h.Handle(ctx, u); err != nil {
				log.Printf("update %d: %v", u.UpdateID, err)
			}
		}
	}
}

// Poll handles long-polled updates until ctx is done or the channel closes.
func Poll(ctx context.Context, h *Handler, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := h.Handle(ctx, u); err != nil {
				log.Printf("update %d: %v", u.UpdateID, err)
			}
		}
	}
}
