package controllers

import (
	"context"

	"telegram-library/bot"
	"telegram-library/configs"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Poll feeds long-polled updates into queue until ctx ends or updates closes.
func Poll(ctx context.Context, updates <-chan tgbotapi.Update, queue Submitter) {
	log := configs.Logger("poller")
	log.Info().Msg("Long polling started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Long polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				log.Info().Msg("Update channel closed")
				return
			}
			ev, ok := bot.Decode(update)
			if !ok {
				continue
			}
			queue.Submit(ctx, ev)
		}
	}
}
