package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// UpdatesAPI is the long-polling part of *tgbotapi.BotAPI.
type UpdatesAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poller feeds long-polled updates to an UpdateHandler, for deployments without a
// public webhook URL.
type Poller struct {
	api     UpdatesAPI
	handler *UpdateHandler
	timeout int
}

// NewPoller creates a Poller. timeoutSeconds is the server-side long-poll timeout.
func NewPoller(api UpdatesAPI, handler *UpdateHandler, timeoutSeconds int) *Poller {
	return &Poller{api: api, handler: handler, timeout: timeoutSeconds}
}

// Run handles updates until ctx is done. Updates are processed one at a time.
func (p *Poller) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.timeout
	updates := p.api.GetUpdatesChan(cfg)
	log.WithField("timeout", p.timeout).Info("telegram: polling for updates")

	for {
		select {
		case <-ctx.Done():
			p.api.StopReceivingUpdates()
			log.Info("telegram: polling stopped")
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			p.handler.HandleUpdate(ctx, u)
		}
	}
}
