package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"fabrics-catalog-service/internal/channel/messenger"
	"fabrics-catalog-service/internal/channel/telegram"
	"fabrics-catalog-service/internal/channel/whatsapp"
	"fabrics-catalog-service/internal/conversation"
)

const (
	eventReceived   = "EVENT_RECEIVED"
	maxWebhookBody  = 1 << 20
	defaultHandling = 30 * time.Second
)

// EventHandler answers one conversation event. *channel.Bot implements it.
type EventHandler interface {
	Handle(ctx context.Context, ev conversation.Event) error
}

// TelegramUpdateHandler processes one Telegram update. *telegram.UpdateHandler implements it.
type TelegramUpdateHandler interface {
	HandleUpdate(ctx context.Context, u tgbotapi.Update)
}

// GraphWebhook is a Meta webhook endpoint (Messenger or WhatsApp).
type GraphWebhook struct {
	Bot         EventHandler
	VerifyToken string
}

// WebhookHandler receives platform deliveries. Deliveries are always acknowledged
// with 200 so the platforms do not retry; failures are only logged.
type WebhookHandler struct {
	messenger *GraphWebhook
	whatsapp  *GraphWebhook
	telegram  TelegramUpdateHandler
	timeout   time.Duration
}

// NewWebhookHandler creates a WebhookHandler. Nil channels are not routed.
func NewWebhookHandler(messengerHook, whatsappHook *GraphWebhook, tg TelegramUpdateHandler, timeout time.Duration) *WebhookHandler {
	if timeout <= 0 {
		timeout = defaultHandling
	}
	return &WebhookHandler{messenger: messengerHook, whatsapp: whatsappHook, telegram: tg, timeout: timeout}
}

// RegisterRoutes sets up the webhook routes.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	if h.messenger != nil {
		r.Get("/api/messenger/webhook", verifyHandler(messenger.Name, h.messenger.VerifyToken))
		r.Post("/api/messenger/webhook", h.graphDelivery(messenger.Name, h.messenger.Bot, messenger.ParseWebhook))
	}
	if h.whatsapp != nil {
		r.Get("/api/whatsapp/webhook", verifyHandler(whatsapp.Name, h.whatsapp.VerifyToken))
		r.Post("/api/whatsapp/webhook", h.graphDelivery(whatsapp.Name, h.whatsapp.Bot, whatsapp.ParseWebhook))
	}
	if h.telegram != nil {
		r.Post("/api/telegram/webhook", h.TelegramDelivery)
	}
}

// verifyHandler answers the Meta subscription handshake.
func verifyHandler(channelName, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if token == "" || q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != token {
			log.WithField("channel", channelName).Warn("api: webhook verification rejected")
			w.WriteHeader(http.StatusForbidden)
			return
		}
		log.WithField("channel", channelName).Info("api: webhook verified")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, q.Get("hub.challenge"))
	}
}

type parseFunc func(body []byte) ([]conversation.Event, error)

func (h *WebhookHandler) graphDelivery(channelName string, bot EventHandler, parse parseFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer acknowledge(w)
		logger := log.WithField("channel", channelName)

		body, err := readBody(r)
		if err != nil {
			logger.WithError(err).Warn("api: unreadable webhook body")
			return
		}
		events, err := parse(body)
		if err != nil {
			logger.WithError(err).Warn("api: malformed webhook body")
			return
		}

		ctx, cancel := h.handlingContext(r)
		defer cancel()
		for _, ev := range events {
			if err := bot.Handle(ctx, ev); err != nil {
				logger.WithError(err).WithField("sender", ev.SenderID).Warn("api: reply delivery failed")
			}
		}
	}
}

func (h *WebhookHandler) TelegramDelivery(w http.ResponseWriter, r *http.Request) {
	defer acknowledge(w)

	body, err := readBody(r)
	if err != nil {
		log.WithError(err).WithField("channel", telegram.Name).Warn("api: unreadable webhook body")
		return
	}
	u, err := telegram.ParseUpdate(body)
	if err != nil {
		log.WithError(err).WithField("channel", telegram.Name).Warn("api: malformed webhook body")
		return
	}

	ctx, cancel := h.handlingContext(r)
	defer cancel()
	h.telegram.HandleUpdate(ctx, u)
}

// handlingContext outlives a client disconnect but not the handling timeout.
func (h *WebhookHandler) handlingContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
}

func acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, eventReceived)
}
