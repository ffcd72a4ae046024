package telegram

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"fabrics-catalog-service/internal/conversation"
)

const (
	registeredText        = "✅ تم تسجيل هذه المحادثة لاستقبال إشعارات الحجوزات."
	alreadyRegisteredText = "ℹ️ هذه المحادثة مسجلة بالفعل."
	registerDeniedText    = "⛔ رمز التسجيل غير صحيح."
)

// Registrar records staff chats for reservation notifications.
type Registrar interface {
	Register(ctx context.Context, chatID int64) (bool, error)
}

// EventHandler answers customer events. *channel.Bot implements it.
type EventHandler interface {
	Handle(ctx context.Context, ev conversation.Event) error
}

// UpdateHandler routes Telegram updates: registration commands go to the staff
// registry, everything else to the customer conversation.
type UpdateHandler struct {
	api       API
	bot       EventHandler
	registrar Registrar
	secret    string
}

// NewUpdateHandler creates an UpdateHandler. An empty secret lets any chat register.
func NewUpdateHandler(api API, bot EventHandler, registrar Registrar, secret string) *UpdateHandler {
	return &UpdateHandler{api: api, bot: bot, registrar: registrar, secret: secret}
}

// ParseUpdate decodes a webhook delivery.
func ParseUpdate(body []byte) (tgbotapi.Update, error) {
	var u tgbotapi.Update
	if err := json.Unmarshal(body, &u); err != nil {
		return tgbotapi.Update{}, errors.Wrap(err, "telegram: decode update")
	}
	return u, nil
}

// ToEvent converts a message or callback query into a conversation event.
func ToEvent(u tgbotapi.Update) (conversation.Event, bool) {
	switch {
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil && u.CallbackQuery.Message.Chat != nil:
		chatID := strconv.FormatInt(u.CallbackQuery.Message.Chat.ID, 10)
		return conversation.PostbackEvent(Name, chatID, u.CallbackQuery.Data), true
	case u.Message != nil && u.Message.Chat != nil:
		chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
		return conversation.TextEvent(Name, chatID, u.Message.Text), true
	}
	return conversation.Event{}, false
}

// HandleUpdate processes one update. Errors are logged; the caller has nothing to retry.
func (h *UpdateHandler) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	if cq := u.CallbackQuery; cq != nil {
		if _, err := h.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			log.WithError(err).Debug("telegram: answering callback query failed")
		}
	}

	if m := u.Message; m != nil && m.Chat != nil && isRegistration(m) {
		h.register(ctx, m.Chat.ID, strings.TrimSpace(m.CommandArguments()))
		return
	}

	ev, ok := ToEvent(u)
	if !ok {
		log.WithField("update_id", u.UpdateID).Debug("telegram: ignoring update without message")
		return
	}
	if err := h.bot.Handle(ctx, ev); err != nil {
		log.WithError(err).WithField("chat", ev.SenderID).Warn("telegram: reply partially failed")
	}
}

// isRegistration matches "/register [secret]" and "/start <secret>". A bare /start is
// a customer greeting.
func isRegistration(m *tgbotapi.Message) bool {
	if !m.IsCommand() {
		return false
	}
	switch m.Command() {
	case "register":
		return true
	case "start":
		return strings.TrimSpace(m.CommandArguments()) != ""
	}
	return false
}

func (h *UpdateHandler) register(ctx context.Context, chatID int64, secret string) {
	logger := log.WithField("chat", chatID)
	reply := registeredText

	switch {
	case h.secret != "" && secret != h.secret:
		logger.Warn("telegram: registration rejected, wrong secret")
		reply = registerDeniedText
	default:
		added, err := h.registrar.Register(ctx, chatID)
		if err != nil {
			logger.WithError(err).Error("telegram: registration failed")
			return
		}
		if !added {
			reply = alreadyRegisteredText
		} else {
			logger.Info("telegram: staff chat registered")
		}
	}

	if _, err := h.api.Send(tgbotapi.NewMessage(chatID, reply)); err != nil {
		logger.WithError(err).Warn("telegram: registration reply failed")
	}
}
