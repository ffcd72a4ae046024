// Package telegram adapts the Telegram Bot API. One bot serves two roles: customers
// browse the catalog through it, and staff chats register with it to receive
// reservation notifications.
package telegram

import (
	"context"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"fabrics-catalog-service/internal/channel"
)

// Name identifies the channel in events and logs.
const Name = "telegram"

// API is the part of *tgbotapi.BotAPI used for sending.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// NewAPI connects to the Bot API. An empty endpoint selects the public one; it has the
// form "https://host/bot%s/%s" (token, method).
func NewAPI(token, endpoint string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, errors.Wrap(err, "telegram: connect bot")
	}
	return api, nil
}

// Gateway implements channel.Gateway with inline keyboards.
type Gateway struct {
	api API
}

// NewGateway creates a Gateway.
func NewGateway(api API) *Gateway {
	return &Gateway{api: api}
}

func (g *Gateway) SendText(ctx context.Context, recipientID, text string) error {
	chatID, err := parseChatID(recipientID)
	if err != nil {
		return err
	}
	return g.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (g *Gateway) SendButtons(ctx context.Context, recipientID, prompt string, buttons []channel.Button) error {
	chatID, err := parseChatID(recipientID)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, prompt)
	if kb, ok := keyboard(buttons); ok {
		msg.ReplyMarkup = kb
	}
	return g.send(ctx, msg)
}

// SendCarousel sends one message per element: a photo with caption when the element
// has an image, text otherwise. Every element is attempted.
func (g *Gateway) SendCarousel(ctx context.Context, recipientID string, elements []channel.Element) error {
	chatID, err := parseChatID(recipientID)
	if err != nil {
		return err
	}
	var firstErr error
	failed := 0
	for _, e := range elements {
		caption := e.Title
		if e.Subtitle != "" {
			caption += "\n" + e.Subtitle
		}
		kb, hasKeyboard := keyboard(e.Buttons)

		var c tgbotapi.Chattable
		if e.ImageURL != "" {
			photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(e.ImageURL))
			photo.Caption = caption
			if hasKeyboard {
				photo.ReplyMarkup = kb
			}
			c = photo
		} else {
			msg := tgbotapi.NewMessage(chatID, caption)
			if hasKeyboard {
				msg.ReplyMarkup = kb
			}
			c = msg
		}
		if err := g.send(ctx, c); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return errors.Wrapf(firstErr, "telegram: %d of %d cards failed", failed, len(elements))
	}
	return nil
}

// SendStaff delivers a staff notification to chatID.
func (g *Gateway) SendStaff(ctx context.Context, chatID int64, text string) error {
	return g.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (g *Gateway) send(ctx context.Context, c tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := g.api.Send(c); err != nil {
		return errors.Wrap(err, "telegram: send")
	}
	return nil
}

// keyboard lays buttons out one per row.
func keyboard(buttons []channel.Button) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(buttons) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(b.Title, b.Payload)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

func parseChatID(recipientID string) (int64, error) {
	id, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "telegram: invalid chat id %q", recipientID)
	}
	return id, nil
}
