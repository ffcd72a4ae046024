// Package whatsapp adapts the WhatsApp Cloud API: webhook parsing plus text,
// reply-button and list messages.
package whatsapp

import (
	"context"

	"fabrics-catalog-service/internal/channel"
)

const (
	// Name identifies the channel in events and logs.
	Name = "whatsapp"
	// GraphVersion is the Cloud API version used by the gateway.
	GraphVersion = "v20.0"

	defaultListButton = "عرض المنتجات"
	defaultListBody   = "🛍️ اختر المنتج"
)

// Poster posts a JSON body to a Graph API path.
type Poster interface {
	Post(ctx context.Context, path string, body any) error
}

type outbound struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textBody    `json:"text,omitempty"`
	Interactive      *interactive `json:"interactive,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type interactive struct {
	Type   string   `json:"type"`
	Body   textBody `json:"body"`
	Action action   `json:"action"`
}

type action struct {
	Button   string        `json:"button,omitempty"`
	Buttons  []replyButton `json:"buttons,omitempty"`
	Sections []section     `json:"sections,omitempty"`
}

type replyButton struct {
	Type  string `json:"type"`
	Reply reply  `json:"reply"`
}

type reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type section struct {
	Title string `json:"title,omitempty"`
	Rows  []row  `json:"rows"`
}

type row struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Gateway implements channel.Gateway on the Cloud API messages endpoint.
type Gateway struct {
	poster        Poster
	phoneNumberID string
	listButton    string
	listBody      string
}

// NewGateway creates a Gateway sending from phoneNumberID.
func NewGateway(poster Poster, phoneNumberID string) *Gateway {
	return &Gateway{
		poster:        poster,
		phoneNumberID: phoneNumberID,
		listButton:    defaultListButton,
		listBody:      defaultListBody,
	}
}

func (g *Gateway) SendText(ctx context.Context, recipientID, text string) error {
	return g.send(ctx, recipientID, outbound{Type: "text", Text: &textBody{Body: text}})
}

func (g *Gateway) SendButtons(ctx context.Context, recipientID, prompt string, buttons []channel.Button) error {
	replies := make([]replyButton, 0, len(buttons))
	for _, b := range buttons {
		replies = append(replies, replyButton{Type: "reply", Reply: reply{ID: b.Payload, Title: b.Title}})
	}
	return g.send(ctx, recipientID, outbound{Type: "interactive", Interactive: &interactive{
		Type:   "button",
		Body:   textBody{Body: prompt},
		Action: action{Buttons: replies},
	}})
}

// SendCarousel renders elements as a list message: one row per element, selected
// through the element's first button.
func (g *Gateway) SendCarousel(ctx context.Context, recipientID string, elements []channel.Element) error {
	rows := make([]row, 0, len(elements))
	for _, e := range elements {
		if len(e.Buttons) == 0 {
			continue
		}
		rows = append(rows, row{
			ID:          e.Buttons[0].Payload,
			Title:       channel.Truncate(e.Title, channel.WhatsAppLimits.ElementTitle),
			Description: channel.Truncate(e.Subtitle, channel.WhatsAppLimits.ElementSubtitle),
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return g.send(ctx, recipientID, outbound{Type: "interactive", Interactive: &interactive{
		Type:   "list",
		Body:   textBody{Body: g.listBody},
		Action: action{Button: g.listButton, Sections: []section{{Rows: rows}}},
	}})
}

func (g *Gateway) send(ctx context.Context, to string, msg outbound) error {
	msg.MessagingProduct = "whatsapp"
	msg.RecipientType = "individual"
	msg.To = to
	return g.poster.Post(ctx, g.phoneNumberID+"/messages", msg)
}
