// Package messenger adapts Facebook Messenger: it parses page webhooks and sends
// text, button templates and generic templates through the Send API.
package messenger

import (
	"context"

	"fabrics-catalog-service/internal/channel"
)

// Name identifies the channel in events and logs.
const Name = "messenger"

// GraphVersion is the Send API version used by the gateway.
const GraphVersion = "v18.0"

// Poster posts a JSON body to a Graph API path.
type Poster interface {
	Post(ctx context.Context, path string, body any) error
}

type recipient struct {
	ID string `json:"id"`
}

type sendRequest struct {
	Recipient     recipient `json:"recipient"`
	MessagingType string    `json:"messaging_type"`
	Message       message   `json:"message"`
}

type message struct {
	Text       string      `json:"text,omitempty"`
	Attachment *attachment `json:"attachment,omitempty"`
}

type attachment struct {
	Type    string          `json:"type"`
	Payload templatePayload `json:"payload"`
}

type templatePayload struct {
	TemplateType string    `json:"template_type"`
	Text         string    `json:"text,omitempty"`
	Buttons      []button  `json:"buttons,omitempty"`
	Elements     []element `json:"elements,omitempty"`
}

type button struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

type element struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	Buttons  []button `json:"buttons,omitempty"`
}

// Gateway implements channel.Gateway on the Messenger Send API.
type Gateway struct {
	poster Poster
}

// NewGateway creates a Gateway posting through poster.
func NewGateway(poster Poster) *Gateway {
	return &Gateway{poster: poster}
}

func (g *Gateway) SendText(ctx context.Context, recipientID, text string) error {
	return g.send(ctx, recipientID, message{Text: text})
}

func (g *Gateway) SendButtons(ctx context.Context, recipientID, prompt string, buttons []channel.Button) error {
	return g.send(ctx, recipientID, message{Attachment: &attachment{
		Type: "template",
		Payload: templatePayload{
			TemplateType: "button",
			Text:         prompt,
			Buttons:      toButtons(buttons),
		},
	}})
}

func (g *Gateway) SendCarousel(ctx context.Context, recipientID string, elements []channel.Element) error {
	els := make([]element, 0, len(elements))
	for _, e := range elements {
		els = append(els, element{
			Title:    e.Title,
			Subtitle: e.Subtitle,
			ImageURL: e.ImageURL,
			Buttons:  toButtons(e.Buttons),
		})
	}
	return g.send(ctx, recipientID, message{Attachment: &attachment{
		Type:    "template",
		Payload: templatePayload{TemplateType: "generic", Elements: els},
	}})
}

func (g *Gateway) send(ctx context.Context, recipientID string, msg message) error {
	return g.poster.Post(ctx, "me/messages", sendRequest{
		Recipient:     recipient{ID: recipientID},
		MessagingType: "RESPONSE",
		Message:       msg,
	})
}

func toButtons(buttons []channel.Button) []button {
	out := make([]button, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, button{Type: "postback", Title: b.Title, Payload: b.Payload})
	}
	return out
}
