package channel

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"fabrics-catalog-service/internal/conversation"
)

// Renderer turns conversation responses into messages sized for one channel.
type Renderer struct {
	limits Limits
}

// NewRenderer creates a Renderer for limits.
func NewRenderer(limits Limits) *Renderer {
	return &Renderer{limits: limits}
}

// Limits returns the caps the renderer applies.
func (r *Renderer) Limits() Limits { return r.limits }

// Render converts responses in order. Option lists become ⌈N/MaxButtons⌉ button
// messages and product lists ⌈N/MaxElements⌉ carousels, order preserved.
func (r *Renderer) Render(responses []conversation.Response) []Message {
	var out []Message
	for _, resp := range responses {
		switch v := resp.(type) {
		case conversation.TextMessage:
			out = append(out, r.text(v.Text)...)
		case conversation.CategoryList:
			out = append(out, r.buttons(v.Prompt, v.Options)...)
		case conversation.ProductList:
			out = append(out, r.carousels(v.Products)...)
		case conversation.Detail:
			out = append(out, r.text(v.Text)...)
			out = append(out, r.buttons(v.Title, v.Buttons)...)
		default:
			log.WithField("type", fmt.Sprintf("%T", resp)).Warn("channel: dropping unsupported response")
		}
	}
	return out
}

func (r *Renderer) text(s string) []Message {
	if s == "" {
		return nil
	}
	parts := SplitText(s, r.limits.Text)
	msgs := make([]Message, 0, len(parts))
	for _, p := range parts {
		msgs = append(msgs, Message{Kind: KindText, Text: p})
	}
	return msgs
}

func (r *Renderer) buttons(prompt string, options []conversation.Option) []Message {
	if len(options) == 0 {
		return r.text(prompt)
	}
	chunks := chunk(options, r.limits.MaxButtons)
	msgs := make([]Message, 0, len(chunks))
	for i, c := range chunks {
		p := prompt
		if len(chunks) > 1 {
			p = fmt.Sprintf("%s (%d/%d)", prompt, i+1, len(chunks))
		}
		msgs = append(msgs, Message{
			Kind:    KindButtons,
			Text:    Truncate(p, r.limits.Text),
			Buttons: r.toButtons(c),
		})
	}
	return msgs
}

func (r *Renderer) carousels(cards []conversation.ProductCard) []Message {
	chunks := chunk(cards, r.limits.MaxElements)
	msgs := make([]Message, 0, len(chunks))
	for _, c := range chunks {
		elements := make([]Element, 0, len(c))
		for _, card := range c {
			options := card.Buttons
			if r.limits.MaxButtons > 0 && len(options) > r.limits.MaxButtons {
				log.WithFields(log.Fields{"product": card.ID, "buttons": len(options)}).Warn("channel: card has too many buttons, keeping the first ones")
				options = options[:r.limits.MaxButtons]
			}
			elements = append(elements, Element{
				Title:    Truncate(card.Title, r.limits.ElementTitle),
				Subtitle: Truncate(card.Subtitle, r.limits.ElementSubtitle),
				ImageURL: card.ImageURL,
				Buttons:  r.toButtons(options),
			})
		}
		msgs = append(msgs, Message{Kind: KindCarousel, Elements: elements})
	}
	return msgs
}

func (r *Renderer) toButtons(options []conversation.Option) []Button {
	buttons := make([]Button, 0, len(options))
	for _, o := range options {
		buttons = append(buttons, Button{Title: Truncate(o.Title, r.limits.ButtonTitle), Payload: o.Payload})
	}
	return buttons
}

// chunk splits items into consecutive groups of at most size. A non-positive size
// yields one group.
func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]T{items}
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
