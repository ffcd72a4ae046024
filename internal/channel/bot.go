package channel

import (
	"context"

	log "github.com/sirupsen/logrus"

	"fabrics-catalog-service/internal/conversation"
)

// Responder computes replies for an event. *conversation.Engine implements it.
type Responder interface {
	Respond(ctx context.Context, ev conversation.Event) []conversation.Response
}

// Bot wires one channel: engine, renderer and dispatcher.
type Bot struct {
	channel    string
	engine     Responder
	renderer   *Renderer
	dispatcher *Dispatcher
}

// NewBot creates a Bot for the named channel.
func NewBot(channel string, engine Responder, limits Limits, gateway Gateway) *Bot {
	return &Bot{
		channel:    channel,
		engine:     engine,
		renderer:   NewRenderer(limits),
		dispatcher: NewDispatcher(channel, gateway),
	}
}

// Channel returns the channel name.
func (b *Bot) Channel() string { return b.channel }

// Handle answers one event. The returned error only reports failed sends.
func (b *Bot) Handle(ctx context.Context, ev conversation.Event) error {
	if ev.Channel == "" {
		ev.Channel = b.channel
	}
	transcript(ev.Channel, "in", ev.SenderID, inboundText(ev))

	msgs := b.renderer.Render(b.engine.Respond(ctx, ev))
	for _, m := range msgs {
		if m.Kind == KindText {
			transcript(ev.Channel, "out", ev.SenderID, m.Text)
		}
	}
	return b.dispatcher.Dispatch(ctx, ev.SenderID, msgs)
}

func inboundText(ev conversation.Event) string {
	if ev.Kind == conversation.KindPostback {
		return ev.Payload
	}
	return ev.Text
}

func transcript(channel, direction, sender, text string) {
	log.WithFields(log.Fields{
		"chat":      true,
		"channel":   channel,
		"direction": direction,
		"sender":    sender,
		"text":      text,
	}).Info("chat message")
}
