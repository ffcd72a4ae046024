// Package channel renders conversation replies into chat-platform messages that
// respect each platform's limits, and sends them through a Gateway.
package channel

import "context"

// Kind is the shape of an outbound message.
type Kind int

const (
	KindText Kind = iota + 1
	KindButtons
	KindCarousel
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindButtons:
		return "buttons"
	case KindCarousel:
		return "carousel"
	}
	return "unknown"
}

// Button is a postback button.
type Button struct {
	Title   string
	Payload string
}

// Element is one card of a carousel.
type Element struct {
	Title    string
	Subtitle string
	ImageURL string
	Buttons  []Button
}

// Message is one outbound call to a Gateway.
type Message struct {
	Kind     Kind
	Text     string // text body, or the prompt of a button message
	Buttons  []Button
	Elements []Element
}

// Gateway sends messages on one platform. Callers pass at most Limits.MaxButtons
// buttons and Limits.MaxElements elements per call.
type Gateway interface {
	SendText(ctx context.Context, recipientID, text string) error
	SendButtons(ctx context.Context, recipientID, prompt string, buttons []Button) error
	SendCarousel(ctx context.Context, recipientID string, elements []Element) error
}
