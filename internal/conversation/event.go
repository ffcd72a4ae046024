// Package conversation turns inbound chat events into channel-agnostic replies.
// The engine keeps no session: every choice the customer can make is encoded in the
// payload of the button that offers it.
package conversation

// Kind distinguishes free text from button clicks.
type Kind int

const (
	KindText Kind = iota + 1
	KindPostback
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPostback:
		return "postback"
	}
	return "unknown"
}

// Event is one inbound message, already normalized by a channel package.
type Event struct {
	Channel  string
	SenderID string
	Kind     Kind
	Text     string
	Payload  string
}

// TextEvent builds a free-text event.
func TextEvent(channel, senderID, text string) Event {
	return Event{Channel: channel, SenderID: senderID, Kind: KindText, Text: text}
}

// PostbackEvent builds a button-click event.
func PostbackEvent(channel, senderID, payload string) Event {
	return Event{Channel: channel, SenderID: senderID, Kind: KindPostback, Payload: payload}
}
