package whatsapp

import (
	"encoding/json"

	"github.com/pkg/errors"

	"fabrics-catalog-service/internal/conversation"
)

type webhookBody struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Messages []inbound `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inbound struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *reply `json:"button_reply"`
		ListReply   *reply `json:"list_reply"`
	} `json:"interactive"`
	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button"`
}

// ParseWebhook extracts customer events from a Cloud API notification. Status
// updates and unsupported message types (media, location...) are skipped.
func ParseWebhook(body []byte) ([]conversation.Event, error) {
	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, errors.Wrap(err, "whatsapp: decode webhook")
	}

	var events []conversation.Event
	for _, e := range wb.Entry {
		for _, c := range e.Changes {
			for _, m := range c.Value.Messages {
				if ev, ok := toEvent(m); ok {
					events = append(events, ev)
				}
			}
		}
	}
	return events, nil
}

func toEvent(m inbound) (conversation.Event, bool) {
	if m.From == "" {
		return conversation.Event{}, false
	}
	switch {
	case m.Type == "text" && m.Text != nil:
		return conversation.TextEvent(Name, m.From, m.Text.Body), true
	case m.Type == "interactive" && m.Interactive != nil:
		if r := m.Interactive.ButtonReply; r != nil {
			return conversation.PostbackEvent(Name, m.From, r.ID), true
		}
		if r := m.Interactive.ListReply; r != nil {
			return conversation.PostbackEvent(Name, m.From, r.ID), true
		}
	case m.Type == "button" && m.Button != nil:
		return conversation.PostbackEvent(Name, m.From, m.Button.Payload), true
	}
	return conversation.Event{}, false
}
