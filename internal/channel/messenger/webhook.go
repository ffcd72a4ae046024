package messenger

import (
	"encoding/json"

	"github.com/pkg/errors"

	"fabrics-catalog-service/internal/conversation"
)

type webhookBody struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	ID        string      `json:"id"`
	Messaging []messaging `json:"messaging"`
}

type messaging struct {
	Sender  recipient `json:"sender"`
	Message *struct {
		Text       string `json:"text"`
		IsEcho     bool   `json:"is_echo"`
		QuickReply *struct {
			Payload string `json:"payload"`
		} `json:"quick_reply"`
	} `json:"message"`
	Postback *struct {
		Title   string `json:"title"`
		Payload string `json:"payload"`
	} `json:"postback"`
}

// ParseWebhook extracts the customer events of a page webhook delivery. Echoes of
// the page's own messages and events without a sender are skipped.
func ParseWebhook(body []byte) ([]conversation.Event, error) {
	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, errors.Wrap(err, "messenger: decode webhook")
	}
	if wb.Object != "" && wb.Object != "page" {
		return nil, errors.Errorf("messenger: unexpected object %q", wb.Object)
	}

	var events []conversation.Event
	for _, e := range wb.Entry {
		for _, m := range e.Messaging {
			if m.Sender.ID == "" {
				continue
			}
			switch {
			case m.Postback != nil:
				events = append(events, conversation.PostbackEvent(Name, m.Sender.ID, m.Postback.Payload))
			case m.Message != nil && m.Message.IsEcho:
			case m.Message != nil && m.Message.QuickReply != nil:
				events = append(events, conversation.PostbackEvent(Name, m.Sender.ID, m.Message.QuickReply.Payload))
			case m.Message != nil:
				events = append(events, conversation.TextEvent(Name, m.Sender.ID, m.Message.Text))
			}
		}
	}
	return events, nil
}
