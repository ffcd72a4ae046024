package notify

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Sender delivers one text to one staff chat.
type Sender interface {
	SendStaff(ctx context.Context, chatID int64, text string) error
}

// RecipientSource lists the chats to notify. *Registry implements it.
type RecipientSource interface {
	Recipients(ctx context.Context) ([]int64, error)
}

// BroadcastResult summarizes one fan-out.
type BroadcastResult struct {
	Sent   int
	Failed map[int64]error
}

// Broadcaster sends a message to every registered chat.
type Broadcaster struct {
	recipients RecipientSource
	sender     Sender
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(recipients RecipientSource, sender Sender) *Broadcaster {
	return &Broadcaster{recipients: recipients, sender: sender}
}

// Broadcast sends message to each recipient. A failing chat is logged and skipped;
// only a failure to list the recipients is returned as an error.
func (b *Broadcaster) Broadcast(ctx context.Context, message string) (BroadcastResult, error) {
	result := BroadcastResult{Failed: map[int64]error{}}

	ids, err := b.recipients.Recipients(ctx)
	if err != nil {
		return result, errors.Wrap(err, "notify: broadcast")
	}
	if len(ids) == 0 {
		log.Warn("notify: no registered recipients, notification dropped")
		return result, nil
	}

	for _, id := range ids {
		if err := b.sender.SendStaff(ctx, id, message); err != nil {
			log.WithField("chat", id).WithError(err).Warn("notify: delivery failed")
			result.Failed[id] = err
			continue
		}
		result.Sent++
	}
	log.WithFields(log.Fields{"sent": result.Sent, "failed": len(result.Failed)}).Info("notify: broadcast finished")
	return result, nil
}

func (r BroadcastResult) String() string {
	return fmt.Sprintf("sent=%d failed=%d", r.Sent, len(r.Failed))
}
