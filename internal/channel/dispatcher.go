package channel

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DispatchError reports the messages that could not be sent. It is informational:
// the other messages of the same batch were still attempted.
type DispatchError struct {
	Channel string
	Failed  int
	Total   int
	Errs    []error
}

func (e *DispatchError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("channel %s: %d of %d messages failed: %s", e.Channel, e.Failed, e.Total, strings.Join(msgs, "; "))
}

func (e *DispatchError) Unwrap() []error { return e.Errs }

// Dispatcher sends rendered messages one by one through a Gateway.
type Dispatcher struct {
	channel string
	gateway Gateway
}

// NewDispatcher creates a Dispatcher for the named channel.
func NewDispatcher(channel string, gateway Gateway) *Dispatcher {
	return &Dispatcher{channel: channel, gateway: gateway}
}

// Dispatch sends every message in order. A failed send is logged and the loop goes on;
// the failures are returned together as a *DispatchError.
func (d *Dispatcher) Dispatch(ctx context.Context, recipientID string, msgs []Message) error {
	var failed []error
	for i, m := range msgs {
		if err := d.send(ctx, recipientID, m); err != nil {
			err = errors.Wrapf(err, "message %d (%s)", i+1, m.Kind)
			log.WithFields(log.Fields{
				"channel":   d.channel,
				"recipient": recipientID,
				"index":     i,
				"kind":      m.Kind.String(),
			}).WithError(err).Warn("channel: send failed, continuing with the next message")
			failed = append(failed, err)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &DispatchError{Channel: d.channel, Failed: len(failed), Total: len(msgs), Errs: failed}
}

func (d *Dispatcher) send(ctx context.Context, recipientID string, m Message) error {
	switch m.Kind {
	case KindText:
		return d.gateway.SendText(ctx, recipientID, m.Text)
	case KindButtons:
		return d.gateway.SendButtons(ctx, recipientID, m.Text, m.Buttons)
	case KindCarousel:
		return d.gateway.SendCarousel(ctx, recipientID, m.Elements)
	}
	return errors.Errorf("unsupported message kind %d", m.Kind)
}
