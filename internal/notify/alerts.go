package notify

import (
	"context"
	"errors"
	"fmt"

	"recurpay/internal/eventbus"
	logx "recurpay/pkg/logx"
)

// Forward turns failure events from bus into alerts until ctx is done.
func (s *Service) Forward(ctx context.Context, bus eventbus.Bus) error {
	events, unsubscribe := bus.Subscribe(128)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m, ok := AlertFor(ev)
			if !ok {
				continue
			}
			if err := s.Notify(ctx, m); err != nil && !errors.Is(err, ErrDisabled) {
				s.log.Debug("alert not queued", logx.String("event", ev.Type), logx.Err(err))
			}
		}
	}
}

// AlertFor renders the alert for an engine event; ok is false for events
// that do not warrant one.
func AlertFor(ev eventbus.Event) (Message, bool) {
	switch ev.Type {
	case eventbus.RecurringFailed:
		d, ok := ev.Data.(eventbus.ItemEvent)
		if !ok {
			return Message{}, false
		}
		reason := d.Reason
		if d.Error != "" {
			reason = d.Error
		}
		return Message{
			Key:      "item|" + d.DefinitionID + "|" + reason,
			Severity: SeverityWarn,
			Text:     fmt.Sprintf("recurring payment %s failed: %s", d.DefinitionID, reason),
		}, true
	case eventbus.SchedulerTickFail:
		d, ok := ev.Data.(eventbus.TickEvent)
		if !ok {
			return Message{}, false
		}
		return Message{
			Key:      "tick|" + d.Error,
			Severity: SeverityCritical,
			Text:     fmt.Sprintf("scheduler tick (%s) failed: %s", d.Trigger, d.Error),
		}, true
	}
	return Message{}, false
}
