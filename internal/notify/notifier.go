// Package notify fans domain events out to external collaborators: chat
// senders (Telegram, Discord) for human-facing alerts and the signal bus for
// machine consumers such as the WebSocket feed. Dispatch is fire-and-forget;
// a delivery failure is logged and swallowed, never surfaced to the ledger
// operation that produced the event.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/predictarena/ledger/internal/domain"
)

// EventsChannel is the signal-bus channel carrying every domain event.
const EventsChannel = "events"

// PricesChannel carries only PRICE_UPDATE events for live market feeds.
const PricesChannel = "prices"

// Sender is the interface each chat notification channel implements.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender.
	Name() string
}

// Dispatcher delivers domain events to all registered senders and publishes
// them on the signal bus.
type Dispatcher struct {
	senders []Sender
	bus     domain.SignalBus
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. bus may be nil (bus publishing
// disabled); senders may be empty.
func NewDispatcher(senders []Sender, bus domain.SignalBus, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		senders: senders,
		bus:     bus,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Dispatch publishes the event on the bus and, for human-relevant event
// types, sends a rendered message to every sender. It never returns an
// error; failures are logged.
func (d *Dispatcher) Dispatch(ctx context.Context, evt domain.Event) {
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		d.logger.ErrorContext(ctx, "marshal event failed",
			slog.String("type", string(evt.Type)),
			slog.String("error", err.Error()),
		)
		return
	}

	if d.bus != nil {
		channel := EventsChannel
		if evt.Type == domain.EventPriceUpdate {
			channel = PricesChannel
		}
		if err := d.bus.Publish(ctx, channel, payload); err != nil {
			d.logger.WarnContext(ctx, "bus publish failed",
				slog.String("channel", channel),
				slog.String("type", string(evt.Type)),
				slog.String("error", err.Error()),
			)
		}
	}

	// Price ticks are machine traffic; don't page humans about them.
	if evt.Type == domain.EventPriceUpdate {
		return
	}

	title, message := render(evt)
	for _, s := range d.senders {
		if err := s.Send(ctx, title, message); err != nil {
			d.logger.WarnContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("type", string(evt.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// render turns an event into a short human-readable title and body.
func render(evt domain.Event) (string, string) {
	switch evt.Type {
	case domain.EventWinPayout:
		return "Payout", fmt.Sprintf("user %s won %v points on market %s",
			evt.UserID, evt.Payload["amount"], evt.MarketID)
	case domain.EventMarketResolved:
		return "Market resolved", fmt.Sprintf("market %s resolved (%v winners, pool %v)",
			evt.MarketID, evt.Payload["winners"], evt.Payload["total_pool"])
	case domain.EventMarketCancelled:
		return "Market cancelled", fmt.Sprintf("market %s cancelled, stakes refunded", evt.MarketID)
	case domain.EventMonthlyWinner:
		return "Cycle winner", fmt.Sprintf("user %s won the cycle in arena %s with %v points",
			evt.UserID, evt.ArenaID, evt.Payload["score"])
	default:
		return string(evt.Type), fmt.Sprintf("%v", evt.Payload)
	}
}
