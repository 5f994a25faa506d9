package notify

import (
	"context"
	"log/slog"

	"github.com/donaldgifford/report-dispatch/internal/metrics"
	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// Router fans triggered alerts out to per-channel notifiers. An alert whose
// rule names several channels is sent once per channel; channels with no
// registered backend fall through to the fallback notifier.
type Router struct {
	channels map[string]Notifier
	fallback Notifier
	log      *slog.Logger
}

// NewRouter creates a Router. fallback handles alerts for unregistered
// channels and must not be nil.
func NewRouter(fallback Notifier, log *slog.Logger) *Router {
	return &Router{
		channels: make(map[string]Notifier),
		fallback: fallback,
		log:      log,
	}
}

// Register attaches a notifier to a channel name.
func (r *Router) Register(channel string, n Notifier) {
	r.channels[channel] = n
}

// Dispatch sends each alert to every channel its rule names. Send failures
// are logged and counted, never propagated; notification is best effort and
// the trigger history row already exists by the time Dispatch runs.
func (r *Router) Dispatch(ctx context.Context, alerts []domain.TriggeredAlert) {
	byChannel := make(map[string][]domain.TriggeredAlert)
	for _, alert := range alerts {
		for _, ch := range alert.Channels {
			byChannel[ch] = append(byChannel[ch], alert)
		}
	}

	for channel, group := range byChannel {
		n, ok := r.channels[channel]
		if !ok {
			n = r.fallback
		}

		var err error
		if len(group) == 1 {
			err = n.SendAlert(ctx, &group[0])
		} else {
			err = n.SendBatchAlert(ctx, group)
		}
		if err != nil {
			metrics.NotificationFailuresTotal.Inc()
			r.log.Error("alert notification failed",
				"channel", channel, "alerts", len(group), "error", err)
		}
	}
}
