package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes freshness signals when a host's bookable time changes.
// Admin consoles subscribed to the host's channel re-fetch slots on receipt;
// the message carries no schedule data, only the fact that it went stale.
type Notifier struct {
	client *redis.Client
	logger *slog.Logger
}

func NewNotifier(client *redis.Client, logger *slog.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

func channelFor(hostID string) string {
	return "availability:changed:" + hostID
}

// AvailabilityChanged signals subscribers for the host. Publishing is best
// effort: a Redis outage costs staleness until the next poll, never
// correctness, so errors are logged and swallowed.
func (n *Notifier) AvailabilityChanged(ctx context.Context, hostID string) {
	if n.client == nil {
		return
	}
	if err := n.client.Publish(ctx, channelFor(hostID), time.Now().UTC().Format(time.RFC3339)).Err(); err != nil {
		n.logger.Warn("availability change publish failed", "host_id", hostID, "err", err)
	}
}

func ReadyCheck(client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if client == nil {
			return nil
		}
		return client.Ping(ctx).Err()
	}
}
