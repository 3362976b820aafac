package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const balanceEventsChannel = "balance-events"

// BalanceInvalidator fans balance-change events out across instances via a
// redis pub/sub channel. Every instance subscribes and turns received events
// into debounced local refreshes, so a write on one instance eventually
// refreshes cached summaries everywhere. With redis unavailable it degrades
// to local-only notification.
type BalanceInvalidator struct {
	redis    *redis.Client
	balances *BalanceService
}

// NewBalanceInvalidator wires the redis client (may be nil) to the balance
// service.
func NewBalanceInvalidator(client *redis.Client, balances *BalanceService) *BalanceInvalidator {
	return &BalanceInvalidator{redis: client, balances: balances}
}

// Publish announces that userID's balances may have moved. The local refresh
// happens via the subscription loop when redis is up, directly otherwise.
func (b *BalanceInvalidator) Publish(ctx context.Context, userID uuid.UUID) {
	if b.redis == nil {
		b.balances.NotifyBalanceChange(userID)
		return
	}
	if err := b.redis.Publish(ctx, balanceEventsChannel, userID.String()).Err(); err != nil {
		slog.Warn("balance event publish failed, refreshing locally", "user_id", userID, "error", err)
		b.balances.NotifyBalanceChange(userID)
	}
}

// Listen consumes balance-change events until ctx is cancelled. Run it in
// its own goroutine at startup; it returns immediately when redis is absent.
func (b *BalanceInvalidator) Listen(ctx context.Context) {
	if b.redis == nil {
		return
	}
	sub := b.redis.Subscribe(ctx, balanceEventsChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			userID, err := uuid.Parse(msg.Payload)
			if err != nil {
				slog.Warn("ignoring malformed balance event", "payload", msg.Payload)
				continue
			}
			b.balances.NotifyBalanceChange(userID)
		}
	}
}
