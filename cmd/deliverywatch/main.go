// Command deliverywatch tails the delivery-log channel and prints every
// notification the scheduler announces. It is an operator's tool: the
// platform itself never consumes the channel.
package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlavigne/notify-api/internal/config"
	"github.com/mlavigne/notify-api/internal/model"
	"github.com/mlavigne/notify-api/internal/scheduler"
	"github.com/mlavigne/notify-api/pkg/messaging/redis"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	zl := log.Logger
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     2,
		MinIdleConns: 1,
	}, &zl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	messages, err := broker.Subscribe(ctx, scheduler.DeliveryChannel)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to delivery channel")
	}
	log.Info().Str("channel", scheduler.DeliveryChannel).Msg("watching delivery log")

	for payload := range messages {
		var event model.SentEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Warn().Err(err).Msg("unreadable delivery event")
			continue
		}

		entry := log.Info().
			Str("notification_id", event.NotificationID.String()).
			Str("title", event.Title).
			Interface("target_groups", event.TargetGroups).
			Time("sent_at", event.SentAt)
		if event.ScheduledFor != nil {
			entry = entry.Time("scheduled_for", *event.ScheduledFor)
		}
		entry.Msg("notification delivered")
	}
}
