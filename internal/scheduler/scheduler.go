package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mlavigne/notify-api/internal/model"
	"github.com/mlavigne/notify-api/internal/repository"
	apperrors "github.com/mlavigne/notify-api/pkg/errors"
	"github.com/mlavigne/notify-api/pkg/logger"
	"github.com/mlavigne/notify-api/pkg/messaging"
	"github.com/mlavigne/notify-api/pkg/metrics"
)

// DeliveryChannel is where fired notifications are announced. Nothing in
// this process consumes it; real delivery is an external concern.
const DeliveryChannel = "notifications.sent"

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 5 * time.Second
)

type Config struct {
	RetryAttempts int
	RetryDelay    time.Duration
}

// job is the handle for one registered deferred send. The callback
// identifies its own registration by this handle, never by the timer
// pointer, so it needs no ordering with the timer's assignment.
type job struct {
	timer *time.Timer
}

// Engine owns the map from notification id to its one-shot deferred send.
// No other component touches the job table. Each registered job fires
// independently; the only cross-job state is the map itself.
type Engine struct {
	repo    repository.NotificationRepository
	broker  messaging.Broker
	logger  *logger.Logger
	metrics *metrics.Metrics

	retryAttempts int
	retryDelay    time.Duration
	now           func() time.Time

	mu     sync.Mutex
	timers map[uuid.UUID]*job
}

func NewEngine(repo repository.NotificationRepository, broker messaging.Broker, log *logger.Logger, m *metrics.Metrics, cfg Config) *Engine {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	return &Engine{
		repo:          repo,
		broker:        broker,
		logger:        log,
		metrics:       m,
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		now:           time.Now,
		timers:        make(map[uuid.UUID]*job),
	}
}

// Schedule registers a one-shot deferred send for the notification. It is a
// no-op when scheduledFor is absent or not strictly in the future (such a
// record is already sent). Registering twice for the same id replaces the
// earlier registration.
func (e *Engine) Schedule(n *model.Notification) {
	if n.ScheduledFor == nil {
		return
	}

	delay := n.ScheduledFor.Sub(e.now())
	if delay <= 0 {
		return
	}

	id := n.ID
	scheduledFor := *n.ScheduledFor

	e.mu.Lock()
	if prev, ok := e.timers[id]; ok {
		prev.timer.Stop()
	}
	// The callback takes the lock before touching the map, so registration
	// completes first even when the delay is tiny.
	j := &job{}
	j.timer = time.AfterFunc(delay, func() {
		e.unregister(id, j)
		e.fire(id, scheduledFor)
	})
	e.timers[id] = j
	e.updateGaugeLocked()
	e.mu.Unlock()

	e.logger.Info("notification scheduled",
		"notification_id", id.String(),
		"scheduled_for", scheduledFor.Format(time.RFC3339))
}

// RecoverPending re-derives the job table from persisted state. Records
// still future-dated are re-registered; records whose scheduled time
// elapsed while the process was down are fired immediately, keeping the
// original scheduledFor for audit and recording the actual send time.
func (e *Engine) RecoverPending(ctx context.Context) error {
	pending, err := e.repo.ListPending(ctx)
	if err != nil {
		return err
	}

	now := e.now()
	for _, n := range pending {
		if e.metrics != nil {
			e.metrics.JobsRecovered.Inc()
		}
		if n.ScheduledFor.After(now) {
			e.Schedule(n)
			continue
		}

		e.logger.Warn("scheduled time elapsed while down, firing now",
			"notification_id", n.ID.String(),
			"scheduled_for", n.ScheduledFor.Format(time.RFC3339))
		go e.fire(n.ID, *n.ScheduledFor)
	}

	e.logger.Info("pending notifications recovered", "count", len(pending))
	return nil
}

// Stop cancels every registered timer. Jobs that were due remain pending in
// the store and are picked up by RecoverPending on the next start.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, j := range e.timers {
		j.timer.Stop()
		delete(e.timers, id)
	}
	e.updateGaugeLocked()
}

// PendingJobs returns the number of registered deferred sends.
func (e *Engine) PendingJobs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}

func (e *Engine) unregister(id uuid.UUID, j *job) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// A replacement may already have been registered; only remove our own
	// handle.
	if cur, ok := e.timers[id]; ok && cur == j {
		delete(e.timers, id)
		e.updateGaugeLocked()
	}
}

// fire transitions the record to sent and announces it on the delivery
// channel. MarkSent never overwrites an existing sentAt, so a duplicate
// registration or a concurrent instance firing the same record degrades to
// a no-op here.
func (e *Engine) fire(id uuid.UUID, scheduledFor time.Time) {
	ctx := context.Background()

	var obs *prometheus.Timer
	if e.metrics != nil {
		obs = prometheus.NewTimer(e.metrics.FireLatency)
		defer obs.ObserveDuration()
	}

	sentAt := e.now()
	transitioned, err := e.repo.MarkSent(ctx, id, sentAt)
	for attempt := 1; err != nil && !apperrors.IsNotFound(err) && attempt < e.retryAttempts; attempt++ {
		if e.metrics != nil {
			e.metrics.FireRetries.Inc()
		}
		e.logger.Warn("send transition failed, retrying",
			"notification_id", id.String(), "attempt", attempt)
		time.Sleep(e.retryDelay * time.Duration(attempt))
		transitioned, err = e.repo.MarkSent(ctx, id, sentAt)
	}

	if err != nil {
		// The job stays pending with an elapsed scheduledFor; the next
		// RecoverPending pass picks it up again.
		if e.metrics != nil {
			e.metrics.FireFailures.Inc()
		}
		e.logger.Error(err, "scheduled send failed permanently",
			"notification_id", id.String())
		return
	}

	if !transitioned {
		e.logger.Debug("notification already sent, skipping fire",
			"notification_id", id.String())
		return
	}

	if e.metrics != nil {
		e.metrics.JobsFired.Inc()
	}

	n, err := e.repo.Get(ctx, id)
	if err != nil {
		e.logger.Error(err, "failed to reload sent notification",
			"notification_id", id.String())
		return
	}

	e.logger.Info("notification sent",
		"notification_id", id.String(),
		"title", n.Title,
		"target_groups", n.TargetGroups)

	e.publishSent(ctx, n, scheduledFor, sentAt)
}

func (e *Engine) publishSent(ctx context.Context, n *model.Notification, scheduledFor, sentAt time.Time) {
	if e.broker == nil {
		return
	}

	event := &model.SentEvent{
		NotificationID: n.ID,
		Title:          n.Title,
		TargetGroups:   n.TargetGroups,
		ScheduledFor:   &scheduledFor,
		SentAt:         sentAt,
	}

	// The delivery log is best effort; a broker outage never fails the send.
	if err := e.broker.Publish(ctx, DeliveryChannel, event); err != nil {
		if e.metrics != nil {
			e.metrics.DeliveryEventsFailed.Inc()
		}
		e.logger.Error(err, "failed to publish delivery event",
			"notification_id", n.ID.String())
		return
	}

	if e.metrics != nil {
		e.metrics.DeliveryEventsPublished.Inc()
	}
}

func (e *Engine) updateGaugeLocked() {
	if e.metrics != nil {
		e.metrics.JobsPending.Set(float64(len(e.timers)))
	}
}
