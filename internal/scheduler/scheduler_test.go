package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlavigne/notify-api/internal/model"
	apperrors "github.com/mlavigne/notify-api/pkg/errors"
	"github.com/mlavigne/notify-api/pkg/logger"
)

type fakeRepo struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]*model.Notification
	markSentErrs  int
	markSentCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{notifications: make(map[uuid.UUID]*model.Notification)}
}

func (r *fakeRepo) add(n *model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications[n.ID] = n
}

func (r *fakeRepo) sentAt(id uuid.UUID) *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.notifications[id]; ok {
		return n.SentAt
	}
	return nil
}

func (r *fakeRepo) Create(ctx context.Context, n *model.Notification) error {
	r.add(n)
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, apperrors.NotFound("notification", nil)
	}
	copied := *n
	return &copied, nil
}

func (r *fakeRepo) List(ctx context.Context, group *model.Group) ([]*model.Notification, error) {
	return nil, nil
}

func (r *fakeRepo) ListPending(ctx context.Context) ([]*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []*model.Notification
	for _, n := range r.notifications {
		if n.Pending() {
			copied := *n
			pending = append(pending, &copied)
		}
	}
	return pending, nil
}

func (r *fakeRepo) ListWithMedia(ctx context.Context, group *model.Group) ([]*model.Notification, error) {
	return nil, nil
}

func (r *fakeRepo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.markSentCalls++
	if r.markSentErrs > 0 {
		r.markSentErrs--
		return false, errors.New("connection reset")
	}

	n, ok := r.notifications[id]
	if !ok {
		return false, apperrors.NotFound("notification", nil)
	}
	if n.SentAt != nil {
		return false, nil
	}
	n.SentAt = &sentAt
	return true, nil
}

func (r *fakeRepo) UpsertResponse(ctx context.Context, resp *model.NotificationResponse) error {
	return nil
}

func (r *fakeRepo) ListInterested(ctx context.Context, id uuid.UUID) ([]*model.User, error) {
	return nil, nil
}

type fakeBroker struct {
	mu     sync.Mutex
	events []interface{}
}

func (b *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, message)
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (b *fakeBroker) Close() error { return nil }

func (b *fakeBroker) published() []interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]interface{}(nil), b.events...)
}

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func newTestEngine(repo *fakeRepo, broker *fakeBroker) *Engine {
	return NewEngine(repo, broker, testLogger(), nil, Config{
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	})
}

func scheduledNotification(scheduledFor time.Time) *model.Notification {
	return &model.Notification{
		ID:           uuid.New(),
		Title:        "Sortie vélo",
		Message:      "Rendez-vous samedi",
		TargetGroups: model.Groups{model.GroupJeunesse},
		ScheduledFor: &scheduledFor,
	}
}

func TestScheduleFiresAndMarksSent(t *testing.T) {
	repo := newFakeRepo()
	broker := &fakeBroker{}
	e := newTestEngine(repo, broker)
	defer e.Stop()

	n := scheduledNotification(time.Now().Add(20 * time.Millisecond))
	repo.add(n)

	e.Schedule(n)
	assert.Equal(t, 1, e.PendingJobs())

	require.Eventually(t, func() bool {
		return repo.sentAt(n.ID) != nil
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, e.PendingJobs())

	require.Eventually(t, func() bool {
		return len(broker.published()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	event, ok := broker.published()[0].(*model.SentEvent)
	require.True(t, ok)
	assert.Equal(t, n.ID, event.NotificationID)
	require.NotNil(t, event.ScheduledFor)
	assert.Equal(t, n.ScheduledFor.Unix(), event.ScheduledFor.Unix())
}

func TestScheduleIgnoresUnscheduledAndPast(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo, &fakeBroker{})
	defer e.Stop()

	e.Schedule(&model.Notification{ID: uuid.New()})
	assert.Equal(t, 0, e.PendingJobs())

	past := time.Now().Add(-time.Minute)
	e.Schedule(&model.Notification{ID: uuid.New(), ScheduledFor: &past})
	assert.Equal(t, 0, e.PendingJobs())
}

func TestScheduleReplacesEarlierRegistration(t *testing.T) {
	repo := newFakeRepo()
	broker := &fakeBroker{}
	e := newTestEngine(repo, broker)
	defer e.Stop()

	n := scheduledNotification(time.Now().Add(time.Hour))
	repo.add(n)
	e.Schedule(n)

	soon := time.Now().Add(20 * time.Millisecond)
	n.ScheduledFor = &soon
	repo.add(n)
	e.Schedule(n)
	assert.Equal(t, 1, e.PendingJobs())

	require.Eventually(t, func() bool {
		return repo.sentAt(n.ID) != nil
	}, 2*time.Second, 5*time.Millisecond)

	// The replaced timer never fires again.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, broker.published(), 1)
}

func TestScheduleTinyDelayUnregistersCleanly(t *testing.T) {
	repo := newFakeRepo()
	broker := &fakeBroker{}
	e := newTestEngine(repo, broker)
	defer e.Stop()

	// Freeze the clock so the delay is one nanosecond: the timer is due
	// before Schedule even returns.
	fixed := time.Now()
	e.now = func() time.Time { return fixed }

	n := scheduledNotification(fixed.Add(time.Nanosecond))
	repo.add(n)
	e.Schedule(n)

	require.Eventually(t, func() bool {
		return repo.sentAt(n.ID) != nil
	}, 2*time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		return e.PendingJobs() == 0
	}, 2*time.Second, time.Millisecond)
}

func TestRecoverPendingSchedulesFuture(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo, &fakeBroker{})
	defer e.Stop()

	n := scheduledNotification(time.Now().Add(time.Hour))
	repo.add(n)

	require.NoError(t, e.RecoverPending(context.Background()))
	assert.Equal(t, 1, e.PendingJobs())
	assert.Nil(t, repo.sentAt(n.ID))
}

func TestRecoverPendingFiresOverdueImmediately(t *testing.T) {
	repo := newFakeRepo()
	broker := &fakeBroker{}
	e := newTestEngine(repo, broker)
	defer e.Stop()

	overdue := scheduledNotification(time.Now().Add(-time.Hour))
	repo.add(overdue)

	require.NoError(t, e.RecoverPending(context.Background()))

	require.Eventually(t, func() bool {
		return repo.sentAt(overdue.ID) != nil
	}, 2*time.Second, 5*time.Millisecond)

	// The stale schedule is preserved; only sentAt records the actual time.
	require.Eventually(t, func() bool {
		return len(broker.published()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	event := broker.published()[0].(*model.SentEvent)
	require.NotNil(t, event.ScheduledFor)
	assert.Equal(t, overdue.ScheduledFor.Unix(), event.ScheduledFor.Unix())
	assert.True(t, event.SentAt.After(*event.ScheduledFor))
}

func TestFireSkipsAlreadySent(t *testing.T) {
	repo := newFakeRepo()
	broker := &fakeBroker{}
	e := newTestEngine(repo, broker)

	sentAt := time.Now()
	n := scheduledNotification(time.Now().Add(-time.Minute))
	n.SentAt = &sentAt
	repo.add(n)

	e.fire(n.ID, *n.ScheduledFor)

	assert.Empty(t, broker.published())
	assert.Equal(t, sentAt, *repo.sentAt(n.ID))
}

func TestFireRetriesTransientFailure(t *testing.T) {
	repo := newFakeRepo()
	broker := &fakeBroker{}
	e := newTestEngine(repo, broker)

	n := scheduledNotification(time.Now().Add(-time.Minute))
	repo.add(n)
	repo.markSentErrs = 2

	e.fire(n.ID, *n.ScheduledFor)

	assert.NotNil(t, repo.sentAt(n.ID))
	assert.Equal(t, 3, repo.markSentCalls)
	assert.Len(t, broker.published(), 1)
}

func TestFireGivesUpAfterRetries(t *testing.T) {
	repo := newFakeRepo()
	broker := &fakeBroker{}
	e := newTestEngine(repo, broker)

	n := scheduledNotification(time.Now().Add(-time.Minute))
	repo.add(n)
	repo.markSentErrs = 10

	e.fire(n.ID, *n.ScheduledFor)

	// Record stays pending; a later recovery pass will retry it.
	assert.Nil(t, repo.sentAt(n.ID))
	assert.Equal(t, 3, repo.markSentCalls)
	assert.Empty(t, broker.published())
}

func TestStopCancelsAllTimers(t *testing.T) {
	repo := newFakeRepo()
	broker := &fakeBroker{}
	e := newTestEngine(repo, broker)

	for i := 0; i < 3; i++ {
		n := scheduledNotification(time.Now().Add(time.Hour))
		repo.add(n)
		e.Schedule(n)
	}
	assert.Equal(t, 3, e.PendingJobs())

	e.Stop()
	assert.Equal(t, 0, e.PendingJobs())

	for id := range repo.notifications {
		assert.Nil(t, repo.sentAt(id))
	}
}
