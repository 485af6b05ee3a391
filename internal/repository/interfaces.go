package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mlavigne/notify-api/internal/model"
)

// NotificationRepository persists notifications, their targeting and their
// response sub-records.
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)

	// List returns notifications most-recent-sentAt first, each annotated
	// with its interested count; group filters by targeting when non-nil.
	List(ctx context.Context, group *model.Group) ([]*model.Notification, error)

	// ListPending returns every record with a scheduledFor and a null
	// sentAt, regardless of whether the scheduled time has elapsed. The
	// scheduling engine decides what to do with overdue ones.
	ListPending(ctx context.Context) ([]*model.Notification, error)

	// ListWithMedia returns records whose media list is non-empty.
	ListWithMedia(ctx context.Context, group *model.Group) ([]*model.Notification, error)

	// MarkSent transitions a pending record to sent. It never overwrites an
	// existing sentAt: the bool is false when the record was already sent.
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) (bool, error)

	// UpsertResponse inserts or overwrites the (notification, user) reply
	// atomically; two concurrent upserts for distinct users both survive.
	UpsertResponse(ctx context.Context, r *model.NotificationResponse) error

	// ListInterested returns the users whose recorded reply is available.
	ListInterested(ctx context.Context, id uuid.UUID) ([]*model.User, error)
}

// UserRepository persists members and their device bindings.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*model.User, error)
	ListByGroup(ctx context.Context, group model.Group) ([]*model.User, error)
	Update(ctx context.Context, user *model.User) error
	SetProfilePicture(ctx context.Context, id uuid.UUID, path string) error
	ClearDeviceID(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}
