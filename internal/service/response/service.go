package response

import (
	"context"

	"github.com/google/uuid"

	"github.com/mlavigne/notify-api/internal/model"
	"github.com/mlavigne/notify-api/internal/repository"
	apperrors "github.com/mlavigne/notify-api/pkg/errors"
)

type Servicer interface {
	Respond(ctx context.Context, notificationID, userID uuid.UUID, value model.ResponseValue) (*model.Notification, error)
	ListInterested(ctx context.Context, notificationID uuid.UUID) ([]*model.User, error)
}

// Service records user replies to interactive notifications. The upsert is
// keyed by (notification, user): a second reply overwrites the first and
// the mapping never holds two entries for the same user.
type Service struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
}

func NewService(notifications repository.NotificationRepository, users repository.UserRepository) *Service {
	return &Service{
		notifications: notifications,
		users:         users,
	}
}

func (s *Service) Respond(ctx context.Context, notificationID, userID uuid.UUID, value model.ResponseValue) (*model.Notification, error) {
	if !value.Valid() {
		return nil, apperrors.Validation("response must be available or unavailable", nil)
	}

	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.notifications.Get(ctx, notificationID); err != nil {
		return nil, err
	}

	resp := &model.NotificationResponse{
		NotificationID: notificationID,
		UserID:         userID,
		Response:       value,
	}
	if err := s.notifications.UpsertResponse(ctx, resp); err != nil {
		return nil, err
	}

	return s.notifications.Get(ctx, notificationID)
}

func (s *Service) ListInterested(ctx context.Context, notificationID uuid.UUID) ([]*model.User, error) {
	if _, err := s.notifications.Get(ctx, notificationID); err != nil {
		return nil, err
	}
	return s.notifications.ListInterested(ctx, notificationID)
}

// InterestedCount tallies available replies. It is derived on every read so
// the count can never go stale.
func InterestedCount(n *model.Notification) int {
	count := 0
	for _, r := range n.Responses {
		if r.Response == model.ResponseAvailable {
			count++
		}
	}
	return count
}
