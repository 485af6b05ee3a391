package notification

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mlavigne/notify-api/internal/model"
	"github.com/mlavigne/notify-api/internal/repository"
	apperrors "github.com/mlavigne/notify-api/pkg/errors"
	"github.com/mlavigne/notify-api/pkg/logger"
)

// Scheduler registers a deferred send for a future-dated notification.
type Scheduler interface {
	Schedule(n *model.Notification)
}

type Servicer interface {
	Create(ctx context.Context, req *model.CreateNotificationRequest, mediaPaths []string) (*model.Notification, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	List(ctx context.Context, group *model.Group) ([]*model.Notification, error)
	ListPhotos(ctx context.Context, group *model.Group) ([]*model.PhotoEntry, error)
	ListPhotosForUser(ctx context.Context, userID uuid.UUID) ([]*model.PhotoEntry, error)
}

type Service struct {
	repo      repository.NotificationRepository
	users     repository.UserRepository
	scheduler Scheduler
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(repo repository.NotificationRepository, users repository.UserRepository, scheduler Scheduler, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		users:     users,
		scheduler: scheduler,
		logger:    log,
		now:       time.Now,
	}
}

// Create validates the request, persists the record and hands future-dated
// ones to the scheduler. Validation happens before any store write; a
// failed request leaves nothing behind.
func (s *Service) Create(ctx context.Context, req *model.CreateNotificationRequest, mediaPaths []string) (*model.Notification, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Message) == "" {
		return nil, apperrors.Validation("title and message are required", nil)
	}

	groups, err := normalizeGroups(req.TargetGroups)
	if err != nil {
		return nil, err
	}

	var scheduledFor *time.Time
	if req.ScheduledFor != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledFor)
		if err != nil {
			return nil, apperrors.Validation("scheduledFor must be an RFC 3339 timestamp", err)
		}
		scheduledFor = &t
	}

	// Media is optional; an empty list must stay an array, not SQL NULL.
	media := pq.StringArray(mediaPaths)
	if media == nil {
		media = pq.StringArray{}
	}

	n := &model.Notification{
		Title:         req.Title,
		Message:       req.Message,
		TargetGroups:  groups,
		MediaPaths:    media,
		IsInteractive: req.IsInteractive,
		ScheduledFor:  scheduledFor,
	}

	// A record without a strictly future scheduledFor is sent immediately.
	now := s.now()
	if scheduledFor == nil || !scheduledFor.After(now) {
		n.SentAt = &now
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if n.Pending() {
		s.scheduler.Schedule(n)
	} else {
		s.logger.Info("notification sent",
			"notification_id", n.ID.String(),
			"title", n.Title,
			"target_groups", n.TargetGroups)
	}

	return n, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, group *model.Group) ([]*model.Notification, error) {
	return s.repo.List(ctx, group)
}

func (s *Service) ListPhotos(ctx context.Context, group *model.Group) ([]*model.PhotoEntry, error) {
	notifications, err := s.repo.ListWithMedia(ctx, group)
	if err != nil {
		return nil, err
	}
	return toPhotoEntries(notifications), nil
}

// ListPhotosForUser resolves the user's group and returns the media
// targeted at it. A user without a group sees an empty gallery.
func (s *Service) ListPhotosForUser(ctx context.Context, userID uuid.UUID) ([]*model.PhotoEntry, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.Group == nil {
		return []*model.PhotoEntry{}, nil
	}

	notifications, err := s.repo.ListWithMedia(ctx, user.Group)
	if err != nil {
		return nil, err
	}
	return toPhotoEntries(notifications), nil
}

// normalizeGroups expands comma-joined labels and checks every element
// against the closed enumeration.
func normalizeGroups(raw []string) (model.Groups, error) {
	var groups model.Groups
	for _, entry := range raw {
		for _, label := range strings.Split(entry, ",") {
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			g, ok := model.ParseGroup(label)
			if !ok {
				return nil, apperrors.Validation("invalid target groups", nil)
			}
			groups = append(groups, g)
		}
	}

	if len(groups) == 0 {
		return nil, apperrors.Validation("at least one target group is required", nil)
	}
	return groups, nil
}

func toPhotoEntries(notifications []*model.Notification) []*model.PhotoEntry {
	entries := make([]*model.PhotoEntry, 0, len(notifications))
	for _, n := range notifications {
		entries = append(entries, &model.PhotoEntry{
			MediaPaths:   n.MediaPaths,
			TargetGroups: n.TargetGroups,
			SentAt:       n.SentAt,
		})
	}
	return entries
}
