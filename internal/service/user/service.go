package user

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mlavigne/notify-api/internal/model"
	"github.com/mlavigne/notify-api/internal/repository"
	apperrors "github.com/mlavigne/notify-api/pkg/errors"
	"github.com/mlavigne/notify-api/pkg/logger"
)

var birthdateLayouts = []string{"2006-01-02", time.RFC3339}

type Servicer interface {
	Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error)
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*model.User, error)
	ListByGroup(ctx context.Context, group model.Group) ([]*model.User, error)
	Update(ctx context.Context, id uuid.UUID, req *model.UpdateUserRequest) (*model.User, error)
	SetProfilePicture(ctx context.Context, id uuid.UUID, path string) (*model.User, error)
	ClearDeviceID(ctx context.Context, id uuid.UUID) (*model.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo   repository.UserRepository
	logger *logger.Logger
	now    func() time.Time
}

func NewService(repo repository.UserRepository, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log,
		now:    time.Now,
	}
}

// Create registers a member. Age is derived from the birthdate and the
// group from the age; both are recomputed on every later save.
func (s *Service) Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	birthdate, err := parseBirthdate(req.Birthdate)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Birthdate:      birthdate,
		DeviceID:       req.DeviceID,
		Phone:          req.Phone,
		ProfilePicture: model.DefaultProfilePicture,
	}
	user.Refresh(s.now())

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		"user_id", user.ID.String(),
		"age", user.Age,
		"group", user.Group)

	return user, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByDeviceID(ctx context.Context, deviceID string) (*model.User, error) {
	return s.repo.GetByDeviceID(ctx, deviceID)
}

func (s *Service) ListByGroup(ctx context.Context, group model.Group) ([]*model.User, error) {
	return s.repo.ListByGroup(ctx, group)
}

// Update applies profile changes. A birthdate change recomputes age and
// group so the stored group always matches the current age.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdateUserRequest) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.Birthdate != nil {
		birthdate, err := parseBirthdate(*req.Birthdate)
		if err != nil {
			return nil, err
		}
		user.Birthdate = birthdate
	}
	user.Refresh(s.now())

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) SetProfilePicture(ctx context.Context, id uuid.UUID, path string) (*model.User, error) {
	if err := s.repo.SetProfilePicture(ctx, id, path); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// ClearDeviceID detaches the device binding on logout. The user record
// survives; only the passwordless re-identification is dropped.
func (s *Service) ClearDeviceID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if err := s.repo.ClearDeviceID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("user deleted", "user_id", id.String())
	return nil
}

func parseBirthdate(raw string) (time.Time, error) {
	for _, layout := range birthdateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperrors.Validation("birthdate must be a date (2006-01-02)", nil)
}
