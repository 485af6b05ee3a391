package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mlavigne/notify-api/internal/model"
	"github.com/mlavigne/notify-api/internal/repository"
	apperrors "github.com/mlavigne/notify-api/pkg/errors"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, first_name, last_name, birthdate, age, group_name,
			device_id, phone, profile_picture, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Birthdate,
		user.Age,
		user.Group,
		user.DeviceID,
		user.Phone,
		user.ProfilePicture,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if pgErrCode(err) == codeUniqueViolation {
			return apperrors.Conflict("device already registered", err)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("user", err)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (r *userRepository) GetByDeviceID(ctx context.Context, deviceID string) (*model.User, error) {
	query := `SELECT * FROM users WHERE device_id = $1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, deviceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("user", err)
		}
		return nil, fmt.Errorf("failed to get user by device id: %w", err)
	}

	return &user, nil
}

func (r *userRepository) ListByGroup(ctx context.Context, group model.Group) ([]*model.User, error) {
	query := `
		SELECT * FROM users
		WHERE group_name = $1
		ORDER BY last_name, first_name
	`

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, string(group)); err != nil {
		return nil, fmt.Errorf("failed to list users by group: %w", err)
	}

	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users SET
			first_name = $1,
			last_name = $2,
			birthdate = $3,
			age = $4,
			group_name = $5,
			phone = $6,
			updated_at = $7
		WHERE id = $8
	`

	user.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		user.FirstName,
		user.LastName,
		user.Birthdate,
		user.Age,
		user.Group,
		user.Phone,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return requireRow(result, "user")
}

func (r *userRepository) SetProfilePicture(ctx context.Context, id uuid.UUID, path string) error {
	query := `UPDATE users SET profile_picture = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, path, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set profile picture: %w", err)
	}

	return requireRow(result, "user")
}

func (r *userRepository) ClearDeviceID(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET device_id = NULL, updated_at = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to clear device id: %w", err)
	}

	return requireRow(result, "user")
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return requireRow(result, "user")
}

func requireRow(result sql.Result, resource string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound(resource, sql.ErrNoRows)
	}
	return nil
}
