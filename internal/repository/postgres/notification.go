package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/mlavigne/notify-api/internal/model"
	"github.com/mlavigne/notify-api/internal/repository"
	apperrors "github.com/mlavigne/notify-api/pkg/errors"
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

const interestedCountExpr = `(
		SELECT COUNT(*) FROM notification_responses r
		WHERE r.notification_id = n.id AND r.response = 'available'
	) AS interested_count`

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, title, message, target_groups, media_paths,
			is_interactive, scheduled_for, sent_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt

	// A nil slice would bind as SQL NULL; the column is NOT NULL.
	if n.MediaPaths == nil {
		n.MediaPaths = pq.StringArray{}
	}

	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.Title,
		n.Message,
		n.TargetGroups,
		n.MediaPaths,
		n.IsInteractive,
		n.ScheduledFor,
		n.SentAt,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// Get loads the record together with its responses inside one transaction,
// so the responses always belong to the returned snapshot.
func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	query := `SELECT n.*, ` + interestedCountExpr + ` FROM notifications n WHERE n.id = $1`
	responsesQuery := `
		SELECT * FROM notification_responses
		WHERE notification_id = $1
		ORDER BY created_at
	`

	var n model.Notification
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &n, query, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NotFound("notification", err)
			}
			return fmt.Errorf("failed to get notification: %w", err)
		}

		if err := tx.SelectContext(ctx, &n.Responses, responsesQuery, id); err != nil {
			return fmt.Errorf("failed to list responses: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &n, nil
}

func (r *notificationRepository) List(ctx context.Context, group *model.Group) ([]*model.Notification, error) {
	query := `SELECT n.*, ` + interestedCountExpr + ` FROM notifications n`
	args := []interface{}{}

	if group != nil {
		query += ` WHERE $1 = ANY(n.target_groups)`
		args = append(args, string(*group))
	}
	query += ` ORDER BY n.sent_at DESC NULLS LAST, n.created_at DESC`

	var notifications []*model.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return notifications, nil
}

func (r *notificationRepository) ListPending(ctx context.Context) ([]*model.Notification, error) {
	query := `
		SELECT n.* FROM notifications n
		WHERE n.scheduled_for IS NOT NULL AND n.sent_at IS NULL
		ORDER BY n.scheduled_for
	`

	var notifications []*model.Notification
	if err := r.db.SelectContext(ctx, &notifications, query); err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}

	return notifications, nil
}

func (r *notificationRepository) ListWithMedia(ctx context.Context, group *model.Group) ([]*model.Notification, error) {
	query := `
		SELECT n.*, ` + interestedCountExpr + `
		FROM notifications n
		WHERE cardinality(n.media_paths) > 0
	`
	args := []interface{}{}

	if group != nil {
		query += ` AND $1 = ANY(n.target_groups)`
		args = append(args, string(*group))
	}
	query += ` ORDER BY n.sent_at DESC NULLS LAST, n.created_at DESC`

	var notifications []*model.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list notifications with media: %w", err)
	}

	return notifications, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) (bool, error) {
	query := `
		UPDATE notifications SET sent_at = $2, updated_at = $2
		WHERE id = $1 AND sent_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, sentAt)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification sent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return true, nil
	}

	// Either the record is already sent or it does not exist.
	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("failed to check notification existence: %w", err)
	}
	if !exists {
		return false, apperrors.NotFound("notification", sql.ErrNoRows)
	}

	return false, nil
}

func (r *notificationRepository) UpsertResponse(ctx context.Context, resp *model.NotificationResponse) error {
	query := `
		INSERT INTO notification_responses (
			notification_id, user_id, response, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (notification_id, user_id)
		DO UPDATE SET response = EXCLUDED.response, updated_at = EXCLUDED.updated_at
	`

	now := time.Now()
	resp.CreatedAt = now
	resp.UpdatedAt = now

	if _, err := r.db.ExecContext(ctx, query,
		resp.NotificationID,
		resp.UserID,
		resp.Response,
		now,
	); err != nil {
		if pgErrCode(err) == codeForeignKeyViolation {
			return apperrors.NotFound(violatedParent(err), err)
		}
		return fmt.Errorf("failed to upsert response: %w", err)
	}

	return nil
}

// violatedParent names the missing parent row from the violated foreign-key
// constraint: the user reference or, failing that, the notification.
func violatedParent(err error) string {
	if strings.Contains(pgConstraint(err), "user") {
		return "user"
	}
	return "notification"
}

func (r *notificationRepository) ListInterested(ctx context.Context, id uuid.UUID) ([]*model.User, error) {
	query := `
		SELECT u.* FROM users u
		JOIN notification_responses r ON r.user_id = u.id
		WHERE r.notification_id = $1 AND r.response = 'available'
		ORDER BY u.last_name, u.first_name
	`

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, id); err != nil {
		return nil, fmt.Errorf("failed to list interested users: %w", err)
	}

	return users, nil
}
