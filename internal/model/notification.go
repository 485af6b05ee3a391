package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ResponseValue is a user's reply to an interactive notification.
type ResponseValue string

const (
	ResponseAvailable   ResponseValue = "available"
	ResponseUnavailable ResponseValue = "unavailable"
)

func (v ResponseValue) Valid() bool {
	return v == ResponseAvailable || v == ResponseUnavailable
}

// Groups is a set of target group labels stored as a Postgres text array.
type Groups []Group

func (g Groups) Value() (driver.Value, error) {
	ss := make(pq.StringArray, len(g))
	for i, group := range g {
		ss[i] = string(group)
	}
	return ss.Value()
}

func (g *Groups) Scan(src interface{}) error {
	var ss pq.StringArray
	if err := ss.Scan(src); err != nil {
		return err
	}
	groups := make(Groups, len(ss))
	for i, s := range ss {
		groups[i] = Group(s)
	}
	*g = groups
	return nil
}

// Notification is an announcement targeted at one or more groups. A record
// with a future scheduledFor and a null sentAt is pending; the scheduling
// engine transitions it to sent exactly once.
type Notification struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	Title         string         `json:"title" db:"title"`
	Message       string         `json:"message" db:"message"`
	TargetGroups  Groups         `json:"targetGroups" db:"target_groups"`
	MediaPaths    pq.StringArray `json:"mediaPaths" db:"media_paths"`
	IsInteractive bool           `json:"isInteractive" db:"is_interactive"`
	ScheduledFor  *time.Time     `json:"scheduledFor" db:"scheduled_for"`
	SentAt        *time.Time     `json:"sentAt" db:"sent_at"`
	CreatedAt     time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time      `json:"updatedAt" db:"updated_at"`

	// InterestedCount is recomputed on every read, never stored.
	InterestedCount int `json:"interestedCount" db:"interested_count"`

	Responses []*NotificationResponse `json:"responses,omitempty" db:"-"`
}

// Pending reports whether the notification still awaits its deferred send.
func (n *Notification) Pending() bool {
	return n.ScheduledFor != nil && n.SentAt == nil
}

// NotificationResponse records a single user's reply. The (notification,
// user) pair is unique; a second reply overwrites the first.
type NotificationResponse struct {
	NotificationID uuid.UUID     `json:"notificationId" db:"notification_id"`
	UserID         uuid.UUID     `json:"userId" db:"user_id"`
	Response       ResponseValue `json:"response" db:"response"`
	CreatedAt      time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time     `json:"updatedAt" db:"updated_at"`
}

// SentEvent is published on the delivery-log channel when a notification
// fires. Real push delivery is out of scope; observers subscribe to this.
type SentEvent struct {
	NotificationID uuid.UUID  `json:"notificationId"`
	Title          string     `json:"title"`
	TargetGroups   Groups     `json:"targetGroups"`
	ScheduledFor   *time.Time `json:"scheduledFor,omitempty"`
	SentAt         time.Time  `json:"sentAt"`
}

// CreateNotificationRequest carries the multipart form fields of the admin
// send endpoint. Target groups arrive either as a repeated field or as a
// single comma-joined string.
type CreateNotificationRequest struct {
	Title         string   `form:"title" binding:"required"`
	Message       string   `form:"message" binding:"required"`
	TargetGroups  []string `form:"targetGroups" binding:"required,min=1"`
	IsInteractive bool     `form:"isInteractive"`
	ScheduledFor  string   `form:"scheduledFor"`
}

// RespondRequest carries a user's reply to an interactive notification.
type RespondRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Response string `json:"response" binding:"required"`
}

// PhotoEntry is the flattened media listing served to gallery clients.
type PhotoEntry struct {
	MediaPaths   pq.StringArray `json:"mediaPaths"`
	TargetGroups Groups         `json:"targetGroups"`
	SentAt       *time.Time     `json:"sentAt,omitempty"`
}
