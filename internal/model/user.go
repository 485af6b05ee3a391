package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultProfilePicture is served when a member never uploaded one.
const DefaultProfilePicture = "/uploads/profile-pictures/default.png"

// User is an anonymous device-bound member. Age is derived from the
// birthdate on every save and the group always follows the current age.
type User struct {
	ID             uuid.UUID `json:"id" db:"id"`
	FirstName      string    `json:"firstName" db:"first_name"`
	LastName       string    `json:"lastName" db:"last_name"`
	Birthdate      time.Time `json:"birthdate" db:"birthdate"`
	Age            int       `json:"age" db:"age"`
	Group          *Group    `json:"group" db:"group_name"`
	DeviceID       *string   `json:"deviceId" db:"device_id"`
	Phone          *string   `json:"phone" db:"phone"`
	ProfilePicture string    `json:"profilePicture" db:"profile_picture"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// Refresh recomputes the derived age and group from the birthdate.
func (u *User) Refresh(now time.Time) {
	u.Age = AgeAt(u.Birthdate, now)
	if g, ok := GroupForAge(u.Age); ok {
		u.Group = &g
	} else {
		u.Group = nil
	}
}

// CreateUserRequest represents registration parameters. Birthdate accepts
// either RFC 3339 or a plain 2006-01-02 date.
type CreateUserRequest struct {
	FirstName string  `json:"firstName" binding:"required"`
	LastName  string  `json:"lastName" binding:"required"`
	Birthdate string  `json:"birthdate" binding:"required"`
	DeviceID  *string `json:"deviceId"`
	Phone     *string `json:"phone"`
}

// UpdateUserRequest represents profile update parameters; nil fields are
// left untouched.
type UpdateUserRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Birthdate *string `json:"birthdate"`
	Phone     *string `json:"phone"`
}
