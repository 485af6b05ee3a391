package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationPending(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)

	tests := []struct {
		name         string
		scheduledFor *time.Time
		sentAt       *time.Time
		pending      bool
	}{
		{"immediate send is never pending", nil, &now, false},
		{"scheduled and unsent is pending", &future, nil, true},
		{"scheduled and sent is not pending", &future, &now, false},
		{"no schedule and unsent is not pending", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Notification{ScheduledFor: tt.scheduledFor, SentAt: tt.sentAt}
			assert.Equal(t, tt.pending, n.Pending())
		})
	}
}

func TestResponseValueValid(t *testing.T) {
	assert.True(t, ResponseAvailable.Valid())
	assert.True(t, ResponseUnavailable.Valid())
	assert.False(t, ResponseValue("maybe").Valid())
	assert.False(t, ResponseValue("").Valid())
}

func TestGroupsRoundTrip(t *testing.T) {
	groups := Groups{GroupFamilles, GroupJeunesse}

	v, err := groups.Value()
	require.NoError(t, err)

	var scanned Groups
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, groups, scanned)
}

func TestUserRefresh(t *testing.T) {
	now := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	u := &User{Birthdate: time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC)}
	u.Refresh(now)
	assert.Equal(t, 14, u.Age)
	require.NotNil(t, u.Group)
	assert.Equal(t, GroupJeunesse, *u.Group)

	// A child under six loses any previously derived group.
	u.Birthdate = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	u.Refresh(now)
	assert.Equal(t, 4, u.Age)
	assert.Nil(t, u.Group)
}
