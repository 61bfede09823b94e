package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ayesh20/Clinic-backend/internal/auth"
)

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"pending", "confirmed", "completed", "cancelled", "no-show"} {
		s, err := ParseStatus(raw)
		assert.NoError(t, err)
		assert.Equal(t, Status(raw), s)
	}

	for _, raw := range []string{"", "Pending", "noshow", "expired", "done"} {
		_, err := ParseStatus(raw)
		assert.ErrorIs(t, err, ErrUnknownStatus, "raw=%q", raw)
	}
}

func TestTransitionTable(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCompleted},
		{StatusPending, StatusNoShow},
		{StatusPending, StatusCancelled},
		{StatusConfirmed, StatusCompleted},
		{StatusConfirmed, StatusNoShow},
		{StatusConfirmed, StatusCancelled},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr.from, tr.to), "%s -> %s should be allowed", tr.from, tr.to)
	}

	forbidden := []struct{ from, to Status }{
		{StatusCompleted, StatusPending},
		{StatusCompleted, StatusConfirmed},
		{StatusCancelled, StatusPending},
		{StatusCancelled, StatusConfirmed},
		{StatusNoShow, StatusCompleted},
		{StatusConfirmed, StatusPending},
		{StatusPending, StatusPending},
	}
	for _, tr := range forbidden {
		assert.False(t, CanTransition(tr.from, tr.to), "%s -> %s should be rejected", tr.from, tr.to)
	}
}

func TestValidateTransitionActors(t *testing.T) {
	// A patient may cancel but not confirm or complete.
	assert.NoError(t, ValidateTransition(StatusPending, StatusCancelled, auth.RolePatient))
	assert.ErrorIs(t, ValidateTransition(StatusPending, StatusConfirmed, auth.RolePatient), ErrInvalidTransition)
	assert.ErrorIs(t, ValidateTransition(StatusConfirmed, StatusCompleted, auth.RolePatient), ErrInvalidTransition)

	assert.NoError(t, ValidateTransition(StatusPending, StatusConfirmed, auth.RoleDoctor))
	assert.NoError(t, ValidateTransition(StatusConfirmed, StatusNoShow, auth.RoleAdmin))
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(StatusPending))
	assert.False(t, IsTerminal(StatusConfirmed))
	assert.True(t, IsTerminal(StatusCompleted))
	assert.True(t, IsTerminal(StatusCancelled))
	assert.True(t, IsTerminal(StatusNoShow))
}

func TestCanBeCancelled(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	tomorrow := now.AddDate(0, 0, 1)
	yesterday := now.AddDate(0, 0, -1)

	tests := []struct {
		name   string
		date   time.Time
		status Status
		want   bool
	}{
		{"future pending", tomorrow, StatusPending, true},
		{"future confirmed", tomorrow, StatusConfirmed, true},
		{"future completed", tomorrow, StatusCompleted, false},
		{"future cancelled", tomorrow, StatusCancelled, false},
		{"past pending", yesterday, StatusPending, false},
		{"past confirmed", yesterday, StatusConfirmed, false},
		{"exactly now", now, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Appointment{AppointmentDate: tt.date, Status: tt.status}
			assert.Equal(t, tt.want, a.CanBeCancelled(now))
		})
	}
}
