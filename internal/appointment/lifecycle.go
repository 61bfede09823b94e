package appointment

import (
	"errors"
	"time"

	"github.com/ayesh20/Clinic-backend/internal/auth"
)

var (
	ErrUnknownStatus     = errors.New("unknown appointment status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ParseStatus validates a raw status string against the closed status set.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return s, nil
	}
	return "", ErrUnknownStatus
}

// transitions is the full lifecycle: pending and confirmed are the only
// live states; completed, cancelled and no-show are terminal. Each edge
// carries the roles allowed to drive it.
var transitions = map[Status]map[Status][]auth.Role{
	StatusPending: {
		StatusConfirmed: {auth.RoleDoctor, auth.RoleAdmin},
		StatusCompleted: {auth.RoleDoctor, auth.RoleAdmin},
		StatusNoShow:    {auth.RoleDoctor, auth.RoleAdmin},
		StatusCancelled: {auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin},
	},
	StatusConfirmed: {
		StatusCompleted: {auth.RoleDoctor, auth.RoleAdmin},
		StatusNoShow:    {auth.RoleDoctor, auth.RoleAdmin},
		StatusCancelled: {auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin},
	},
}

// CanTransition reports whether the edge from -> to exists at all,
// regardless of actor.
func CanTransition(from, to Status) bool {
	_, ok := transitions[from][to]
	return ok
}

// ValidateTransition checks both the edge and the acting role.
func ValidateTransition(from, to Status, role auth.Role) error {
	roles, ok := transitions[from][to]
	if !ok {
		return ErrInvalidTransition
	}
	for _, r := range roles {
		if r == role {
			return nil
		}
	}
	return ErrInvalidTransition
}

// IsTerminal reports whether no further transitions are possible.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// CanBeCancelled is true only while the appointment is strictly in the
// future and still pending or confirmed.
func (a *Appointment) CanBeCancelled(now time.Time) bool {
	if !a.AppointmentDate.After(now) {
		return false
	}
	return a.Status == StatusPending || a.Status == StatusConfirmed
}
