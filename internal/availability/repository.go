package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("availability not found")
	ErrDoctorNotFound = errors.New("doctor not found")
	ErrSlotNotFound   = errors.New("time slot not found")
	ErrSlotTaken      = errors.New("time slot already booked")
	ErrHasBookedSlots = errors.New("availability has booked appointments")
	ErrInvalidRange   = errors.New("start date must be before or equal to end date")
	ErrNoSlots        = errors.New("at least one time slot is required")
)

// Repository contains all DB interactions needed by the store and the
// reservation service.
type Repository interface {
	// GetDoctorEmail resolves the email snapshot stored on new availability
	// records and doubles as the doctor existence check.
	GetDoctorEmail(ctx context.Context, doctorID uuid.UUID) (string, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Availability, error)
	GetIDForDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (uuid.UUID, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to *time.Time) ([]Availability, error)

	// Create inserts the availability and its slots in one transaction.
	Create(ctx context.Context, a *Availability) error
	// AppendSlots adds missing slot labels, leaving present ones (booked or
	// not) untouched. Returns how many labels were actually added.
	AppendSlots(ctx context.Context, availabilityID uuid.UUID, slots []string) (int, error)

	HasBookedSlots(ctx context.Context, availabilityID uuid.UUID) (bool, error)
	Delete(ctx context.Context, availabilityID uuid.UUID) error

	// BookSlot is the single atomic conditional update behind Reserve:
	// it flips the slot to booked only if it is currently free. The returned
	// doctor id feeds cache invalidation; booked=false means the condition
	// did not match.
	BookSlot(ctx context.Context, availabilityID uuid.UUID, slot string, patientID uuid.UUID) (doctorID uuid.UUID, booked bool, err error)
	// FreeSlot conditionally clears a booked slot. freed=false when the slot
	// was already free or absent, which callers treat as success.
	FreeSlot(ctx context.Context, availabilityID uuid.UUID, slot string) (doctorID uuid.UUID, freed bool, err error)
	// SlotExists distinguishes "slot missing" from "slot taken" after a
	// failed conditional booking.
	SlotExists(ctx context.Context, availabilityID uuid.UUID, slot string) (bool, error)
}
