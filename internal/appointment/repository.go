package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("appointment not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrMissingFields   = errors.New("all appointment details are required")
)

// ListFilter narrows appointment listings. Page/Limit only apply to the
// admin listing.
type ListFilter struct {
	Status    *Status
	Upcoming  *bool // true: upcoming only, false: past only, nil: all
	Date      *time.Time
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Page      int
	Limit     int
}

// Repository contains all DB interactions needed by the booking service.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetByAppointmentID looks up by the external APT- reference.
	GetByAppointmentID(ctx context.Context, ref string) (*Appointment, error)

	// ListByPatient orders by date desc then time desc; ListByDoctor by
	// date asc then time asc (the doctor reads it as a day plan).
	ListByPatient(ctx context.Context, patientID uuid.UUID, f ListFilter) ([]Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]Appointment, error)
	// ListAll returns one page plus the total match count.
	ListAll(ctx context.Context, f ListFilter) ([]Appointment, int, error)

	// UpdateStatus is a conditional update keyed on the current status so a
	// raced transition cannot silently overwrite a newer one.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, notes string) (*Appointment, error)
	// MarkCancelled stamps the cancellation metadata while the appointment
	// is still in a live status.
	MarkCancelled(ctx context.Context, id uuid.UUID, by CancelActor, reason string, at time.Time) (*Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
