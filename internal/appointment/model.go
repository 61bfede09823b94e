package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no-show"
)

// CancelActor records which party cancelled an appointment.
type CancelActor string

const (
	CancelledByPatient CancelActor = "patient"
	CancelledByDoctor  CancelActor = "doctor"
	CancelledByAdmin   CancelActor = "admin"
)

// Doctor is the identity record the booking flow reads for validation and
// snapshot fields. Registration and credentials live outside this service.
type Doctor struct {
	ID             uuid.UUID
	FullName       string
	Email          string
	Phone          string
	Specialization string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Patient struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment ties a patient, doctor and slot together. The name, email and
// phone fields are snapshots captured at booking time so past appointments
// keep displaying what was true when they were booked, even if the profile
// changes later.
type Appointment struct {
	ID            uuid.UUID
	AppointmentID string // externally stable reference, e.g. APT-1717240000000

	PatientID    uuid.UUID
	PatientName  string
	PatientEmail string
	PatientPhone string

	DoctorID       uuid.UUID
	DoctorName     string
	Specialization string

	AvailabilityID  uuid.UUID
	AppointmentDate time.Time
	AppointmentTime string

	Symptoms string
	Status   Status
	Notes    string

	CancelledBy        *CancelActor
	CancellationReason string
	CancelledAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
