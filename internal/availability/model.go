package availability

import (
	"time"

	"github.com/google/uuid"
)

// TimeSlot is one labeled bookable unit within an availability day.
// PatientID is only set while the slot is booked.
type TimeSlot struct {
	Slot      string     `json:"slot"`
	IsBooked  bool       `json:"isBooked"`
	PatientID *uuid.UUID `json:"patientId,omitempty"`
}

// Availability is a doctor's published offer of slots for one calendar date.
type Availability struct {
	ID          uuid.UUID  `json:"id"`
	DoctorID    uuid.UUID  `json:"doctorId"`
	DoctorEmail string     `json:"doctorEmail"`
	Date        time.Time  `json:"date"`
	TimeSlots   []TimeSlot `json:"timeSlots"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// PublicView strips booked slots and patient identities for the patient-facing
// listing. Returns false when no free slot remains, so empty days can be dropped.
func (a *Availability) PublicView() (Availability, bool) {
	free := make([]TimeSlot, 0, len(a.TimeSlots))
	for _, ts := range a.TimeSlots {
		if !ts.IsBooked {
			free = append(free, TimeSlot{Slot: ts.Slot})
		}
	}
	if len(free) == 0 {
		return Availability{}, false
	}

	return Availability{
		ID:        a.ID,
		DoctorID:  a.DoctorID,
		Date:      a.Date,
		TimeSlots: free,
	}, true
}

// HasSlot reports whether a slot label exists on this day.
func (a *Availability) HasSlot(label string) bool {
	for _, ts := range a.TimeSlots {
		if ts.Slot == label {
			return true
		}
	}
	return false
}

// Midnight truncates t to the start of its UTC day. All availability dates
// are stored at day granularity.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
