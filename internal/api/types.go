package api

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ayesh20/Clinic-backend/internal/appointment"
)

var validate = validator.New()

type PublishAvailabilityRequest struct {
	StartDate string   `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string   `json:"endDate" validate:"required,datetime=2006-01-02"`
	TimeSlots []string `json:"timeSlots" validate:"required,min=1,dive,required"`
}

type PublishAvailabilityResponse struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

type UpdateTimeSlotsRequest struct {
	TimeSlots []string `json:"timeSlots" validate:"required,min=1,dive,required"`
}

type BookAppointmentRequest struct {
	DoctorID        string `json:"doctorId" validate:"required,uuid4"`
	AvailabilityID  string `json:"availabilityId" validate:"required,uuid4"`
	AppointmentTime string `json:"appointmentTime" validate:"required"`
	Symptoms        string `json:"symptoms" validate:"required"`

	// Optional overrides for the denormalized snapshot; filled from the
	// stored profiles when absent.
	AppointmentID  string `json:"appointmentId"`
	PatientName    string `json:"patientName"`
	PatientEmail   string `json:"patientEmail" validate:"omitempty,email"`
	PatientPhone   string `json:"patientPhone"`
	DoctorName     string `json:"doctorName"`
	Specialization string `json:"specialization"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type AppointmentResponse struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID string    `json:"appointmentId"`

	PatientID    uuid.UUID `json:"patientId"`
	PatientName  string    `json:"patientName"`
	PatientEmail string    `json:"patientEmail"`
	PatientPhone string    `json:"patientPhone"`

	DoctorID       uuid.UUID `json:"doctorId"`
	DoctorName     string    `json:"doctorName"`
	Specialization string    `json:"specialization"`

	AvailabilityID  uuid.UUID `json:"availabilityId"`
	AppointmentDate string    `json:"appointmentDate"`
	AppointmentTime string    `json:"appointmentTime"`

	Symptoms string `json:"symptoms"`
	Status   string `json:"status"`
	Notes    string `json:"notes,omitempty"`

	CancelledBy        string     `json:"cancelledBy,omitempty"`
	CancellationReason string     `json:"cancellationReason,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Total        int                   `json:"total,omitempty"`
	Page         int                   `json:"page,omitempty"`
	Limit        int                   `json:"limit,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:                 a.ID,
		AppointmentID:      a.AppointmentID,
		PatientID:          a.PatientID,
		PatientName:        a.PatientName,
		PatientEmail:       a.PatientEmail,
		PatientPhone:       a.PatientPhone,
		DoctorID:           a.DoctorID,
		DoctorName:         a.DoctorName,
		Specialization:     a.Specialization,
		AvailabilityID:     a.AvailabilityID,
		AppointmentDate:    a.AppointmentDate.Format(time.DateOnly),
		AppointmentTime:    a.AppointmentTime,
		Symptoms:           a.Symptoms,
		Status:             string(a.Status),
		Notes:              a.Notes,
		CancellationReason: a.CancellationReason,
		CancelledAt:        a.CancelledAt,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
	if a.CancelledBy != nil {
		resp.CancelledBy = string(*a.CancelledBy)
	}
	return resp
}

func toAppointmentList(list []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toAppointmentResponse(&list[i]))
	}
	return out
}
