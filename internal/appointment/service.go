package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ayesh20/Clinic-backend/internal/auth"
	"github.com/ayesh20/Clinic-backend/internal/availability"
	"github.com/ayesh20/Clinic-backend/internal/observability/metrics"
	"github.com/ayesh20/Clinic-backend/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.appointment")

var (
	ErrAccessDenied   = errors.New("access denied")
	ErrNotCancellable = errors.New("appointment can no longer be cancelled")
)

// SlotReservations is the single gateway for slot occupancy changes,
// implemented by availability.Reservations.
type SlotReservations interface {
	Reserve(ctx context.Context, availabilityID uuid.UUID, slot string, patientID uuid.UUID) error
	Release(ctx context.Context, availabilityID uuid.UUID, slot string) error
}

// AvailabilityLookup reads availability days for validation,
// implemented by availability.Store.
type AvailabilityLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*availability.Availability, error)
}

// Service coordinates the two aggregates a booking touches: the
// availability slot and the appointment record. A reservation is always
// paired with either a persisted appointment or a compensating release.
type Service struct {
	repo    Repository
	slots   SlotReservations
	avail   AvailabilityLookup
	logger  *logging.Logger
	metrics *metrics.BookingMetrics

	now func() time.Time
}

func NewService(repo Repository, slots SlotReservations, avail AvailabilityLookup, logger *logging.Logger, m *metrics.BookingMetrics) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		slots:   slots,
		avail:   avail,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// BookRequest carries everything needed to create an appointment. The
// snapshot overrides are optional; missing ones are filled from the stored
// doctor and patient profiles.
type BookRequest struct {
	PatientID      uuid.UUID
	DoctorID       uuid.UUID
	AvailabilityID uuid.UUID

	AppointmentID   string // optional external reference
	AppointmentTime string
	Symptoms        string

	PatientName    string
	PatientEmail   string
	PatientPhone   string
	DoctorName     string
	Specialization string
}

// Book reserves the slot and persists the appointment. If the insert fails
// after the reservation succeeded, the reservation is rolled back so no
// slot is ever left booked without an appointment behind it.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.doctor_id", req.DoctorID.String()),
		attribute.String("clinic.slot", req.AppointmentTime),
	)

	if req.AppointmentTime == "" || req.Symptoms == "" {
		return nil, ErrMissingFields
	}

	doctor, err := s.repo.GetDoctorByID(ctx, req.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	patient, err := s.repo.GetPatientByID(ctx, req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	day, err := s.avail.Get(ctx, req.AvailabilityID)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	if day.DoctorID != req.DoctorID {
		return nil, availability.ErrNotFound
	}

	if err := s.slots.Reserve(ctx, req.AvailabilityID, req.AppointmentTime, req.PatientID); err != nil {
		s.observeBooking(err)
		return nil, err
	}

	appt := &Appointment{
		ID:              uuid.New(),
		AppointmentID:   req.AppointmentID,
		PatientID:       req.PatientID,
		PatientName:     fallback(req.PatientName, patient.FirstName+" "+patient.LastName),
		PatientEmail:    fallback(req.PatientEmail, patient.Email),
		PatientPhone:    fallback(req.PatientPhone, patient.Phone),
		DoctorID:        req.DoctorID,
		DoctorName:      fallback(req.DoctorName, doctor.FullName),
		Specialization:  fallback(req.Specialization, doctor.Specialization),
		AvailabilityID:  req.AvailabilityID,
		AppointmentDate: day.Date,
		AppointmentTime: req.AppointmentTime,
		Symptoms:        req.Symptoms,
		Status:          StatusPending,
	}
	if appt.AppointmentID == "" {
		appt.AppointmentID = fmt.Sprintf("APT-%d", s.now().UnixMilli())
	}

	if err := s.repo.Create(ctx, appt); err != nil {
		// Compensate: the slot must not stay claimed for a booking that
		// never existed.
		if relErr := s.slots.Release(ctx, req.AvailabilityID, req.AppointmentTime); relErr != nil {
			s.metrics.ObserveReleaseFailure()
			s.logger.Error("compensating release failed",
				"availability_id", req.AvailabilityID, "slot", req.AppointmentTime, "error", relErr)
		}
		s.metrics.ObserveBooking(metrics.ResultError)
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.metrics.ObserveBooking(metrics.ResultSuccess)
	s.logger.Info("appointment booked",
		"appointment_id", appt.AppointmentID,
		"doctor_id", appt.DoctorID,
		"patient_id", appt.PatientID,
		"date", appt.AppointmentDate.Format(time.DateOnly),
		"slot", appt.AppointmentTime)

	return appt, nil
}

func (s *Service) observeBooking(err error) {
	switch {
	case errors.Is(err, availability.ErrSlotTaken):
		s.metrics.ObserveBooking(metrics.ResultConflict)
	case errors.Is(err, availability.ErrNotFound), errors.Is(err, availability.ErrSlotNotFound):
		s.metrics.ObserveBooking(metrics.ResultRejected)
	default:
		s.metrics.ObserveBooking(metrics.ResultError)
	}
}

// Cancel transitions the appointment to cancelled and frees its slot. The
// release is best-effort: an availability day deleted in the meantime is
// logged, not fatal, because the appointment row is the authoritative
// cancellation record.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, principal auth.Principal, reason string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.appointment_id", id.String()))

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	actor, err := cancelActorFor(appt, principal)
	if err != nil {
		s.metrics.ObserveCancellation(metrics.ResultRejected)
		return nil, err
	}

	if !appt.CanBeCancelled(s.now()) {
		s.metrics.ObserveCancellation(metrics.ResultRejected)
		return nil, ErrNotCancellable
	}

	cancelled, err := s.repo.MarkCancelled(ctx, id, actor, reason, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Lost a race with another status change.
			s.metrics.ObserveCancellation(metrics.ResultConflict)
			return nil, ErrNotCancellable
		}
		s.metrics.ObserveCancellation(metrics.ResultError)
		return nil, fmt.Errorf("mark cancelled: %w", err)
	}

	if err := s.slots.Release(ctx, appt.AvailabilityID, appt.AppointmentTime); err != nil {
		s.metrics.ObserveReleaseFailure()
		s.logger.Warn("slot release after cancellation failed",
			"appointment_id", appt.AppointmentID,
			"availability_id", appt.AvailabilityID,
			"slot", appt.AppointmentTime,
			"error", err)
	}

	s.metrics.ObserveCancellation(metrics.ResultSuccess)
	s.logger.Info("appointment cancelled",
		"appointment_id", cancelled.AppointmentID, "cancelled_by", actor)

	return cancelled, nil
}

func cancelActorFor(appt *Appointment, principal auth.Principal) (CancelActor, error) {
	switch {
	case principal.Role == auth.RoleAdmin:
		return CancelledByAdmin, nil
	case principal.Role == auth.RoleDoctor && appt.DoctorID == principal.ID:
		return CancelledByDoctor, nil
	case principal.Role == auth.RolePatient && appt.PatientID == principal.ID:
		return CancelledByPatient, nil
	}
	return "", ErrAccessDenied
}

// UpdateStatus drives the pending/confirmed/completed/no-show edges.
// Cancellation goes through Cancel so the metadata and slot release are
// never skipped.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, principal auth.Principal, rawStatus, notes string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	isAssignedDoctor := principal.Role == auth.RoleDoctor && appt.DoctorID == principal.ID
	if principal.Role != auth.RoleAdmin && !isAssignedDoctor {
		return nil, ErrAccessDenied
	}

	to, err := ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	if to == StatusCancelled {
		return nil, ErrInvalidTransition
	}
	if err := ValidateTransition(appt.Status, to, principal.Role); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, id, appt.Status, to, notes)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.logger.Info("appointment status updated",
		"appointment_id", updated.AppointmentID, "from", appt.Status, "to", to)

	return updated, nil
}

// Get returns an appointment to a party of it: the patient, the assigned
// doctor, or an admin.
func (s *Service) Get(ctx context.Context, id uuid.UUID, principal auth.Principal) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	isParty := principal.Role == auth.RoleAdmin ||
		appt.PatientID == principal.ID ||
		appt.DoctorID == principal.ID
	if !isParty {
		return nil, ErrAccessDenied
	}

	return appt, nil
}

// GetByReference resolves an external APT- reference for a party of the
// appointment.
func (s *Service) GetByReference(ctx context.Context, ref string, principal auth.Principal) (*Appointment, error) {
	appt, err := s.repo.GetByAppointmentID(ctx, ref)
	if err != nil {
		return nil, err
	}

	isParty := principal.Role == auth.RoleAdmin ||
		appt.PatientID == principal.ID ||
		appt.DoctorID == principal.ID
	if !isParty {
		return nil, ErrAccessDenied
	}

	return appt, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, f ListFilter) ([]Appointment, error) {
	return s.repo.ListByPatient(ctx, patientID, f)
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]Appointment, error) {
	return s.repo.ListByDoctor(ctx, doctorID, f)
}

// ListAll is the admin view. Returns the page and the total match count.
func (s *Service) ListAll(ctx context.Context, principal auth.Principal, f ListFilter) ([]Appointment, int, error) {
	if principal.Role != auth.RoleAdmin {
		return nil, 0, ErrAccessDenied
	}

	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}

	return s.repo.ListAll(ctx, f)
}

// Delete removes an appointment record outright (admin only). Unless the
// appointment already ran to completion its slot is freed first,
// best-effort, the same way the admin paths of the booking flow treat a
// vanished availability.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, principal auth.Principal) error {
	if principal.Role != auth.RoleAdmin {
		return ErrAccessDenied
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if appt.Status != StatusCompleted {
		if err := s.slots.Release(ctx, appt.AvailabilityID, appt.AppointmentTime); err != nil {
			s.metrics.ObserveReleaseFailure()
			s.logger.Warn("slot release before deletion failed",
				"appointment_id", appt.AppointmentID, "error", err)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("appointment deleted", "appointment_id", appt.AppointmentID)
	return nil
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
