package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ayesh20/Clinic-backend/internal/appointment"
	"github.com/ayesh20/Clinic-backend/internal/auth"
	"github.com/ayesh20/Clinic-backend/internal/availability"
	"github.com/ayesh20/Clinic-backend/pkg/logging"
)

// AvailabilityService is the slice of availability.Store the handlers use.
type AvailabilityService interface {
	PublishSlots(ctx context.Context, doctorID uuid.UUID, start, end time.Time, slots []string) (created, updated int, err error)
	Find(ctx context.Context, doctorID uuid.UUID, from, to *time.Time) ([]availability.Availability, error)
	FindPublic(ctx context.Context, doctorID uuid.UUID, from, to *time.Time) ([]availability.Availability, error)
	AppendSlots(ctx context.Context, availabilityID, doctorID uuid.UUID, slots []string) (*availability.Availability, error)
	DeleteIfUnbooked(ctx context.Context, availabilityID, doctorID uuid.UUID) error
}

// AppointmentService is the slice of appointment.Service the handlers use.
type AppointmentService interface {
	Book(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error)
	Get(ctx context.Context, id uuid.UUID, principal auth.Principal) (*appointment.Appointment, error)
	GetByReference(ctx context.Context, ref string, principal auth.Principal) (*appointment.Appointment, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, f appointment.ListFilter) ([]appointment.Appointment, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID, f appointment.ListFilter) ([]appointment.Appointment, error)
	ListAll(ctx context.Context, principal auth.Principal, f appointment.ListFilter) ([]appointment.Appointment, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, principal auth.Principal, status, notes string) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, principal auth.Principal, reason string) (*appointment.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID, principal auth.Principal) error
}

type RouterConfig struct {
	Availability AvailabilityService
	Appointments AppointmentService
	Verifier     *auth.Verifier
	Logger       *logging.Logger
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	requireAuth := AuthMiddleware(cfg.Verifier)

	r.Route("/availability", func(r chi.Router) {
		// Public availability view, no token required.
		r.Get("/doctor/{doctorID}", publicAvailabilityHandler(cfg.Availability))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, RequireRole(auth.RoleDoctor))
			r.Post("/", publishAvailabilityHandler(cfg.Availability))
			r.Get("/", listAvailabilityHandler(cfg.Availability))
			r.Put("/{id}", updateTimeSlotsHandler(cfg.Availability))
			r.Delete("/{id}", deleteAvailabilityHandler(cfg.Availability))
		})
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Use(requireAuth)
		r.With(RequireRole(auth.RolePatient)).Post("/", bookAppointmentHandler(cfg.Appointments))
		r.With(RequireRole(auth.RolePatient)).Get("/patient", listPatientAppointmentsHandler(cfg.Appointments))
		r.With(RequireRole(auth.RoleDoctor)).Get("/doctor", listDoctorAppointmentsHandler(cfg.Appointments))
		r.With(RequireRole(auth.RoleAdmin)).Get("/", listAllAppointmentsHandler(cfg.Appointments))
		r.With(RequireRole(auth.RoleAdmin)).Delete("/{id}", deleteAppointmentHandler(cfg.Appointments))
		r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
		r.With(RequireRole(auth.RoleDoctor, auth.RoleAdmin)).Put("/{id}/status", updateAppointmentStatusHandler(cfg.Appointments))
		r.Put("/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))
	})

	return r
}
