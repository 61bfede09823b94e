package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const appointmentColumns = `
	id, appointment_id,
	patient_id, patient_name, patient_email, patient_phone,
	doctor_id, doctor_name, specialization,
	availability_id, appointment_date, appointment_time,
	symptoms, status, notes,
	cancelled_by, cancellation_reason, cancelled_at,
	created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var cancelledBy *string

	err := row.Scan(
		&a.ID, &a.AppointmentID,
		&a.PatientID, &a.PatientName, &a.PatientEmail, &a.PatientPhone,
		&a.DoctorID, &a.DoctorName, &a.Specialization,
		&a.AvailabilityID, &a.AppointmentDate, &a.AppointmentTime,
		&a.Symptoms, &a.Status, &a.Notes,
		&cancelledBy, &a.CancellationReason, &a.CancelledAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if cancelledBy != nil {
		actor := CancelActor(*cancelledBy)
		a.CancelledBy = &actor
	}
	return &a, nil
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var d Doctor

	err := r.db.QueryRow(ctx, `
		SELECT id, full_name, email, phone, specialization, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id).Scan(&d.ID, &d.FullName, &d.Email, &d.Phone, &d.Specialization, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient

	err := r.db.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id).Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *PgRepository) Create(ctx context.Context, a *Appointment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointments (
			id, appointment_id,
			patient_id, patient_name, patient_email, patient_phone,
			doctor_id, doctor_name, specialization,
			availability_id, appointment_date, appointment_time,
			symptoms, status, notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now())
	`, a.ID, a.AppointmentID,
		a.PatientID, a.PatientName, a.PatientEmail, a.PatientPhone,
		a.DoctorID, a.DoctorName, a.Specialization,
		a.AvailabilityID, a.AppointmentDate, a.AppointmentTime,
		a.Symptoms, a.Status, a.Notes)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetByAppointmentID(ctx context.Context, ref string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appointment_id = $1
	`, ref)
	return scanAppointment(row)
}

// filterClauses renders the shared status/upcoming/date predicates,
// appending to args and returning the SQL fragment.
func filterClauses(f ListFilter, args *[]any) string {
	clause := ""

	if f.Status != nil {
		*args = append(*args, *f.Status)
		clause += fmt.Sprintf(" AND status = $%d", len(*args))
	}
	if f.Upcoming != nil {
		if *f.Upcoming {
			clause += " AND appointment_date >= now() AND status IN ('pending', 'confirmed')"
		} else {
			clause += " AND (appointment_date < now() OR status IN ('completed', 'cancelled', 'no-show'))"
		}
	}
	if f.Date != nil {
		*args = append(*args, *f.Date)
		clause += fmt.Sprintf(" AND appointment_date = $%d", len(*args))
	}

	return clause
}

func (r *PgRepository) queryAppointments(ctx context.Context, query string, args []any) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, f ListFilter) ([]Appointment, error) {
	args := []any{patientID}
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = $1` +
		filterClauses(f, &args) +
		` ORDER BY appointment_date DESC, appointment_time DESC`

	return r.queryAppointments(ctx, query, args)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]Appointment, error) {
	args := []any{doctorID}
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1` +
		filterClauses(f, &args) +
		` ORDER BY appointment_date ASC, appointment_time ASC`

	return r.queryAppointments(ctx, query, args)
}

func (r *PgRepository) ListAll(ctx context.Context, f ListFilter) ([]Appointment, int, error) {
	where := " WHERE true"
	args := []any{}

	if f.DoctorID != nil {
		args = append(args, *f.DoctorID)
		where += fmt.Sprintf(" AND doctor_id = $%d", len(args))
	}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		where += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	where += filterClauses(f, &args)

	var total int
	err := r.db.QueryRow(ctx, "SELECT count(*) FROM appointments"+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	query := "SELECT " + appointmentColumns + " FROM appointments" + where +
		fmt.Sprintf(" ORDER BY appointment_date DESC, appointment_time DESC LIMIT $%d OFFSET $%d",
			len(args)-1, len(args))

	list, err := r.queryAppointments(ctx, query, args)
	if err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, notes string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    notes = CASE WHEN $4::text <> '' THEN $4 ELSE notes END,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from, notes)

	return scanAppointment(row)
}

func (r *PgRepository) MarkCancelled(ctx context.Context, id uuid.UUID, by CancelActor, reason string, at time.Time) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancelled_by = $2,
		    cancellation_reason = $3,
		    cancelled_at = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'confirmed')
		RETURNING `+appointmentColumns+`
	`, id, by, reason, at)

	return scanAppointment(row)
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM appointments WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
