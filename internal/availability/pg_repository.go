package availability

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
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

func (r *PgRepository) GetDoctorEmail(ctx context.Context, doctorID uuid.UUID) (string, error) {
	var email string

	err := r.db.QueryRow(ctx, `
		SELECT email FROM doctors WHERE id = $1
	`, doctorID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrDoctorNotFound
		}
		return "", err
	}

	return email, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Availability, error) {
	var a Availability

	err := r.db.QueryRow(ctx, `
		SELECT id, doctor_id, doctor_email, date, created_at, updated_at
		FROM availabilities
		WHERE id = $1
	`, id).Scan(&a.ID, &a.DoctorID, &a.DoctorEmail, &a.Date, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT slot, is_booked, patient_id
		FROM time_slots
		WHERE availability_id = $1
		ORDER BY slot
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ts TimeSlot
		if err := rows.Scan(&ts.Slot, &ts.IsBooked, &ts.PatientID); err != nil {
			return nil, err
		}
		a.TimeSlots = append(a.TimeSlots, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &a, nil
}

func (r *PgRepository) GetIDForDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (uuid.UUID, error) {
	var id uuid.UUID

	err := r.db.QueryRow(ctx, `
		SELECT id FROM availabilities
		WHERE doctor_id = $1 AND date = $2
	`, doctorID, date).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, err
	}

	return id, nil
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to *time.Time) ([]Availability, error) {
	query := `
		SELECT a.id, a.doctor_id, a.doctor_email, a.date, a.created_at, a.updated_at,
		       ts.slot, ts.is_booked, ts.patient_id
		FROM availabilities a
		LEFT JOIN time_slots ts ON ts.availability_id = a.id
		WHERE a.doctor_id = $1`
	args := []any{doctorID}

	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND a.date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND a.date <= $%d", len(args))
	}
	query += " ORDER BY a.date ASC, ts.slot ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Availability
	var current *Availability

	for rows.Next() {
		var a Availability
		var slot *string
		var isBooked *bool
		var patientID *uuid.UUID

		if err := rows.Scan(&a.ID, &a.DoctorID, &a.DoctorEmail, &a.Date,
			&a.CreatedAt, &a.UpdatedAt, &slot, &isBooked, &patientID); err != nil {
			return nil, err
		}

		if current == nil || current.ID != a.ID {
			result = append(result, a)
			current = &result[len(result)-1]
		}
		if slot != nil {
			current.TimeSlots = append(current.TimeSlots, TimeSlot{
				Slot:      *slot,
				IsBooked:  *isBooked,
				PatientID: patientID,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) Create(ctx context.Context, a *Availability) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create availability: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO availabilities (id, doctor_id, doctor_email, date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
	`, a.ID, a.DoctorID, a.DoctorEmail, a.Date)
	if err != nil {
		return fmt.Errorf("insert availability: %w", err)
	}

	for _, ts := range a.TimeSlots {
		_, err = tx.Exec(ctx, `
			INSERT INTO time_slots (availability_id, slot, is_booked, patient_id, created_at, updated_at)
			VALUES ($1, $2, false, NULL, now(), now())
		`, a.ID, ts.Slot)
		if err != nil {
			return fmt.Errorf("insert time slot %q: %w", ts.Slot, err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) AppendSlots(ctx context.Context, availabilityID uuid.UUID, slots []string) (int, error) {
	added := 0

	for _, slot := range slots {
		tag, err := r.db.Exec(ctx, `
			INSERT INTO time_slots (availability_id, slot, is_booked, patient_id, created_at, updated_at)
			VALUES ($1, $2, false, NULL, now(), now())
			ON CONFLICT (availability_id, slot) DO NOTHING
		`, availabilityID, slot)
		if err != nil {
			return added, fmt.Errorf("append time slot %q: %w", slot, err)
		}
		added += int(tag.RowsAffected())
	}

	if added > 0 {
		_, err := r.db.Exec(ctx, `
			UPDATE availabilities SET updated_at = now() WHERE id = $1
		`, availabilityID)
		if err != nil {
			return added, fmt.Errorf("touch availability: %w", err)
		}
	}

	return added, nil
}

func (r *PgRepository) HasBookedSlots(ctx context.Context, availabilityID uuid.UUID) (bool, error) {
	var booked bool

	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM time_slots
			WHERE availability_id = $1 AND is_booked = true
		)
	`, availabilityID).Scan(&booked)
	if err != nil {
		return false, err
	}

	return booked, nil
}

func (r *PgRepository) Delete(ctx context.Context, availabilityID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM availabilities WHERE id = $1
	`, availabilityID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// BookSlot claims a free slot in one conditional update. The is_booked=false
// predicate is what makes concurrent reservations of the same slot resolve
// to exactly one winner.
func (r *PgRepository) BookSlot(ctx context.Context, availabilityID uuid.UUID, slot string, patientID uuid.UUID) (uuid.UUID, bool, error) {
	var doctorID uuid.UUID

	err := r.db.QueryRow(ctx, `
		UPDATE time_slots ts
		SET is_booked = true, patient_id = $3, updated_at = now()
		FROM availabilities a
		WHERE ts.availability_id = a.id
		  AND ts.availability_id = $1
		  AND ts.slot = $2
		  AND ts.is_booked = false
		RETURNING a.doctor_id
	`, availabilityID, slot, patientID).Scan(&doctorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}

	return doctorID, true, nil
}

func (r *PgRepository) FreeSlot(ctx context.Context, availabilityID uuid.UUID, slot string) (uuid.UUID, bool, error) {
	var doctorID uuid.UUID

	err := r.db.QueryRow(ctx, `
		UPDATE time_slots ts
		SET is_booked = false, patient_id = NULL, updated_at = now()
		FROM availabilities a
		WHERE ts.availability_id = a.id
		  AND ts.availability_id = $1
		  AND ts.slot = $2
		  AND ts.is_booked = true
		RETURNING a.doctor_id
	`, availabilityID, slot).Scan(&doctorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}

	return doctorID, true, nil
}

func (r *PgRepository) SlotExists(ctx context.Context, availabilityID uuid.UUID, slot string) (bool, error) {
	var exists bool

	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM time_slots
			WHERE availability_id = $1 AND slot = $2
		)
	`, availabilityID, slot).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}
