package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/ayesh20/Clinic-backend/internal/redis"
	"github.com/ayesh20/Clinic-backend/pkg/logging"
)

// Store manages a doctor's published availability days. Slot occupancy is
// never mutated here; that is the reservation service's job.
type Store struct {
	repo   Repository
	cache  *redisclient.AvailabilityCache
	logger *logging.Logger
}

func NewStore(repo Repository, cache *redisclient.AvailabilityCache, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// PublishSlots creates or extends availability for every date in
// [start, end]. Slot labels already present on a day are kept as they are,
// including their bookings; publishing is idempotent by label.
func (s *Store) PublishSlots(ctx context.Context, doctorID uuid.UUID, start, end time.Time, slots []string) (created, updated int, err error) {
	if len(slots) == 0 {
		return 0, 0, ErrNoSlots
	}

	start = Midnight(start)
	end = Midnight(end)
	if start.After(end) {
		return 0, 0, ErrInvalidRange
	}

	doctorEmail, err := s.repo.GetDoctorEmail(ctx, doctorID)
	if err != nil {
		return 0, 0, fmt.Errorf("load doctor: %w", err)
	}

	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		id, err := s.repo.GetIDForDate(ctx, doctorID, date)
		switch {
		case err == nil:
			if _, err := s.repo.AppendSlots(ctx, id, slots); err != nil {
				return created, updated, fmt.Errorf("extend availability for %s: %w", date.Format(time.DateOnly), err)
			}
			updated++
		case errors.Is(err, ErrNotFound):
			a := &Availability{
				ID:          uuid.New(),
				DoctorID:    doctorID,
				DoctorEmail: doctorEmail,
				Date:        date,
			}
			for _, slot := range slots {
				a.TimeSlots = append(a.TimeSlots, TimeSlot{Slot: slot})
			}
			if err := s.repo.Create(ctx, a); err != nil {
				return created, updated, fmt.Errorf("create availability for %s: %w", date.Format(time.DateOnly), err)
			}
			created++
		default:
			return created, updated, fmt.Errorf("look up availability for %s: %w", date.Format(time.DateOnly), err)
		}
	}

	s.invalidate(ctx, doctorID)
	s.logger.Info("availability published",
		"doctor_id", doctorID, "created", created, "updated", updated, "slots", len(slots))

	return created, updated, nil
}

// Get loads one availability day with all its slots.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Availability, error) {
	return s.repo.GetByID(ctx, id)
}

// Find returns the doctor's own availability, booked slots included,
// sorted by date ascending.
func (s *Store) Find(ctx context.Context, doctorID uuid.UUID, from, to *time.Time) ([]Availability, error) {
	from, to = normalizeRange(from, to)
	return s.repo.ListByDoctor(ctx, doctorID, from, to)
}

// FindPublic returns the patient-facing view: only free slots, no patient
// identities, days without free slots dropped. Without an explicit range it
// shows today onward and is served through the Redis cache.
func (s *Store) FindPublic(ctx context.Context, doctorID uuid.UUID, from, to *time.Time) ([]Availability, error) {
	useCache := from == nil && to == nil
	if useCache {
		today := Midnight(time.Now())
		from = &today

		if payload, ok, err := s.cache.Get(ctx, doctorID); err != nil {
			s.logger.Warn("availability cache read failed", "doctor_id", doctorID, "error", err)
		} else if ok {
			var cached []Availability
			if err := json.Unmarshal(payload, &cached); err == nil {
				return cached, nil
			}
			s.logger.Warn("availability cache payload corrupt", "doctor_id", doctorID)
		}
	} else {
		from, to = normalizeRange(from, to)
	}

	list, err := s.repo.ListByDoctor(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}

	public := make([]Availability, 0, len(list))
	for i := range list {
		if view, ok := list[i].PublicView(); ok {
			public = append(public, view)
		}
	}

	if useCache {
		if payload, err := json.Marshal(public); err == nil {
			if err := s.cache.Set(ctx, doctorID, payload); err != nil {
				s.logger.Warn("availability cache write failed", "doctor_id", doctorID, "error", err)
			}
		}
	}

	return public, nil
}

// AppendSlots adds labels to an existing day the doctor owns. Existing
// slots, booked ones included, are never removed.
func (s *Store) AppendSlots(ctx context.Context, availabilityID, doctorID uuid.UUID, slots []string) (*Availability, error) {
	if len(slots) == 0 {
		return nil, ErrNoSlots
	}

	a, err := s.repo.GetByID(ctx, availabilityID)
	if err != nil {
		return nil, err
	}
	if a.DoctorID != doctorID {
		return nil, ErrNotFound
	}

	if _, err := s.repo.AppendSlots(ctx, availabilityID, slots); err != nil {
		return nil, err
	}

	s.invalidate(ctx, doctorID)
	return s.repo.GetByID(ctx, availabilityID)
}

// DeleteIfUnbooked removes a whole availability day, refusing while any
// slot is still booked.
func (s *Store) DeleteIfUnbooked(ctx context.Context, availabilityID, doctorID uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, availabilityID)
	if err != nil {
		return err
	}
	if a.DoctorID != doctorID {
		return ErrNotFound
	}

	booked, err := s.repo.HasBookedSlots(ctx, availabilityID)
	if err != nil {
		return err
	}
	if booked {
		return ErrHasBookedSlots
	}

	if err := s.repo.Delete(ctx, availabilityID); err != nil {
		return err
	}

	s.invalidate(ctx, doctorID)
	s.logger.Info("availability deleted", "availability_id", availabilityID, "doctor_id", doctorID)

	return nil
}

func (s *Store) invalidate(ctx context.Context, doctorID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, doctorID); err != nil {
		s.logger.Warn("availability cache invalidation failed", "doctor_id", doctorID, "error", err)
	}
}

func normalizeRange(from, to *time.Time) (*time.Time, *time.Time) {
	if from != nil {
		f := Midnight(*from)
		from = &f
	}
	if to != nil {
		t := Midnight(*to)
		to = &t
	}
	return from, to
}
