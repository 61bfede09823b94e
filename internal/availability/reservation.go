package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	redisclient "github.com/ayesh20/Clinic-backend/internal/redis"
	"github.com/ayesh20/Clinic-backend/pkg/logging"
)

// Reservations is the only writer allowed to flip a slot between free and
// booked. Every claim goes through one conditional update keyed on the
// slot's current state, so concurrent reservations of the same slot resolve
// to exactly one winner; the losers see ErrSlotTaken. Reservations of
// different slots never contend, even within the same day.
type Reservations struct {
	repo   Repository
	cache  *redisclient.AvailabilityCache
	logger *logging.Logger
}

func NewReservations(repo Repository, cache *redisclient.AvailabilityCache, logger *logging.Logger) *Reservations {
	if logger == nil {
		logger = logging.Default()
	}
	return &Reservations{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// Reserve atomically claims a free slot for a patient. There is no waiting:
// it either wins the slot immediately or fails immediately.
func (r *Reservations) Reserve(ctx context.Context, availabilityID uuid.UUID, slot string, patientID uuid.UUID) error {
	doctorID, booked, err := r.repo.BookSlot(ctx, availabilityID, slot, patientID)
	if err != nil {
		return fmt.Errorf("book slot: %w", err)
	}
	if booked {
		r.invalidate(ctx, doctorID)
		r.logger.Info("slot reserved",
			"availability_id", availabilityID, "slot", slot, "patient_id", patientID)
		return nil
	}

	// The conditional update matched nothing. Work out which failure the
	// caller should see.
	exists, err := r.repo.SlotExists(ctx, availabilityID, slot)
	if err != nil {
		return fmt.Errorf("inspect slot: %w", err)
	}
	if exists {
		return ErrSlotTaken
	}

	if _, err := r.repo.GetByID(ctx, availabilityID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("inspect availability: %w", err)
	}

	return ErrSlotNotFound
}

// Release frees a booked slot. It is idempotent: releasing an already-free
// or missing slot is a no-op, not an error, since the appointment record is
// the authoritative cancellation record.
func (r *Reservations) Release(ctx context.Context, availabilityID uuid.UUID, slot string) error {
	doctorID, freed, err := r.repo.FreeSlot(ctx, availabilityID, slot)
	if err != nil {
		return fmt.Errorf("free slot: %w", err)
	}
	if freed {
		r.invalidate(ctx, doctorID)
		r.logger.Info("slot released", "availability_id", availabilityID, "slot", slot)
	}

	return nil
}

func (r *Reservations) invalidate(ctx context.Context, doctorID uuid.UUID) {
	if err := r.cache.Invalidate(ctx, doctorID); err != nil {
		r.logger.Warn("availability cache invalidation failed", "doctor_id", doctorID, "error", err)
	}
}
