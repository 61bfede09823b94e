package availability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayesh20/Clinic-backend/pkg/logging"
)

func newTestReservations(t *testing.T) (*Reservations, *fakeRepo, uuid.UUID, uuid.UUID) {
	t.Helper()
	repo := newFakeRepo()
	doctorID := repo.addDoctor("dr.perera@clinic.example")

	a := &Availability{
		ID:       uuid.New(),
		DoctorID: doctorID,
		Date:     Midnight(time.Now().AddDate(0, 0, 7)),
		TimeSlots: []TimeSlot{
			{Slot: "09:00"},
			{Slot: "09:30"},
		},
	}
	require.NoError(t, repo.Create(context.Background(), a))

	return NewReservations(repo, nil, logging.New("error")), repo, a.ID, doctorID
}

func TestReserveWinsFreeSlot(t *testing.T) {
	svc, repo, availID, _ := newTestReservations(t)
	patientID := uuid.New()

	require.NoError(t, svc.Reserve(context.Background(), availID, "09:00", patientID))

	ts, ok := repo.slotState(availID, "09:00")
	require.True(t, ok)
	assert.True(t, ts.IsBooked)
	require.NotNil(t, ts.PatientID)
	assert.Equal(t, patientID, *ts.PatientID)
}

func TestReserveFailureModes(t *testing.T) {
	svc, _, availID, _ := newTestReservations(t)
	ctx := context.Background()

	require.NoError(t, svc.Reserve(ctx, availID, "09:00", uuid.New()))

	err := svc.Reserve(ctx, availID, "09:00", uuid.New())
	assert.ErrorIs(t, err, ErrSlotTaken)

	err = svc.Reserve(ctx, availID, "13:00", uuid.New())
	assert.ErrorIs(t, err, ErrSlotNotFound)

	err = svc.Reserve(ctx, uuid.New(), "09:00", uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

// Exactly one of many concurrent reservations of the same slot may win;
// every loser must observe ErrSlotTaken and the slot must end up owned by
// the winner.
func TestReserveMutualExclusion(t *testing.T) {
	svc, repo, availID, _ := newTestReservations(t)
	ctx := context.Background()

	const contenders = 32
	patients := make([]uuid.UUID, contenders)
	for i := range patients {
		patients[i] = uuid.New()
	}

	results := make([]error, contenders)
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = svc.Reserve(ctx, availID, "09:00", patients[i])
		}(i)
	}
	close(start)
	wg.Wait()

	var winner *uuid.UUID
	losers := 0
	for i, err := range results {
		switch {
		case err == nil:
			require.Nil(t, winner, "two reservations won the same slot")
			winner = &patients[i]
		default:
			assert.ErrorIs(t, err, ErrSlotTaken)
			losers++
		}
	}
	require.NotNil(t, winner, "someone must win")
	assert.Equal(t, contenders-1, losers)

	ts, ok := repo.slotState(availID, "09:00")
	require.True(t, ok)
	assert.True(t, ts.IsBooked)
	require.NotNil(t, ts.PatientID)
	assert.Equal(t, *winner, *ts.PatientID)
}

// Reservations of different slots within the same day must not interfere.
func TestReserveDifferentSlotsBothSucceed(t *testing.T) {
	svc, _, availID, _ := newTestReservations(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	slots := []string{"09:00", "09:30"}
	for i, slot := range slots {
		wg.Add(1)
		go func(i int, slot string) {
			defer wg.Done()
			errs[i] = svc.Reserve(ctx, availID, slot, uuid.New())
		}(i, slot)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
}

func TestReleaseIsIdempotent(t *testing.T) {
	svc, repo, availID, _ := newTestReservations(t)
	ctx := context.Background()

	require.NoError(t, svc.Reserve(ctx, availID, "09:00", uuid.New()))

	require.NoError(t, svc.Release(ctx, availID, "09:00"))
	ts, _ := repo.slotState(availID, "09:00")
	assert.False(t, ts.IsBooked)
	assert.Nil(t, ts.PatientID)

	// Second release of the same slot is a no-op, not an error.
	require.NoError(t, svc.Release(ctx, availID, "09:00"))
	ts, _ = repo.slotState(availID, "09:00")
	assert.False(t, ts.IsBooked)

	// Releasing on a vanished availability is also fine.
	require.NoError(t, svc.Release(ctx, uuid.New(), "09:00"))
}

func TestSlotReusableAfterRelease(t *testing.T) {
	svc, repo, availID, _ := newTestReservations(t)
	ctx := context.Background()

	patientA := uuid.New()
	patientB := uuid.New()

	require.NoError(t, svc.Reserve(ctx, availID, "09:00", patientA))
	assert.ErrorIs(t, svc.Reserve(ctx, availID, "09:00", patientB), ErrSlotTaken)

	require.NoError(t, svc.Release(ctx, availID, "09:00"))

	require.NoError(t, svc.Reserve(ctx, availID, "09:00", patientB))
	ts, _ := repo.slotState(availID, "09:00")
	require.NotNil(t, ts.PatientID)
	assert.Equal(t, patientB, *ts.PatientID)
}
