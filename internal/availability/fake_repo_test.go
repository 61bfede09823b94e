package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeRepo implements Repository in memory. BookSlot and FreeSlot hold a
// mutex across their check-and-set, matching the atomicity of the real
// conditional UPDATE, which is what the concurrency tests exercise.
type fakeRepo struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]string
	byID    map[uuid.UUID]*Availability
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		doctors: make(map[uuid.UUID]string),
		byID:    make(map[uuid.UUID]*Availability),
	}
}

func (f *fakeRepo) addDoctor(email string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.doctors[id] = email
	return id
}

func (f *fakeRepo) GetDoctorEmail(_ context.Context, doctorID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.doctors[doctorID]
	if !ok {
		return "", ErrDoctorNotFound
	}
	return email, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	cp.TimeSlots = append([]TimeSlot(nil), a.TimeSlots...)
	return &cp, nil
}

func (f *fakeRepo) GetIDForDate(_ context.Context, doctorID uuid.UUID, date time.Time) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, a := range f.byID {
		if a.DoctorID == doctorID && a.Date.Equal(date) {
			return id, nil
		}
	}
	return uuid.Nil, ErrNotFound
}

func (f *fakeRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, from, to *time.Time) ([]Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Availability
	for _, a := range f.byID {
		if a.DoctorID != doctorID {
			continue
		}
		if from != nil && a.Date.Before(*from) {
			continue
		}
		if to != nil && a.Date.After(*to) {
			continue
		}
		cp := *a
		cp.TimeSlots = append([]TimeSlot(nil), a.TimeSlots...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (f *fakeRepo) Create(_ context.Context, a *Availability) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	cp.TimeSlots = append([]TimeSlot(nil), a.TimeSlots...)
	f.byID[a.ID] = &cp
	return nil
}

func (f *fakeRepo) AppendSlots(_ context.Context, availabilityID uuid.UUID, slots []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[availabilityID]
	if !ok {
		return 0, ErrNotFound
	}
	added := 0
	for _, slot := range slots {
		if !a.HasSlot(slot) {
			a.TimeSlots = append(a.TimeSlots, TimeSlot{Slot: slot})
			added++
		}
	}
	return added, nil
}

func (f *fakeRepo) HasBookedSlots(_ context.Context, availabilityID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[availabilityID]
	if !ok {
		return false, ErrNotFound
	}
	for _, ts := range a.TimeSlots {
		if ts.IsBooked {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) Delete(_ context.Context, availabilityID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[availabilityID]; !ok {
		return ErrNotFound
	}
	delete(f.byID, availabilityID)
	return nil
}

func (f *fakeRepo) BookSlot(_ context.Context, availabilityID uuid.UUID, slot string, patientID uuid.UUID) (uuid.UUID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[availabilityID]
	if !ok {
		return uuid.Nil, false, nil
	}
	for i := range a.TimeSlots {
		if a.TimeSlots[i].Slot == slot && !a.TimeSlots[i].IsBooked {
			pid := patientID
			a.TimeSlots[i].IsBooked = true
			a.TimeSlots[i].PatientID = &pid
			return a.DoctorID, true, nil
		}
	}
	return uuid.Nil, false, nil
}

func (f *fakeRepo) FreeSlot(_ context.Context, availabilityID uuid.UUID, slot string) (uuid.UUID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[availabilityID]
	if !ok {
		return uuid.Nil, false, nil
	}
	for i := range a.TimeSlots {
		if a.TimeSlots[i].Slot == slot && a.TimeSlots[i].IsBooked {
			a.TimeSlots[i].IsBooked = false
			a.TimeSlots[i].PatientID = nil
			return a.DoctorID, true, nil
		}
	}
	return uuid.Nil, false, nil
}

func (f *fakeRepo) SlotExists(_ context.Context, availabilityID uuid.UUID, slot string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[availabilityID]
	if !ok {
		return false, nil
	}
	return a.HasSlot(slot), nil
}

// slotState reads a slot directly, bypassing the service layer.
func (f *fakeRepo) slotState(availabilityID uuid.UUID, slot string) (TimeSlot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[availabilityID]
	if !ok {
		return TimeSlot{}, false
	}
	for _, ts := range a.TimeSlots {
		if ts.Slot == slot {
			return ts, true
		}
	}
	return TimeSlot{}, false
}
