package appointment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayesh20/Clinic-backend/internal/auth"
	"github.com/ayesh20/Clinic-backend/internal/availability"
	"github.com/ayesh20/Clinic-backend/pkg/logging"
)

type fixture struct {
	svc    *Service
	repo   *fakeRepo
	slots  *fakeSlots
	doctor *Doctor
	pat    *Patient
	availID uuid.UUID
	date   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newFakeRepo()
	doctor := &Doctor{
		ID:             uuid.New(),
		FullName:       "Dr. Nimali Perera",
		Email:          "nimali.perera@clinic.example",
		Phone:          "+94111234567",
		Specialization: "Cardiology",
	}
	pat := &Patient{
		ID:        uuid.New(),
		FirstName: "Kasun",
		LastName:  "Silva",
		Email:     "kasun.silva@example.com",
		Phone:     "+94770000000",
	}
	repo.doctors[doctor.ID] = doctor
	repo.patients[pat.ID] = pat

	date := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 7)
	slots := newFakeSlots()
	availID := slots.addDay(doctor.ID, date, "09:00", "09:30")

	svc := NewService(repo, slots, slots, logging.New("error"), nil)

	return &fixture{svc: svc, repo: repo, slots: slots, doctor: doctor, pat: pat, availID: availID, date: date}
}

func (f *fixture) bookReq() BookRequest {
	return BookRequest{
		PatientID:       f.pat.ID,
		DoctorID:        f.doctor.ID,
		AvailabilityID:  f.availID,
		AppointmentTime: "09:00",
		Symptoms:        "persistent chest pain",
	}
}

func TestBookCreatesPendingAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.bookReq())
	require.NoError(t, err)

	assert.Equal(t, StatusPending, appt.Status)
	assert.True(t, strings.HasPrefix(appt.AppointmentID, "APT-"))
	assert.Equal(t, f.date, appt.AppointmentDate)
	assert.Equal(t, "09:00", appt.AppointmentTime)

	// Snapshot fields fall back to the stored profiles.
	assert.Equal(t, "Kasun Silva", appt.PatientName)
	assert.Equal(t, "kasun.silva@example.com", appt.PatientEmail)
	assert.Equal(t, "Dr. Nimali Perera", appt.DoctorName)
	assert.Equal(t, "Cardiology", appt.Specialization)

	booked, owner := f.slots.state(f.availID, "09:00")
	assert.True(t, booked)
	assert.Equal(t, f.pat.ID, owner)
}

func TestBookHonorsSnapshotOverrides(t *testing.T) {
	f := newFixture(t)
	req := f.bookReq()
	req.AppointmentID = "APT-REF-7"
	req.PatientName = "K. Silva"
	req.DoctorName = "N. Perera"

	appt, err := f.svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "APT-REF-7", appt.AppointmentID)
	assert.Equal(t, "K. Silva", appt.PatientName)
	assert.Equal(t, "N. Perera", appt.DoctorName)
}

func TestBookValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.bookReq()
	req.Symptoms = ""
	_, err := f.svc.Book(ctx, req)
	assert.ErrorIs(t, err, ErrMissingFields)

	req = f.bookReq()
	req.DoctorID = uuid.New()
	_, err = f.svc.Book(ctx, req)
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	req = f.bookReq()
	req.PatientID = uuid.New()
	_, err = f.svc.Book(ctx, req)
	assert.ErrorIs(t, err, ErrPatientNotFound)

	req = f.bookReq()
	req.AvailabilityID = uuid.New()
	_, err = f.svc.Book(ctx, req)
	assert.ErrorIs(t, err, availability.ErrNotFound)

	req = f.bookReq()
	req.AppointmentTime = "23:00"
	_, err = f.svc.Book(ctx, req)
	assert.ErrorIs(t, err, availability.ErrSlotNotFound)
}

// The booking scenario from end to end: A wins the slot, B conflicts,
// A cancels, B retries and wins.
func TestBookConflictCancelRebook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	patientB := &Patient{ID: uuid.New(), FirstName: "Amaya", LastName: "Fernando", Email: "amaya@example.com", Phone: "+94771111111"}
	f.repo.patients[patientB.ID] = patientB

	apptA, err := f.svc.Book(ctx, f.bookReq())
	require.NoError(t, err)

	reqB := f.bookReq()
	reqB.PatientID = patientB.ID
	_, err = f.svc.Book(ctx, reqB)
	assert.ErrorIs(t, err, availability.ErrSlotTaken)

	_, err = f.svc.Cancel(ctx, apptA.ID, auth.Principal{ID: f.pat.ID, Role: auth.RolePatient}, "feeling better")
	require.NoError(t, err)

	booked, _ := f.slots.state(f.availID, "09:00")
	assert.False(t, booked, "cancellation must free the slot")

	apptB, err := f.svc.Book(ctx, reqB)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, apptB.Status)

	booked, owner := f.slots.state(f.availID, "09:00")
	assert.True(t, booked)
	assert.Equal(t, patientB.ID, owner)
}

func TestBookCompensatesWhenPersistenceFails(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = errors.New("connection reset")

	_, err := f.svc.Book(context.Background(), f.bookReq())
	require.Error(t, err)

	booked, _ := f.slots.state(f.availID, "09:00")
	assert.False(t, booked, "failed booking must release its reservation")
}

func TestCancelAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		principal auth.Principal
		wantErr   error
		wantBy    CancelActor
	}{
		{"owning patient", auth.Principal{ID: f.pat.ID, Role: auth.RolePatient}, nil, CancelledByPatient},
		{"assigned doctor", auth.Principal{ID: f.doctor.ID, Role: auth.RoleDoctor}, nil, CancelledByDoctor},
		{"admin", auth.Principal{ID: uuid.New(), Role: auth.RoleAdmin}, nil, CancelledByAdmin},
		{"other patient", auth.Principal{ID: uuid.New(), Role: auth.RolePatient}, ErrAccessDenied, ""},
		{"other doctor", auth.Principal{ID: uuid.New(), Role: auth.RoleDoctor}, ErrAccessDenied, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appt, err := f.svc.Book(ctx, f.bookReq())
			require.NoError(t, err)

			cancelled, err := f.svc.Cancel(ctx, appt.ID, tt.principal, "schedule clash")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				// Clean up for the next case.
				_, err = f.svc.Cancel(ctx, appt.ID, auth.Principal{Role: auth.RoleAdmin}, "cleanup")
				require.NoError(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, cancelled.Status)
			require.NotNil(t, cancelled.CancelledBy)
			assert.Equal(t, tt.wantBy, *cancelled.CancelledBy)
			assert.Equal(t, "schedule clash", cancelled.CancellationReason)
			assert.NotNil(t, cancelled.CancelledAt)
		})
	}
}

func TestCancelRejectsPastAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.bookReq())
	require.NoError(t, err)

	// Jump the clock past the appointment date; status is still pending.
	f.svc.now = func() time.Time { return f.date.AddDate(0, 0, 1) }

	_, err = f.svc.Cancel(ctx, appt.ID, auth.Principal{ID: f.pat.ID, Role: auth.RolePatient}, "")
	assert.ErrorIs(t, err, ErrNotCancellable)

	booked, _ := f.slots.state(f.availID, "09:00")
	assert.True(t, booked, "a rejected cancellation must not free the slot")
}

func TestCancelSurvivesMissingAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.bookReq())
	require.NoError(t, err)

	f.slots.releaseErr = availability.ErrNotFound

	cancelled, err := f.svc.Cancel(ctx, appt.ID, auth.Principal{Role: auth.RoleAdmin}, "clinic closed")
	require.NoError(t, err, "a vanished availability must not block cancellation")
	assert.Equal(t, StatusCancelled, cancelled.Status)
}

func TestUpdateStatusAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.bookReq())
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, auth.Principal{ID: f.pat.ID, Role: auth.RolePatient}, "confirmed", "")
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, auth.Principal{ID: uuid.New(), Role: auth.RoleDoctor}, "confirmed", "")
	assert.ErrorIs(t, err, ErrAccessDenied, "only the assigned doctor may update")

	updated, err := f.svc.UpdateStatus(ctx, appt.ID, auth.Principal{ID: f.doctor.ID, Role: auth.RoleDoctor}, "confirmed", "bring previous reports")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, updated.Status)
	assert.Equal(t, "bring previous reports", updated.Notes)
}

func TestUpdateStatusTransitionRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := auth.Principal{ID: uuid.New(), Role: auth.RoleAdmin}

	appt, err := f.svc.Book(ctx, f.bookReq())
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, admin, "invalid-status", "")
	assert.ErrorIs(t, err, ErrUnknownStatus)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, admin, "cancelled", "")
	assert.ErrorIs(t, err, ErrInvalidTransition, "cancellation must go through Cancel")

	_, err = f.svc.UpdateStatus(ctx, appt.ID, admin, "completed", "")
	require.NoError(t, err)

	// completed is terminal
	_, err = f.svc.UpdateStatus(ctx, appt.ID, admin, "pending", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.UpdateStatus(ctx, appt.ID, admin, "confirmed", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestGetRequiresParty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.bookReq())
	require.NoError(t, err)

	for _, p := range []auth.Principal{
		{ID: f.pat.ID, Role: auth.RolePatient},
		{ID: f.doctor.ID, Role: auth.RoleDoctor},
		{ID: uuid.New(), Role: auth.RoleAdmin},
	} {
		got, err := f.svc.Get(ctx, appt.ID, p)
		require.NoError(t, err)
		assert.Equal(t, appt.ID, got.ID)
	}

	_, err = f.svc.Get(ctx, appt.ID, auth.Principal{ID: uuid.New(), Role: auth.RolePatient})
	assert.ErrorIs(t, err, ErrAccessDenied)

	// The external APT- reference resolves under the same party check.
	got, err := f.svc.GetByReference(ctx, appt.AppointmentID, auth.Principal{ID: f.pat.ID, Role: auth.RolePatient})
	require.NoError(t, err)
	assert.Equal(t, appt.ID, got.ID)

	_, err = f.svc.GetByReference(ctx, appt.AppointmentID, auth.Principal{ID: uuid.New(), Role: auth.RoleDoctor})
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = f.svc.GetByReference(ctx, "APT-0", auth.Principal{Role: auth.RoleAdmin})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAllIsAdminOnlyAndClampsPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.ListAll(ctx, auth.Principal{Role: auth.RoleDoctor}, ListFilter{})
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, _, err = f.svc.ListAll(ctx, auth.Principal{Role: auth.RoleAdmin}, ListFilter{Page: -3, Limit: 5000})
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.lastListAll.Page)
	assert.Equal(t, 100, f.repo.lastListAll.Limit)
}

func TestDeleteReleasesSlotUnlessCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := auth.Principal{ID: uuid.New(), Role: auth.RoleAdmin}

	appt, err := f.svc.Book(ctx, f.bookReq())
	require.NoError(t, err)

	err = f.svc.Delete(ctx, appt.ID, auth.Principal{ID: f.doctor.ID, Role: auth.RoleDoctor})
	assert.ErrorIs(t, err, ErrAccessDenied)

	require.NoError(t, f.svc.Delete(ctx, appt.ID, admin))
	booked, _ := f.slots.state(f.availID, "09:00")
	assert.False(t, booked, "deleting a live appointment frees its slot")

	// A completed appointment keeps its slot occupancy untouched.
	appt2, err := f.svc.Book(ctx, f.bookReq())
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, appt2.ID, admin, "completed", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, appt2.ID, admin))
	booked, _ = f.slots.state(f.availID, "09:00")
	assert.True(t, booked)
}

// ---- fakes ----

type fakeRepo struct {
	mu       sync.Mutex
	doctors  map[uuid.UUID]*Doctor
	patients map[uuid.UUID]*Patient
	appts    map[uuid.UUID]*Appointment

	createErr   error
	lastListAll ListFilter
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		doctors:  make(map[uuid.UUID]*Doctor),
		patients: make(map[uuid.UUID]*Patient),
		appts:    make(map[uuid.UUID]*Appointment),
	}
}

func (f *fakeRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.doctors[id]
	if !ok || d == nil {
		return nil, ErrDoctorNotFound
	}
	return d, nil
}

func (f *fakeRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patients[id]
	if !ok || p == nil {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (f *fakeRepo) Create(_ context.Context, a *Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *a
	f.appts[a.ID] = &cp
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) GetByAppointmentID(_ context.Context, ref string) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appts {
		if a.AppointmentID == ref {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) ListByPatient(_ context.Context, patientID uuid.UUID, _ ListFilter) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appts {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, _ ListFilter) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appts {
		if a.DoctorID == doctorID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListAll(_ context.Context, filter ListFilter) ([]Appointment, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastListAll = filter
	var out []Appointment
	for _, a := range f.appts {
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status, notes string) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok || a.Status != from {
		return nil, ErrNotFound
	}
	a.Status = to
	if notes != "" {
		a.Notes = notes
	}
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) MarkCancelled(_ context.Context, id uuid.UUID, by CancelActor, reason string, at time.Time) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok || (a.Status != StatusPending && a.Status != StatusConfirmed) {
		return nil, ErrNotFound
	}
	a.Status = StatusCancelled
	actor := by
	a.CancelledBy = &actor
	a.CancellationReason = reason
	cancelledAt := at
	a.CancelledAt = &cancelledAt
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.appts[id]; !ok {
		return ErrNotFound
	}
	delete(f.appts, id)
	return nil
}

// fakeSlots implements both SlotReservations and AvailabilityLookup with
// the same check-and-set atomicity as the real conditional update.
type fakeSlots struct {
	mu   sync.Mutex
	days map[uuid.UUID]*fakeDay

	releaseErr error
}

type fakeDay struct {
	doctorID uuid.UUID
	date     time.Time
	booked   map[string]uuid.UUID // slot -> patient, present only while booked
	labels   []string
}

func newFakeSlots() *fakeSlots {
	return &fakeSlots{days: make(map[uuid.UUID]*fakeDay)}
}

func (f *fakeSlots) addDay(doctorID uuid.UUID, date time.Time, labels ...string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.days[id] = &fakeDay{
		doctorID: doctorID,
		date:     date,
		booked:   make(map[string]uuid.UUID),
		labels:   labels,
	}
	return id
}

func (f *fakeSlots) Reserve(_ context.Context, availabilityID uuid.UUID, slot string, patientID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	day, ok := f.days[availabilityID]
	if !ok {
		return availability.ErrNotFound
	}
	if !contains(day.labels, slot) {
		return availability.ErrSlotNotFound
	}
	if _, taken := day.booked[slot]; taken {
		return availability.ErrSlotTaken
	}
	day.booked[slot] = patientID
	return nil
}

func (f *fakeSlots) Release(_ context.Context, availabilityID uuid.UUID, slot string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.releaseErr != nil {
		return f.releaseErr
	}
	if day, ok := f.days[availabilityID]; ok {
		delete(day.booked, slot)
	}
	return nil
}

func (f *fakeSlots) Get(_ context.Context, id uuid.UUID) (*availability.Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	day, ok := f.days[id]
	if !ok {
		return nil, availability.ErrNotFound
	}
	a := &availability.Availability{ID: id, DoctorID: day.doctorID, Date: day.date}
	for _, label := range day.labels {
		ts := availability.TimeSlot{Slot: label}
		if pid, booked := day.booked[label]; booked {
			p := pid
			ts.IsBooked = true
			ts.PatientID = &p
		}
		a.TimeSlots = append(a.TimeSlots, ts)
	}
	return a, nil
}

func (f *fakeSlots) state(availabilityID uuid.UUID, slot string) (bool, uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	day, ok := f.days[availabilityID]
	if !ok {
		return false, uuid.Nil
	}
	pid, booked := day.booked[slot]
	return booked, pid
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
