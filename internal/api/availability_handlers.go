package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ayesh20/Clinic-backend/internal/availability"
)

func publishAvailabilityHandler(svc AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PublishAvailabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		start, _ := time.Parse(time.DateOnly, req.StartDate)
		end, _ := time.Parse(time.DateOnly, req.EndDate)

		principal, _ := PrincipalFrom(r.Context())
		created, updated, err := svc.PublishSlots(r.Context(), principal.ID, start, end, req.TimeSlots)
		if err != nil {
			handleAvailabilityError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, PublishAvailabilityResponse{Created: created, Updated: updated})
	}
}

func listAvailabilityHandler(svc AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, err := dateRangeParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}

		principal, _ := PrincipalFrom(r.Context())
		list, err := svc.Find(r.Context(), principal.ID, from, to)
		if err != nil {
			handleAvailabilityError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

func publicAvailabilityHandler(svc AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		from, to, err := dateRangeParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}

		list, err := svc.FindPublic(r.Context(), doctorID, from, to)
		if err != nil {
			handleAvailabilityError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

func updateTimeSlotsHandler(svc AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		availabilityID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_availability_id", "id must be a valid UUID")
			return
		}

		var req UpdateTimeSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		principal, _ := PrincipalFrom(r.Context())
		updated, err := svc.AppendSlots(r.Context(), availabilityID, principal.ID, req.TimeSlots)
		if err != nil {
			handleAvailabilityError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteAvailabilityHandler(svc AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		availabilityID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_availability_id", "id must be a valid UUID")
			return
		}

		principal, _ := PrincipalFrom(r.Context())
		if err := svc.DeleteIfUnbooked(r.Context(), availabilityID, principal.ID); err != nil {
			handleAvailabilityError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleAvailabilityError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, availability.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_date_range", err.Error())
	case errors.Is(err, availability.ErrNoSlots):
		writeError(w, http.StatusBadRequest, "no_time_slots", err.Error())
	case errors.Is(err, availability.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, availability.ErrNotFound):
		writeError(w, http.StatusNotFound, "availability_not_found", err.Error())
	case errors.Is(err, availability.ErrHasBookedSlots):
		writeError(w, http.StatusConflict, "has_booked_slots", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// dateRangeParams parses optional startDate/endDate query params.
func dateRangeParams(r *http.Request) (*time.Time, *time.Time, error) {
	parse := func(name string) (*time.Time, error) {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			return nil, nil
		}
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return nil, errors.New(name + " must be formatted as YYYY-MM-DD")
		}
		return &t, nil
	}

	from, err := parse("startDate")
	if err != nil {
		return nil, nil, err
	}
	to, err := parse("endDate")
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}
