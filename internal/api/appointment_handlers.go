package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ayesh20/Clinic-backend/internal/appointment"
	"github.com/ayesh20/Clinic-backend/internal/availability"
)

func bookAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		doctorID, _ := uuid.Parse(req.DoctorID)
		availabilityID, _ := uuid.Parse(req.AvailabilityID)
		principal, _ := PrincipalFrom(r.Context())

		appt, err := svc.Book(r.Context(), appointment.BookRequest{
			PatientID:       principal.ID,
			DoctorID:        doctorID,
			AvailabilityID:  availabilityID,
			AppointmentID:   req.AppointmentID,
			AppointmentTime: req.AppointmentTime,
			Symptoms:        req.Symptoms,
			PatientName:     req.PatientName,
			PatientEmail:    req.PatientEmail,
			PatientPhone:    req.PatientPhone,
			DoctorName:      req.DoctorName,
			Specialization:  req.Specialization,
		})
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

// getAppointmentHandler accepts either the row UUID or the external APT-
// reference.
func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "id")
		principal, _ := PrincipalFrom(r.Context())

		var appt *appointment.Appointment
		id, err := uuid.Parse(raw)
		if err == nil {
			appt, err = svc.Get(r.Context(), id, principal)
		} else if strings.HasPrefix(raw, "APT-") {
			appt, err = svc.GetByReference(r.Context(), raw, principal)
		} else {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a UUID or an APT- reference")
			return
		}
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listPatientAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := listFilterParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}

		principal, _ := PrincipalFrom(r.Context())
		list, err := svc.ListForPatient(r.Context(), principal.ID, filter)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AppointmentListResponse{Appointments: toAppointmentList(list)})
	}
}

func listDoctorAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := listFilterParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}

		principal, _ := PrincipalFrom(r.Context())
		list, err := svc.ListForDoctor(r.Context(), principal.ID, filter)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AppointmentListResponse{Appointments: toAppointmentList(list)})
	}
}

func listAllAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := listFilterParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}

		principal, _ := PrincipalFrom(r.Context())
		list, total, err := svc.ListAll(r.Context(), principal, filter)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AppointmentListResponse{
			Appointments: toAppointmentList(list),
			Total:        total,
			Page:         filter.Page,
			Limit:        filter.Limit,
		})
	}
}

func updateAppointmentStatusHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		principal, _ := PrincipalFrom(r.Context())
		appt, err := svc.UpdateStatus(r.Context(), id, principal, req.Status, req.Notes)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req CancelAppointmentRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		principal, _ := PrincipalFrom(r.Context())
		appt, err := svc.Cancel(r.Context(), id, principal, req.Reason)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func deleteAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		principal, _ := PrincipalFrom(r.Context())
		if err := svc.Delete(r.Context(), id, principal); err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleAppointmentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "missing_fields", err.Error())
	case errors.Is(err, appointment.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, "unknown_status", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "access_denied", err.Error())
	case errors.Is(err, appointment.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, availability.ErrNotFound):
		writeError(w, http.StatusNotFound, "availability_not_found", err.Error())
	case errors.Is(err, availability.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, availability.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, appointment.ErrNotCancellable):
		writeError(w, http.StatusConflict, "not_cancellable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// listFilterParams parses the shared status/upcoming/date/page/limit query
// params.
func listFilterParams(r *http.Request) (appointment.ListFilter, error) {
	var f appointment.ListFilter
	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" {
		status, err := appointment.ParseStatus(raw)
		if err != nil {
			return f, err
		}
		f.Status = &status
	}
	if raw := q.Get("upcoming"); raw != "" {
		upcoming, err := strconv.ParseBool(raw)
		if err != nil {
			return f, errors.New("upcoming must be true or false")
		}
		f.Upcoming = &upcoming
	}
	if raw := q.Get("date"); raw != "" {
		date, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return f, errors.New("date must be formatted as YYYY-MM-DD")
		}
		f.Date = &date
	}
	if raw := q.Get("doctorId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, errors.New("doctorId must be a valid UUID")
		}
		f.DoctorID = &id
	}
	if raw := q.Get("patientId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, errors.New("patientId must be a valid UUID")
		}
		f.PatientID = &id
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return f, errors.New("page must be an integer")
		}
		f.Page = page
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return f, errors.New("limit must be an integer")
		}
		f.Limit = limit
	}

	return f, nil
}
