package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"frontdesk-queue-system/core/lifecycle"
	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/shared/httpx"
)

const dateLayout = "2006-01-02"

func (h *Handlers) scheduleAppointment(w http.ResponseWriter, r *http.Request) {
	var draft models.AppointmentDraft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		h.badRequest(w, r, err)
		return
	}
	appt, err := h.engine.ScheduleAppointment(r.Context(), draft)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/appointments/"+appt.ID)
	httpx.WriteJSON(w, http.StatusCreated, appt)
}

// listAppointments accepts staff_id, today and date (YYYY-MM-DD). today wins
// over date.
func (h *Handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	today, err := queryBool(r, "today")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	filter := lifecycle.AppointmentFilter{
		StaffID: strings.TrimSpace(r.URL.Query().Get("staff_id")),
		Today:   today,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		day, err := time.ParseInLocation(dateLayout, raw, h.location)
		if err != nil {
			h.badRequest(w, r, errors.New("date must be YYYY-MM-DD"))
			return
		}
		filter.On = day
	}
	appts, err := h.engine.ListAppointments(r.Context(), filter)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeList(w, appts)
}

func (h *Handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.engine.GetAppointment(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}

func (h *Handlers) updateAppointment(w http.ResponseWriter, r *http.Request) {
	var upd lifecycle.AppointmentUpdate
	if err := httpx.DecodeJSON(r, &upd); err != nil {
		h.badRequest(w, r, err)
		return
	}
	appt, err := h.engine.UpdateAppointment(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}

func (h *Handlers) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteAppointment(r.Context(), r.PathValue("id")); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
