package handlers

import (
	"errors"
	"net/http"
	"strings"

	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/core/store"
	"frontdesk-queue-system/shared/httpx"
)

func (h *Handlers) listStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.store.Staff().List(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeList(w, staff)
}

func (h *Handlers) listAvailableStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.store.Staff().ListAvailable(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeList(w, staff)
}

type availabilityRequest struct {
	IsAvailable *bool `json:"is_available"`
}

func (h *Handlers) setAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if req.IsAvailable == nil {
		h.badRequest(w, r, errors.New("is_available is required"))
		return
	}
	staff, err := h.store.Staff().SetAvailability(r.Context(), r.PathValue("id"), *req.IsAvailable)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, staff)
}

func (h *Handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	unread, err := queryBool(r, "unread")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	recipient := strings.TrimSpace(r.URL.Query().Get("recipient_id"))

	var items []models.Notification
	switch {
	case recipient != "":
		items, err = h.store.Notifications().ListByRecipient(r.Context(), recipient)
	case unread:
		items, err = h.store.Notifications().ListUnread(r.Context())
	default:
		items, err = h.store.Notifications().List(r.Context())
	}
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if recipient != "" && unread {
		kept := items[:0]
		for _, n := range items {
			if !n.IsRead {
				kept = append(kept, n)
			}
		}
		items = kept
	}
	writeList(w, items)
}

func (h *Handlers) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Notifications().MarkRead(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, n)
}

func (h *Handlers) listActivity(w http.ResponseWriter, r *http.Request) {
	today, err := queryBool(r, "today")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	q := r.URL.Query()
	entityID := strings.TrimSpace(q.Get("entity_id"))
	typ := strings.TrimSpace(q.Get("type"))

	var entries []models.ActivityLogEntry
	switch {
	case entityID != "":
		entityType := strings.TrimSpace(q.Get("entity_type"))
		if entityType == "" {
			entityType = models.EntityTypeVisitor
		}
		entries, err = h.store.Activity().ListByEntity(r.Context(), entityID, entityType)
	case typ != "":
		entries, err = h.store.Activity().ListByType(r.Context(), typ)
	default:
		entries, err = h.store.Activity().List(r.Context())
	}
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if entityID != "" && typ != "" {
		kept := entries[:0]
		for _, e := range entries {
			if e.Type == typ {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	if today {
		entries = store.ActivityOn(entries, h.today())
	}
	writeList(w, entries)
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.cachedStats(r.Context()); ok {
		w.Header().Set("X-Stats-Source", "cache")
		httpx.WriteJSON(w, http.StatusOK, snap)
		return
	}
	snap, err := h.engine.Stats(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.Header().Set("X-Stats-Source", "live")
	httpx.WriteJSON(w, http.StatusOK, snap)
}
