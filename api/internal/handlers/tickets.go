package handlers

import (
	"errors"
	"net/http"
	"strings"

	"frontdesk-queue-system/core/lifecycle"
	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/shared/httpx"
	"frontdesk-queue-system/shared/workflow"
)

func (h *Handlers) submitTicket(w http.ResponseWriter, r *http.Request) {
	var draft models.TicketDraft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		h.badRequest(w, r, err)
		return
	}
	ticket, err := h.engine.SubmitTicket(r.Context(), draft)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/tickets/"+ticket.ID)
	httpx.WriteJSON(w, http.StatusCreated, ticket)
}

func (h *Handlers) listTickets(w http.ResponseWriter, r *http.Request) {
	today, err := queryBool(r, "today")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	filter := lifecycle.TicketFilter{
		Status:  workflow.NormalizeTicketStatus(r.URL.Query().Get("status")),
		StaffID: strings.TrimSpace(r.URL.Query().Get("staff_id")),
		Today:   today,
	}
	if filter.Status != "" && !workflow.IsKnown(filter.Status) {
		h.badRequest(w, r, errors.New("unknown status "+filter.Status))
		return
	}
	tickets, err := h.engine.ListTickets(r.Context(), filter)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeList(w, tickets)
}

func (h *Handlers) getTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.store.Tickets().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ticket)
}

func (h *Handlers) ticketStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.engine.GetTicketStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, status)
}

type routeRequest struct {
	AutoRoute *bool `json:"auto_route"`
}

func (h *Handlers) routeTicket(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		h.badRequest(w, r, err)
		return
	}
	autoRoute := req.AutoRoute == nil || *req.AutoRoute
	result, err := h.engine.CategorizeAndRoute(r.Context(), r.PathValue("id"), autoRoute)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

type assignRequest struct {
	StaffID string `json:"staff_id"`
}

func (h *Handlers) assignTicket(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if strings.TrimSpace(req.StaffID) == "" {
		h.badRequest(w, r, errors.New("staff_id is required"))
		return
	}
	result, err := h.engine.AssignTicket(r.Context(), r.PathValue("id"), strings.TrimSpace(req.StaffID))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

type handleRequest struct {
	StaffID string `json:"staff_id"`
	lifecycle.HandleUpdate
}

func (h *Handlers) handleTicket(w http.ResponseWriter, r *http.Request) {
	var req handleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if strings.TrimSpace(req.StaffID) == "" {
		h.badRequest(w, r, errors.New("staff_id is required"))
		return
	}
	ticket, err := h.engine.HandleTicket(r.Context(), r.PathValue("id"), strings.TrimSpace(req.StaffID), req.HandleUpdate)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ticket)
}

type resolveRequest struct {
	StaffID string `json:"staff_id"`
	lifecycle.Resolution
}

func (h *Handlers) resolveTicket(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if strings.TrimSpace(req.StaffID) == "" {
		h.badRequest(w, r, errors.New("staff_id is required"))
		return
	}
	result, err := h.engine.ResolveTicket(r.Context(), r.PathValue("id"), strings.TrimSpace(req.StaffID), req.Resolution)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

type cancelRequest struct {
	StaffID string `json:"staff_id"`
	Reason  string `json:"reason"`
}

func (h *Handlers) cancelTicket(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if strings.TrimSpace(req.StaffID) == "" {
		h.badRequest(w, r, errors.New("staff_id is required"))
		return
	}
	ticket, err := h.engine.CancelTicket(r.Context(), r.PathValue("id"), strings.TrimSpace(req.StaffID), req.Reason)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ticket)
}

func (h *Handlers) suggestions(w http.ResponseWriter, r *http.Request) {
	out, err := h.engine.Suggestions(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeList(w, out)
}
