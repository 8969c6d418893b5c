package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/gestaozabele/registrocivil/internal/http/middleware"
)

// AdminListRegistrations lista a fila completa do console, com busca opcional
// (?q=) por nome ou local do evento.
func (h *Handler) AdminListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.registrations.ListAll(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível listar registros", nil)
		return
	}

	views, err := toViews(regs)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}
	WriteJSON(w, http.StatusOK, views)
}

// AdminGetRegistration devolve qualquer registro para o console.
func (h *Handler) AdminGetRegistration(w http.ResponseWriter, r *http.Request) {
	subject, ok := httpmiddleware.GetSubjectUUID(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	reg, err := h.registrations.Get(r.Context(), id, subject, true)
	if err != nil {
		h.handleRegistrationError(w, err)
		return
	}

	view, err := toView(reg)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// AdminStats consolida contagens por status para o painel.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.registrations.Stats(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível calcular estatísticas", nil)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// AdminStartReview move registro pendente para análise.
func (h *Handler) AdminStartReview(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	reg, err := h.registrations.StartReview(r.Context(), id)
	if err != nil {
		h.handleRegistrationError(w, err)
		return
	}

	view, err := toView(reg)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// AdminApprove defere o registro com atribuição do revisor autenticado.
func (h *Handler) AdminApprove(w http.ResponseWriter, r *http.Request) {
	reviewer, ok := httpmiddleware.GetSubjectUUID(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	reg, err := h.registrations.Approve(r.Context(), id, reviewer)
	if err != nil {
		h.handleRegistrationError(w, err)
		return
	}

	view, err := toView(reg)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// AdminReject indefere o registro; o motivo é obrigatório.
func (h *Handler) AdminReject(w http.ResponseWriter, r *http.Request) {
	reviewer, ok := httpmiddleware.GetSubjectUUID(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload struct {
		Reason string `json:"rejection_reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	reg, err := h.registrations.Reject(r.Context(), id, reviewer, payload.Reason)
	if err != nil {
		h.handleRegistrationError(w, err)
		return
	}

	view, err := toView(reg)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}
