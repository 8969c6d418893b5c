package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/gestaozabele/registrocivil/internal/http/middleware"
	"github.com/gestaozabele/registrocivil/internal/registration"
)

// registrationView acrescenta o vocabulário visual do status ao registro.
type registrationView struct {
	registration.Registration
	StatusView registration.Presentation `json:"status_view"`
}

func toView(reg *registration.Registration) (registrationView, error) {
	pres, err := reg.Status.Present()
	if err != nil {
		return registrationView{}, err
	}
	return registrationView{Registration: *reg, StatusView: pres}, nil
}

func toViews(regs []registration.Registration) ([]registrationView, error) {
	views := make([]registrationView, 0, len(regs))
	for i := range regs {
		view, err := toView(&regs[i])
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// SubmitRegistration abre um novo pedido de registro do cidadão.
func (h *Handler) SubmitRegistration(w http.ResponseWriter, r *http.Request) {
	subject, ok := httpmiddleware.GetSubjectUUID(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	var payload registration.SubmitInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	reg, err := h.registrations.Submit(r.Context(), subject, payload)
	if err != nil {
		h.handleRegistrationError(w, err)
		return
	}

	view, err := toView(reg)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}
	WriteJSON(w, http.StatusCreated, view)
}

// ListMyRegistrations lista os pedidos do próprio cidadão.
func (h *Handler) ListMyRegistrations(w http.ResponseWriter, r *http.Request) {
	subject, ok := httpmiddleware.GetSubjectUUID(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	regs, err := h.registrations.ListMine(r.Context(), subject)
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

// GetRegistration devolve um pedido do próprio cidadão.
func (h *Handler) GetRegistration(w http.ResponseWriter, r *http.Request) {
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

	reg, err := h.registrations.Get(r.Context(), id, subject, false)
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

// GetCertificate emite a certidão de um registro aprovado do cidadão.
func (h *Handler) GetCertificate(w http.ResponseWriter, r *http.Request) {
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

	cert, err := h.registrations.Certificate(r.Context(), id, subject, false)
	if err != nil {
		h.handleRegistrationError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) handleRegistrationError(w http.ResponseWriter, err error) {
	var verr *registration.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteValidationError(w, verr)
	case errors.Is(err, registration.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "registro não encontrado", nil)
	case errors.Is(err, registration.ErrAlreadyReviewed):
		WriteError(w, http.StatusConflict, "CONFLICT", "registro já analisado por outro revisor", nil)
	case errors.Is(err, registration.ErrStatusChanged):
		WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, registration.ErrNotApproved):
		WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
	}
}
