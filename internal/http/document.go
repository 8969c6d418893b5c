package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/registrocivil/internal/document"
	httpmiddleware "github.com/gestaozabele/registrocivil/internal/http/middleware"
	"github.com/gestaozabele/registrocivil/internal/registration"
	"github.com/gestaozabele/registrocivil/internal/service"
	"github.com/gestaozabele/registrocivil/internal/storage"
)

// UploadDocument anexa documento comprobatório via multipart.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	subject, ok := httpmiddleware.GetSubjectUUID(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	regID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	if err := r.ParseMultipartForm(document.MaxFileSize); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "multipart inválido", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "campo file obrigatório", nil)
		return
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, document.MaxFileSize+1))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "não foi possível ler o arquivo", nil)
		return
	}

	doc, err := h.documents.Attach(r.Context(), document.AttachInput{
		RegistrationID: regID,
		FileName:       header.Filename,
		ContentType:    header.Header.Get("Content-Type"),
		Body:           body,
		UploadedBy:     subject,
	}, h.isAdminRequest(r))
	if err != nil {
		h.handleDocumentError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, doc)
}

// ListDocuments lista anexos do registro dentro do escopo do chamador.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	subject, ok := httpmiddleware.GetSubjectUUID(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	regID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	docs, err := h.documents.List(r.Context(), regID, subject, h.isAdminRequest(r))
	if err != nil {
		h.handleDocumentError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, docs)
}

// DocumentDownloadURL gera URL temporária de download do anexo.
func (h *Handler) DocumentDownloadURL(w http.ResponseWriter, r *http.Request) {
	subject, ok := httpmiddleware.GetSubjectUUID(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	regID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}
	docID, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "documentID inválido", nil)
		return
	}

	url, err := h.documents.DownloadURL(r.Context(), regID, docID, subject, h.isAdminRequest(r))
	if err != nil {
		h.handleDocumentError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}

// isAdminRequest concede escopo administrativo apenas com papel vigente no
// banco. A claim de audiência sozinha não basta: um token ainda válido não
// pode sustentar acesso de administrador depois da remoção do papel, e a
// remoção derruba as sessões restantes, como no middleware RequireAdmin.
func (h *Handler) isAdminRequest(r *http.Request) bool {
	if !strings.EqualFold(httpmiddleware.GetAudience(r.Context()), service.AudienceAdmin) {
		return false
	}

	subject, ok := httpmiddleware.GetSubjectUUID(r.Context())
	if !ok || h.adminGate == nil {
		return false
	}

	isAdmin, err := h.adminGate.IsAdmin(r.Context(), subject)
	if err != nil {
		log.Warn().Err(err).Str("user_id", subject.String()).Msg("falha ao verificar papel admin")
		return false
	}
	if !isAdmin {
		if err := h.adminGate.RevokeAllSessions(r.Context(), subject); err != nil {
			log.Warn().Err(err).Str("user_id", subject.String()).Msg("falha no sign-out forçado")
		}
		return false
	}
	return true
}

func (h *Handler) handleDocumentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, document.ErrEmptyFile):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, document.ErrTooLarge):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, document.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, registration.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "registro não encontrado", nil)
	case errors.Is(err, storage.ErrNotConfigured):
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "storage indisponível", nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
	}
}
