package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	httpmiddleware "github.com/gestaozabele/registrocivil/internal/http/middleware"
	"github.com/gestaozabele/registrocivil/internal/service"
	"github.com/gestaozabele/registrocivil/internal/util"
)

// Signup cadastra cidadão e já devolve sessão autenticada.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload service.SignupInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	result, err := h.authService.SignupCitizen(r.Context(), payload)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	h.writeLoginSuccess(w, http.StatusCreated, result)
}

// LoginCitizen autentica o portal do cidadão.
func (h *Handler) LoginCitizen(w http.ResponseWriter, r *http.Request) {
	email, password, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	result, err := h.authService.LoginCitizen(r.Context(), email, password)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusOK, result)
}

// LoginAdmin autentica o console administrativo.
func (h *Handler) LoginAdmin(w http.ResponseWriter, r *http.Request) {
	email, password, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	result, err := h.authService.LoginAdmin(r.Context(), email, password)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusOK, result)
}

// Refresh rotaciona o token de acesso a partir do cookie de refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	audience, token, err := getRefreshFromRequest(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "refresh ausente", nil)
		return
	}

	result, err := h.authService.Refresh(r.Context(), audience, token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRefreshInvalid):
			WriteError(w, http.StatusUnauthorized, "AUTH", "refresh inválido", nil)
		case errors.Is(err, service.ErrNotAdmin):
			h.clearRefreshCookie(w, service.AudienceAdmin)
			WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
		case errors.Is(err, service.ErrAccountDisabled):
			WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
		default:
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro ao renovar sessão", nil)
		}
		return
	}

	h.writeLoginSuccess(w, http.StatusOK, result)
}

// Logout revoga refresh token atual.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if audience, token, err := getRefreshFromRequest(r); err == nil {
		_ = h.authService.Logout(r.Context(), audience, token)
	}

	h.clearRefreshCookie(w, service.AudienceCitizen)
	h.clearRefreshCookie(w, service.AudienceAdmin)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me retorna informações do usuário autenticado.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	subject, ok := httpmiddleware.GetSubjectUUID(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	profile, roles, err := h.authService.GetMe(r.Context(), subject)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível carregar perfil", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"user":  profile,
		"roles": roles,
	})
}

// UpdateMe altera dados civis do próprio usuário.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	subject, ok := httpmiddleware.GetSubjectUUID(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	var payload struct {
		FullName   string `json:"full_name"`
		NationalID string `json:"national_id"`
		Phone      string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	profile, err := h.authService.UpdateMyProfile(r.Context(), subject,
		util.OptionalString(payload.FullName),
		util.OptionalString(payload.NationalID),
		util.OptionalString(payload.Phone),
	)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível atualizar perfil", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"user": profile})
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return "", "", false
	}

	if strings.TrimSpace(payload.Email) == "" || strings.TrimSpace(payload.Password) == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "email e senha são obrigatórios", nil)
		return "", "", false
	}

	return payload.Email, payload.Password, true
}

func (h *Handler) handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	case errors.Is(err, service.ErrAccountDisabled):
		WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, service.ErrNotAdmin):
		WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro ao autenticar", nil)
	}
}

func (h *Handler) writeLoginSuccess(w http.ResponseWriter, status int, result *service.LoginResult) {
	h.setRefreshCookie(w, result.Audience, result.RefreshToken, result.RefreshExpiry)

	WriteJSON(w, status, map[string]any{
		"access_token": result.AccessToken,
		"user":         result.Profile,
		"roles":        result.Roles,
	})
}

func getRefreshFromRequest(r *http.Request) (string, string, error) {
	if c, err := r.Cookie(service.AudienceAdmin); err == nil && c.Value != "" {
		return service.AudienceAdmin, c.Value, nil
	}
	if c, err := r.Cookie(service.AudienceCitizen); err == nil && c.Value != "" {
		return service.AudienceCitizen, c.Value, nil
	}
	return "", "", errors.New("refresh ausente")
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, audience, token string, expires time.Time) {
	secure := !h.devCookies
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     audience,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter, audience string) {
	secure := !h.devCookies
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     audience,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}
