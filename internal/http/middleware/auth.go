package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/registrocivil/internal/auth"
)

type contextKey string

const (
	ContextKeySubject  contextKey = "subject"
	ContextKeyAudience contextKey = "audience"
	ContextKeyRoles    contextKey = "roles"
)

// AdminGate valida o papel administrativo no banco a cada requisição e
// derruba as sessões de quem perdeu o papel.
type AdminGate interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
	RevokeAllSessions(ctx context.Context, userID uuid.UUID) error
}

// Auth valida JWT de acesso e injeta claims no contexto.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}

			claims, err := jwtManager.ParseAndValidate(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "token inválido")
				return
			}

			if len(claims.Audience) == 0 {
				writeError(w, http.StatusUnauthorized, "AUTH", "audience inválida")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySubject, claims.Subject)
			ctx = context.WithValue(ctx, ContextKeyAudience, claims.Audience[0])
			ctx = context.WithValue(ctx, ContextKeyRoles, claims.Roles)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extrai o token do header Authorization ou, para websockets
// (que não enviam headers customizados no upgrade), da query string.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// GetSubject recupera subject do contexto.
func GetSubject(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeySubject).(string)
	return val
}

// GetSubjectUUID recupera subject já convertido.
func GetSubjectUUID(ctx context.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(GetSubject(ctx))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// GetAudience recupera audience do contexto.
func GetAudience(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyAudience).(string)
	return val
}

// GetRoles recupera roles do contexto.
func GetRoles(ctx context.Context) []string {
	val, _ := ctx.Value(ContextKeyRoles).([]string)
	return val
}

// RequireAudience restringe o grupo de rotas à audiência informada.
func RequireAudience(audience string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.EqualFold(GetAudience(r.Context()), audience) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "acesso negado")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin garante papel admin vigente. A checagem é feita no banco a
// cada requisição: claims de um token ainda válido não bastam após a
// remoção do papel, e a remoção derruba as sessões restantes.
func RequireAdmin(gate AdminGate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := GetSubjectUUID(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "AUTH", "subject inválido")
				return
			}

			isAdmin, err := gate.IsAdmin(r.Context(), subject)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno")
				return
			}
			if !isAdmin {
				if err := gate.RevokeAllSessions(r.Context(), subject); err != nil {
					log.Warn().Err(err).Str("user_id", subject.String()).Msg("falha no sign-out forçado")
				}
				writeError(w, http.StatusForbidden, "FORBIDDEN", "acesso restrito a administradores")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
