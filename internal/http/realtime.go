package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	httpmiddleware "github.com/gestaozabele/registrocivil/internal/http/middleware"
	"github.com/gestaozabele/registrocivil/internal/realtime"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 45 * time.Second

	// Conexão de administrador revalida o papel no banco neste intervalo;
	// papel removido encerra o feed sem esperar o access token expirar.
	wsRoleCheckPeriod = time.Minute
)

// Changes abre o feed websocket de mudanças. Cidadãos recebem eventos dos
// próprios registros; o console administrativo recebe todos.
func (h *Handler) Changes(w http.ResponseWriter, r *http.Request) {
	subject, ok := httpmiddleware.GetSubjectUUID(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	isAdmin := h.isAdminRequest(r)
	filter := func(ev realtime.Event) bool {
		if isAdmin {
			return true
		}
		return ev.OwnerID == subject
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket: upgrade falhou")
		return
	}

	sub := h.events.Subscribe(filter)
	h.metrics.AddRealtimeClient(1)

	defer func() {
		sub.Unsubscribe()
		h.metrics.AddRealtimeClient(-1)
		conn.Close()
	}()

	// Leitor descarta mensagens do cliente e detecta desconexão.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	var roleCheck <-chan time.Time
	if isAdmin {
		roleTicker := time.NewTicker(wsRoleCheckPeriod)
		defer roleTicker.Stop()
		roleCheck = roleTicker.C
	}

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-roleCheck:
			stillAdmin, err := h.adminGate.IsAdmin(r.Context(), subject)
			if err != nil || !stillAdmin {
				log.Info().Str("user_id", subject.String()).Msg("websocket: papel admin não vigente, encerrando feed")
				return
			}
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
