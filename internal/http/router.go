package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/gestaozabele/registrocivil/internal/config"
	"github.com/gestaozabele/registrocivil/internal/document"
	httpmiddleware "github.com/gestaozabele/registrocivil/internal/http/middleware"
	"github.com/gestaozabele/registrocivil/internal/metrics"
	"github.com/gestaozabele/registrocivil/internal/realtime"
	"github.com/gestaozabele/registrocivil/internal/registration"
	"github.com/gestaozabele/registrocivil/internal/service"
	"github.com/gestaozabele/registrocivil/internal/storage"
)

type Handler struct {
	pool          *pgxpool.Pool
	redis         *redis.Client
	authService   *service.AuthService
	adminGate     httpmiddleware.AdminGate
	registrations *registration.Service
	documents     *document.Service
	events        *realtime.Broker
	metrics       *metrics.Metrics
	upgrader      websocket.Upgrader
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	devCookies    bool
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, authService *service.AuthService, events *realtime.Broker, m *metrics.Metrics) (http.Handler, error) {
	devCookies := false
	for _, origin := range cfg.AllowOrigins {
		if strings.Contains(origin, "localhost") {
			devCookies = true
			break
		}
	}

	var uploader storage.Uploader = storage.NoopUploader{}
	switch cfg.Storage.Provider {
	case "", "noop":
		// mantém uploader padrão
	case "s3", "r2", "cloudflare-r2":
		s3Cfg := storage.S3Config{
			Endpoint:     cfg.Storage.S3Endpoint,
			Region:       cfg.Storage.S3Region,
			Bucket:       cfg.Storage.S3Bucket,
			AccessKey:    cfg.Storage.S3AccessKey,
			SecretKey:    cfg.Storage.S3SecretKey,
			PublicDomain: cfg.Storage.S3PublicURL,
		}
		var err error
		uploader, err = storage.NewS3Uploader(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
	default:
		return nil, fmt.Errorf("storage: provedor %s não suportado", cfg.Storage.Provider)
	}

	regRepo := registration.NewRepository(pool)
	regService := registration.NewService(regRepo, events, m)

	docRepo := document.NewRepository(pool)
	docService := document.NewService(docRepo, regService, uploader, events)

	allowedOrigin := func(origin string) bool {
		if origin == "" || len(cfg.AllowOrigins) == 0 {
			return true
		}
		for _, allowed := range cfg.AllowOrigins {
			if strings.EqualFold(allowed, origin) {
				return true
			}
		}
		return devCookies
	}

	h := &Handler{
		pool:          pool,
		redis:         redisClient,
		authService:   authService,
		adminGate:     authService,
		registrations: regService,
		documents:     docService,
		events:        events,
		metrics:       m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return allowedOrigin(r.Header.Get("Origin"))
			},
		},
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		devCookies:    devCookies,
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.Metrics(m))
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)
		public.Handle("/metrics", promhttp.Handler())

		public.Route("/auth", func(auth chi.Router) {
			auth.Post("/signup", h.Signup)
			auth.Post("/cidadao/login", h.LoginCitizen)
			auth.Post("/admin/login", h.LoginAdmin)
			auth.Post("/refresh", h.Refresh)
			auth.Post("/logout", h.Logout)
		})
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(authService.JWT()))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Get("/me", h.Me)
		private.Put("/me", h.UpdateMe)
		private.Get("/changes", h.Changes)

		private.Route("/registrations", func(reg chi.Router) {
			reg.Post("/", h.SubmitRegistration)
			reg.Get("/", h.ListMyRegistrations)
			reg.Get("/{id}", h.GetRegistration)
			reg.Get("/{id}/certificate", h.GetCertificate)
			reg.Post("/{id}/documents", h.UploadDocument)
			reg.Get("/{id}/documents", h.ListDocuments)
			reg.Get("/{id}/documents/{documentID}/url", h.DocumentDownloadURL)
		})

		private.Group(func(admin chi.Router) {
			admin.Use(httpmiddleware.RequireAudience(service.AudienceAdmin))
			admin.Use(httpmiddleware.RequireAdmin(authService))

			admin.Route("/admin/registrations", func(ar chi.Router) {
				ar.Get("/", h.AdminListRegistrations)
				ar.Get("/stats", h.AdminStats)
				ar.Get("/{id}", h.AdminGetRegistration)
				ar.Post("/{id}/review", h.AdminStartReview)
				ar.Post("/{id}/approve", h.AdminApprove)
				ar.Post("/{id}/reject", h.AdminReject)
				ar.Get("/{id}/documents", h.ListDocuments)
				ar.Get("/{id}/documents/{documentID}/url", h.DocumentDownloadURL)
			})
		})
	})

	return r, nil
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com Postgres e Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbErr := h.pool.Ping(ctx)
	redisErr := h.redis.Ping(ctx).Err()

	if dbErr != nil || redisErr != nil {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
