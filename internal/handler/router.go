/*
Package handler provides the HTTP handlers and routing setup for the PropChat server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers (API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"propchat/internal/pkg/auth/jwt"
	"propchat/internal/pkg/limiter"
	"propchat/internal/pkg/logx"
	"propchat/internal/pkg/metrics"
	"propchat/internal/pkg/resp"
)

const (
	MessageRate   = 1.0
	MessageBurst  = 10
	ConnectRate   = 0.2
	ConnectBurst  = 5
	PresenceRate  = 0.5
	PresenceBurst = 5
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global and
// per-route middleware before mounting the REST and WebSocket endpoints.
func Router(deps *AppDeps) http.Handler {
	messageLimiter := limiter.NewIPRateLimiter(rate.Limit(MessageRate), MessageBurst)
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)
	presenceLimiter := limiter.NewIPRateLimiter(rate.Limit(PresenceRate), PresenceBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "PropChat Server",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Handle("/metrics", metrics.Handler(deps.Registry))

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/chat", func(ch chi.Router) {
			ch.Get("/server", HandleGetServer(deps))
			ch.Get("/channels/{channelID}/messages", HandleListMessages(deps))

			rateLimitedSend := messageLimiter.Middleware(HandleSendMessage(deps))
			ch.Post("/channels/{channelID}/messages", http.HandlerFunc(rateLimitedSend.ServeHTTP))

			ch.Put("/messages/{messageID}", HandleEditMessage(deps))
			ch.Delete("/messages/{messageID}", HandleDeleteMessage(deps))

			rateLimitedPresence := presenceLimiter.Middleware(HandleUpdatePresence(deps))
			ch.Put("/presence", http.HandlerFunc(rateLimitedPresence.ServeHTTP))
			ch.Delete("/presence", HandleLogout(deps))

			ch.Post("/attachments/presign-upload", HandlePresignUploadURL(deps))
			ch.Get("/attachments/presign-download", HandlePresignDownloadURL(deps))
		})
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}
