/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting,
resolving the caller's identity, upgrading the HTTP connection to WebSocket, and
initiating the connection lifecycle.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"propchat/internal/app/chat"
	"propchat/internal/pkg/auth/jwt"
	"propchat/internal/pkg/errs"
	"propchat/internal/pkg/limiter"
	"propchat/internal/pkg/logx"
	"propchat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
//
// Identity is resolved exactly once, before the upgrade; a request with a missing or
// invalid credential is rejected with an HTTP error and never becomes a connection.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		token := r.URL.Query().Get("token")
		if token == "" {
			token = jwt.BearerToken(r)
		}

		currentUser, customErr := deps.Resolver.Resolve(r.Context(), token)
		if customErr != nil {
			logx.Warn("WebSocket connection rejected: identity resolution failed", "code", customErr.Code)
			resp.RespondError(w, r, customErr)
			return
		}

		sock, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		conn := chat.NewConn(deps.Hub, sock, currentUser)

		go conn.WritePump()

		deps.Hub.Register(conn)

		logx.Info("WebSocket connection established", "conn_id", conn.ID(), "user_id", currentUser.ID)

		conn.ReadPump()
	}
}
