package ws

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/mcoot/geoseek/internal/model"
	"github.com/mcoot/geoseek/internal/services/lifecycle"
)

// Handler upgrades HTTP requests to realtime session connections
type Handler struct {
	lifecycle *lifecycle.Handler
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewHandler creates a new websocket Handler
func NewHandler(lc *lifecycle.Handler, logger *slog.Logger) *Handler {
	return &Handler{
		lifecycle: lc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients are served from other origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With(slog.String("component", "ws")),
	}
}

// ServeHTTP upgrades the connection and serves it until the peer disconnects.
// If the query carries join parameters the join happens immediately.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := NewClient(conn, h.logger)
	lc := h.lifecycle.Connect(client)

	h.logger.Info("websocket connected",
		slog.String("connection_id", client.ID()),
		slog.String("remote_addr", r.RemoteAddr))

	if join, ok := joinFromQuery(r.URL.Query()); ok {
		// Failures are emitted to the client as joinError
		_ = lc.Join(join)
	}

	go client.WritePump()
	client.ReadPump(lc)

	h.logger.Info("websocket disconnected", slog.String("connection_id", client.ID()))
}

// joinQueryKeys are the query parameters that request a connect-time join
var joinQueryKeys = []string{"sessionId", "displayName", "longitude", "latitude", "password"}

// joinFromQuery builds a join request from connect-time query parameters.
// Any join parameter triggers the join, so an incomplete one still gets a joinError.
func joinFromQuery(q url.Values) (model.JoinPayload, bool) {
	requested := false
	for _, key := range joinQueryKeys {
		if q.Has(key) {
			requested = true
			break
		}
	}
	if !requested {
		return model.JoinPayload{}, false
	}
	return model.JoinPayload{
		SessionID:   model.SessionID(q.Get("sessionId")),
		DisplayName: q.Get("displayName"),
		Longitude:   parseCoordinate(q.Get("longitude")),
		Latitude:    parseCoordinate(q.Get("latitude")),
		Password:    q.Get("password"),
	}, true
}

// parseCoordinate returns nil for absent or non-numeric values
func parseCoordinate(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
