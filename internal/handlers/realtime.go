package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NotificationStream upgrades a request into a live notification feed.
type NotificationStream interface {
	Serve(w http.ResponseWriter, r *http.Request, userID int)
}

// RealtimeRouter registers the websocket endpoint. The token travels in the
// query string.
func RealtimeRouter(r chi.Router, stream NotificationStream, auth *Authenticator) {
	r.With(auth.QueryTokenAuth).Get("/notifications", func(w http.ResponseWriter, r *http.Request) {
		user, _ := userFromContext(r.Context())
		stream.Serve(w, r, user.ID)
	})
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports whether the database answers.
func Readyz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
