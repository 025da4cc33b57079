// Package statusd implements dbgee's opt-in local introspection server:
// `dbgee status --http <addr>` exposes the session ledger's current state
// over HTTP instead of printing it once to stdout.
// Grounded on the reference agent's chi router construction
// (internal/server/rest/router.go) and its /healthz handler
// (cmd/agent/main.go), reduced to the three routes dbgee actually needs:
// there is no JWT middleware here because this server only ever listens
// on localhost and serves a single local user's own ledger.
package statusd

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dbgee/dbgee/internal/ledger"
)

var errNotANumber = errors.New("statusd: not a number")

// NewRouter returns a chi.Router exposing:
//
//	GET /healthz  – liveness probe
//	GET /wrapped  – currently-wrapped executables, from the ledger
//	GET /recent   – the n most recent ledger events (?n=, default 20)
func NewRouter(l *ledger.Ledger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealthz)
	r.Get("/wrapped", handleWrapped(l))
	r.Get("/recent", handleRecent(l))

	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleWrapped(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targets, err := l.WrappedTargets(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string][]string{"wrapped": targets})
	}
}

func handleRecent(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := 20
		if raw := r.URL.Query().Get("n"); raw != "" {
			if parsed, err := parsePositiveInt(raw); err == nil {
				n = parsed
			}
		}
		events, err := l.Recent(r.Context(), n)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string][]ledger.Event{"events": events})
	}
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errNotANumber
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
