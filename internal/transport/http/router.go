package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"quiz-session-engine/internal/auth"
)

// NewRouter wires the REST API, the websocket endpoint and the health check behind the
// token middleware.
func NewRouter(api *API, ws *WSHandler, tokens *auth.Tokens) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", api.Health).Methods(http.MethodGet)

	authed := r.NewRoute().Subrouter()
	authed.Use(auth.Middleware(tokens))
	authed.HandleFunc("/ws", ws.ServeWS).Methods(http.MethodGet)
	api.Register(authed)

	return r
}
