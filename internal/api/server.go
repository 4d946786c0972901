package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

// Server wraps an HTTP server with the mini-app routing.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a Server that binds to the given address.
func NewServer(h *Handler, listenAddr string) *Server {
	r := mux.NewRouter()

	r.HandleFunc("/api/v1/health", h.Health).Methods("GET")

	// Payment endpoints.
	r.HandleFunc("/api/v1/initiate-payment", h.InitiatePayment).Methods("GET")
	r.HandleFunc("/api/v1/confirm-payment", h.ConfirmPayment).Methods("POST", "OPTIONS")

	// Session endpoints.
	r.HandleFunc("/api/v1/session", h.OpenSession).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/session/{userKey}", h.GetSession).Methods("GET")
	r.HandleFunc("/api/v1/session/{userKey}/move", h.SubmitMove).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/session/{userKey}/unlock", h.RequestUnlock).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/session/{userKey}/advance", h.Advance).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/session/{userKey}/restart", h.Restart).Methods("POST", "OPTIONS")

	// Progress endpoint.
	r.HandleFunc("/api/v1/progress/{userKey}", h.GetProgress).Methods("GET")

	srv := &http.Server{
		Addr:    listenAddr,
		Handler: corsMiddleware(r),
	}

	return &Server{httpServer: srv}
}

// Start begins listening for HTTP connections. Blocks until the server stops.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for the mini-app webview.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
