package ledger

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Server exposes the ledger over HTTP
type Server struct {
	service   *Service
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials; no configured credentials
// means no auth
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

// corsMiddleware adds CORS headers and answers preflight requests
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Ledger Scan"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// scanning and review
	s.mux.HandleFunc("POST /api/invoices/scan", s.requireAuth(s.handleScanInvoice))
	s.mux.HandleFunc("POST /api/invoices/parse", s.requireAuth(s.handleParseText))
	s.mux.HandleFunc("GET /api/drafts/{id}/image", s.requireAuth(s.handleGetImage(ImageDraft)))
	s.mux.HandleFunc("POST /api/drafts/{id}/edits", s.requireAuth(s.handleEditDraft))
	s.mux.HandleFunc("GET /api/drafts/{id}", s.requireAuth(s.handleGetDraft))
	s.mux.HandleFunc("DELETE /api/drafts/{id}", s.requireAuth(s.handleDiscardDraft))
	s.mux.HandleFunc("POST /api/reconcile", s.requireAuth(s.handleReconcile))

	// purchases and sales
	s.mux.HandleFunc("GET /api/purchases/{id}/image", s.requireAuth(s.handleGetImage(ImagePurchase)))
	s.mux.HandleFunc("GET /api/purchases/{id}", s.requireAuth(s.handleGetPurchase))
	s.mux.HandleFunc("DELETE /api/purchases/{id}", s.requireAuth(s.handleDeletePurchase))
	s.mux.HandleFunc("GET /api/purchases", s.requireAuth(s.handleListPurchases))
	s.mux.HandleFunc("POST /api/purchases", s.requireAuth(s.handleConfirmPurchase))
	s.mux.HandleFunc("GET /api/sales/{id}/image", s.requireAuth(s.handleGetImage(ImageSale)))
	s.mux.HandleFunc("GET /api/sales/{id}", s.requireAuth(s.handleGetSale))
	s.mux.HandleFunc("DELETE /api/sales/{id}", s.requireAuth(s.handleDeleteSale))
	s.mux.HandleFunc("GET /api/sales", s.requireAuth(s.handleListSales))
	s.mux.HandleFunc("POST /api/sales", s.requireAuth(s.handleConfirmSale))

	// parties and payments
	s.mux.HandleFunc("GET /api/parties/{id}/pending", s.requireAuth(s.handleCustomerPending))
	s.mux.HandleFunc("GET /api/parties/{id}", s.requireAuth(s.handleGetParty))
	s.mux.HandleFunc("DELETE /api/parties/{id}", s.requireAuth(s.handleDeleteParty))
	s.mux.HandleFunc("GET /api/parties", s.requireAuth(s.handleListParties))
	s.mux.HandleFunc("POST /api/parties", s.requireAuth(s.handleCreateParty))
	s.mux.HandleFunc("DELETE /api/payments/{id}", s.requireAuth(s.handleDeletePayment))
	s.mux.HandleFunc("GET /api/payments", s.requireAuth(s.handleListPayments))
	s.mux.HandleFunc("POST /api/payments", s.requireAuth(s.handleRecordPayment))

	// stock and alerts
	s.mux.HandleFunc("GET /api/stock/{id}/movements", s.requireAuth(s.handleStockMovements))
	s.mux.HandleFunc("GET /api/stock/low", s.requireAuth(s.handleLowStock))
	s.mux.HandleFunc("GET /api/stock/out", s.requireAuth(s.handleOutOfStock))
	s.mux.HandleFunc("POST /api/stock/adjustments", s.requireAuth(s.handleAdjustStock))
	s.mux.HandleFunc("POST /api/stock/opening", s.requireAuth(s.handleOpeningStock))
	s.mux.HandleFunc("GET /api/stock", s.requireAuth(s.handleListStock))
	s.mux.HandleFunc("GET /api/alerts", s.requireAuth(s.handleListAlerts))
	s.mux.HandleFunc("POST /api/alerts/sweep", s.requireAuth(s.handleSweep))

	s.mux.HandleFunc("GET /api/settings", s.requireAuth(s.handleGetSettings))
	s.mux.HandleFunc("PUT /api/settings", s.requireAuth(s.handleUpdateSettings))
}

// Handler returns the mux wrapped in the CORS middleware
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux)
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}
