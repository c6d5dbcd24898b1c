package catalog

import (
	"log/slog"
	"net/http"
)

// Server handles HTTP requests for invoices
type Server struct {
	service *Service
	mux     *http.ServeMux
	logger  *slog.Logger
	maxSize int64
}

// defaultMaxUpload bounds multipart uploads; high resolution scans run large.
const defaultMaxUpload = int64(50 << 20)

// NewServer creates a new Server with default mux
func NewServer(service *Service, logger *slog.Logger) *Server {
	return NewServerWithMux(service, http.NewServeMux(), logger)
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, mux *http.ServeMux, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		service: service,
		mux:     mux,
		logger:  logger,
		maxSize: defaultMaxUpload,
	}
	s.registerRoutes()
	return s
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

// registerRoutes registers all API routes, most specific paths first
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/invoices/{id}/file", s.handleGetInvoiceFile)
	s.mux.HandleFunc("GET /api/invoices/{id}/json", s.handleDownloadInvoiceJSON)
	s.mux.HandleFunc("GET /api/invoices/{id}/line-items/export", s.handleExportLineItems)
	s.mux.HandleFunc("GET /api/invoices/{id}/accounting", s.handleAccounting)
	s.mux.HandleFunc("GET /api/invoices/{id}", s.handleGetInvoice)
	s.mux.HandleFunc("PUT /api/invoices/{id}", s.handleUpdateInvoice)
	s.mux.HandleFunc("DELETE /api/invoices/{id}", s.handleDeleteInvoice)
	s.mux.HandleFunc("GET /api/invoices", s.handleListInvoices)
	s.mux.HandleFunc("POST /api/invoices", s.handleUploadInvoice)
	s.mux.HandleFunc("POST /api/invoices/test-ai", s.handleTestAI)

	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the mux wrapped with CORS handling
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}
