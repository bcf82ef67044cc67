package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-docs/internal/common"
	"github.com/joseph-ayodele/expense-docs/internal/entity"
	"github.com/joseph-ayodele/expense-docs/internal/export"
	"github.com/joseph-ayodele/expense-docs/internal/intake"
	"github.com/joseph-ayodele/expense-docs/internal/repository"
	"github.com/joseph-ayodele/expense-docs/internal/storage"
)

const defaultMaxBodyBytes int64 = 64 << 20

// Server serves the persistence endpoints over HTTP.
type Server struct {
	docs     repository.DocumentRepository
	store    storage.ObjectStore
	exporter *export.Service
	intake   *intake.Intake
	maxBody  int64
	logger   *slog.Logger
}

type Option func(*Server)

// WithMaxBodyBytes caps the whole multipart request, all files included.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

func New(docs repository.DocumentRepository, store storage.ObjectStore, exporter *export.Service, in *intake.Intake, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		docs:     docs,
		store:    store,
		exporter: exporter,
		intake:   in,
		maxBody:  defaultMaxBodyBytes,
		logger:   logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed handler wrapped with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /documentos/guardar/{$}", s.handleGuardar)
	mux.HandleFunc("GET /documentos/solicitud/{id}/{$}", s.handleListar)
	mux.HandleFunc("GET /documentos/solicitud/{id}/export.xlsx", s.handleExport)
	return s.withRequestLog(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(common.WithRequestID(r.Context(), reqID)))

		s.logger.Info("http.served",
			"req_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, entity.ErrorResponse{Error: msg})
}
