// Package api serves comparison reports over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/entityshape/internal/model"
)

// FailureMessage is the error text returned to clients when a comparison fails
const FailureMessage = "translation failed"

const requestIDHeader = "X-Request-ID"

// Comparer runs comparisons for the handlers
type Comparer interface {
	Compare(ctx context.Context, schemaID, entityID, lang string) (*model.Report, error)
	CompareMany(ctx context.Context, schemaIDs []string, entityID, lang string) (*model.MultiReport, error)
}

// Server exposes /api, /api/v2 and /healthz
type Server struct {
	comparer Comparer
	config   model.ServerConfig
	logger   *zap.Logger
	split    func(string) []string
}

// NewServer creates a server. split parses the comma separated entityschema
// parameter of /api/v2.
func NewServer(comparer Comparer, cfg model.ServerConfig, split func(string) []string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		comparer: comparer,
		config:   cfg,
		logger:   logger,
		split:    split,
	}
}

// Handler returns the routed handler with request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api", s.handleCompare)
	mux.HandleFunc("GET /api/v2", s.handleCompareMany)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return s.withRequestLog(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

type errorBody struct {
	Schema string `json:"schema,omitempty"`
	Entity string `json:"entity,omitempty"`
	Error  string `json:"error"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	schemaID := strings.TrimSpace(q.Get("entityschema"))
	entityID := strings.TrimSpace(q.Get("entity"))
	if missing := missingParams(schemaID, entityID); missing != "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: missing})
		return
	}

	report, err := s.comparer.Compare(r.Context(), schemaID, entityID, q.Get("language"))
	if err != nil {
		s.logger.Error("comparison failed",
			zap.String("request_id", requestID(r)),
			zap.String("schema", schemaID),
			zap.String("entity", entityID),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Schema: schemaID, Entity: entityID, Error: FailureMessage})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCompareMany(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rawSchemas := strings.TrimSpace(q.Get("entityschema"))
	entityID := strings.TrimSpace(q.Get("entity"))
	if missing := missingParams(rawSchemas, entityID); missing != "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: missing})
		return
	}
	schemaIDs := s.split(rawSchemas)
	if len(schemaIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing parameter: entityschema"})
		return
	}

	report, err := s.comparer.CompareMany(r.Context(), schemaIDs, entityID, q.Get("language"))
	if err != nil {
		s.logger.Error("comparison failed",
			zap.String("request_id", requestID(r)),
			zap.Strings("schemas", schemaIDs),
			zap.String("entity", entityID),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Schema: rawSchemas, Entity: entityID, Error: FailureMessage})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func missingParams(schema, entity string) string {
	var missing []string
	if schema == "" {
		missing = append(missing, "entityschema")
	}
	if entity == "" {
		missing = append(missing, "entity")
	}
	if len(missing) == 0 {
		return ""
	}
	return "missing parameter: " + strings.Join(missing, ", ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, FailureMessage, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

// withRequestLog tags each request with an id, allows cross-origin reads
// and logs method, path, status and latency
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		w.Header().Set("Access-Control-Allow-Origin", "*")

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))

		s.logger.Info("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("query", r.URL.RawQuery),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}
