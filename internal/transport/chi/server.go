package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shelf/internal/catalog"
	"github.com/kailas-cloud/shelf/internal/domain"
	"github.com/kailas-cloud/shelf/internal/domain/search/filter"
	"github.com/kailas-cloud/shelf/internal/domain/search/sortkey"
	logpkg "github.com/kailas-cloud/shelf/internal/logger"
	healthuc "github.com/kailas-cloud/shelf/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/shelf/internal/usecase/session"
	"github.com/kailas-cloud/shelf/internal/version"
)

const maxBodyBytes = 1 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the search session over HTTP.
type Server struct {
	session       *sessionuc.Session
	health        *healthuc.Service
	source        catalog.Source
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. source is used by catalog reloads.
func NewServer(
	session *sessionuc.Session,
	health *healthuc.Service,
	source catalog.Source,
	logger *zap.Logger,
) *Server {
	s := &Server{
		session: session,
		health:  health,
		source:  source,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		loadErrorHandler,
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrIndexNotReady, http.StatusServiceUnavailable, ErrorCodeNotReady),
		sentinelHandler(domain.ErrCatalogNotLoaded, http.StatusServiceUnavailable, ErrorCodeNotReady),
		sentinelHandler(domain.ErrSessionClosed, http.StatusServiceUnavailable, ErrorCodeUnavailable),
	}
	return s
}

// Mount registers all routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Post("/search", s.Search)
	r.Route("/catalog", func(r chi.Router) {
		r.Get("/", s.GetCatalog)
		r.Get("/price-bounds", s.GetPriceBounds)
		r.Post("/reload", s.ReloadCatalog)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
}

// Search handles POST /search. Each request is answered on its own, so
// concurrent clients never interfere.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	filters, err := filtersFromDTO(req.Filters)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	if req.Offset < 0 || (req.Limit != nil && *req.Limit < 0) {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "limit and offset must not be negative")
		return
	}

	results, err := s.session.Query(r.Context(), req.Query, filters, sortkey.Key(req.Sort))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Total:       len(results),
		Offset:      req.Offset,
		Results:     page(results, req.Offset, req.Limit),
		Suggestions: s.session.SuggestionsFor(results),
	})
}

// page slices out [offset, offset+limit) clamped to items.
func page[T any](items []T, offset int, limit *int) []T {
	start := min(offset, len(items))
	end := len(items)
	if limit != nil {
		end = min(start+*limit, end)
	}
	return items[start:end]
}

// GetCatalog handles GET /catalog.
func (s *Server) GetCatalog(w http.ResponseWriter, _ *http.Request) {
	items := s.session.Products()
	writeJSON(w, http.StatusOK, CatalogResponse{Total: len(items), Items: items})
}

// GetPriceBounds handles GET /catalog/price-bounds.
func (s *Server) GetPriceBounds(w http.ResponseWriter, _ *http.Request) {
	b := s.session.PriceBounds()
	writeJSON(w, http.StatusOK, PriceBoundsResponse{Min: b.Min, Max: b.Max})
}

// ReloadCatalog handles POST /catalog/reload: a full fetch, ingest and rebuild.
func (s *Server) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Load(r.Context(), s.source); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReloadResponse{Status: "ready", Products: s.session.State().Products})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:   string(report.Status),
		Checks:   checks,
		Products: report.Products,
		Version:  version.Version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrCatalogFetch,
		domain.ErrCatalogParse,
		domain.ErrIndexBuild,
		domain.ErrIndexNotReady,
		domain.ErrCatalogNotLoaded,
		domain.ErrSessionClosed,
		domain.ErrInvalidRequest,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// loadErrorHandler maps a failed catalog load to a status by its reason.
func loadErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var le *domain.LoadError
	if !errors.As(err, &le) {
		return false
	}

	status, code := http.StatusInternalServerError, ErrorCodeIndexBuild
	switch le.Reason {
	case domain.ReasonFetch:
		status, code = http.StatusBadGateway, ErrorCodeCatalogFetch
	case domain.ReasonParse:
		status, code = http.StatusUnprocessableEntity, ErrorCodeCatalogParse
	}
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: domain.ErrCatalogFetch.Error(),
		Reason:  string(le.Reason),
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	if r.Context().Err() != nil && errors.Is(err, r.Context().Err()) {
		return // client went away
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func filtersFromDTO(dto *SearchFilters) (filter.Filters, error) {
	if dto == nil {
		return filter.New(), nil
	}

	var opts []filter.Option
	if dto.PriceRange != nil {
		pr, err := filter.NewPriceRange(dto.PriceRange[0], dto.PriceRange[1])
		if err != nil {
			return filter.Filters{}, fmt.Errorf("filters.price_range: %w", err)
		}
		opts = append(opts, filter.WithPriceRange(pr))
	}
	if dto.Category != nil {
		opts = append(opts, filter.WithCategory(*dto.Category))
	}
	if dto.Rating != nil {
		opts = append(opts, filter.WithRating(*dto.Rating))
	}
	if dto.InStock != nil {
		opts = append(opts, filter.WithInStock(*dto.InStock))
	}
	return filter.New(opts...), nil
}
