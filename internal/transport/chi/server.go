// Package chi exposes the HTTP API on a go-chi router.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/skuindex/internal/domain"
	"github.com/kailas-cloud/skuindex/internal/domain/catalog"
	logpkg "github.com/kailas-cloud/skuindex/internal/logger"
	healthuc "github.com/kailas-cloud/skuindex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/skuindex/internal/usecase/search"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the product search and catalog routes.
type Server struct {
	parser        Parser
	search        Searcher
	legacy        LegacySearcher
	catalog       Catalog
	skus          SKUReader
	relay         Kicker
	health        HealthChecker
	logger        *zap.Logger
	limiter       *rate.Limiter
	apiKeys       []string
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	parser Parser,
	search Searcher,
	legacy LegacySearcher,
	catalog Catalog,
	skus SKUReader,
	relay Kicker,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		parser:  parser,
		search:  search,
		legacy:  legacy,
		catalog: catalog,
		skus:    skus,
		relay:   relay,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrSearchUnavailable, http.StatusServiceUnavailable, CodeSearchUnavailable),
	}
	return s
}

// WithRateLimit guards the search routes with a token bucket. rps <= 0 disables it.
func (s *Server) WithRateLimit(rps float64, burst int) *Server {
	if rps <= 0 {
		s.limiter = nil
		return s
	}
	if burst <= 0 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return s
}

// WithAPIKeys requires a bearer token on the write routes. Empty keys disable auth.
func (s *Server) WithAPIKeys(keys []string) *Server {
	s.apiKeys = keys
	return s
}

// Routes mounts every route on r.
func (s *Server) Routes(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/skus/{id}", s.GetSKU)

	r.Group(func(r gochi.Router) {
		r.Use(RateLimitMiddleware(s.limiter))
		r.Get("/products/search", s.SearchProducts)
		r.Get("/products/search/legacy", s.SearchLegacy)
		r.Get("/products/search/catalog", s.SearchCatalog)
	})

	r.Group(func(r gochi.Router) {
		r.Use(BearerAuthMiddleware(s.apiKeys))
		r.Post("/products", s.CreateProduct)
		r.Post("/products/{id}/sync", s.SyncProduct)
	})
}

// Handler returns a router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := gochi.NewRouter()
	s.Routes(r)
	return r
}

// SearchProducts handles GET /products/search.
func (s *Server) SearchProducts(w http.ResponseWriter, r *http.Request) {
	q, limit, ok := s.bindSearchParams(w, r)
	if !ok {
		return
	}

	opts, ok := bindRefinements(w, r)
	if !ok {
		return
	}
	if limit != nil {
		opts = append(opts, searchuc.WithLimit(*limit))
	}

	skus, err := s.search.Search(r.Context(), s.parser.Parse(q), opts...)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]SKUResponse, len(skus))
	for i := range skus {
		items[i] = skuToResponse(&skus[i])
	}
	writeJSON(w, http.StatusOK, SearchResponse{Items: items, Total: len(items)})
}

// SearchLegacy handles GET /products/search/legacy.
func (s *Server) SearchLegacy(w http.ResponseWriter, r *http.Request) {
	q, _, ok := s.bindSearchParams(w, r)
	if !ok {
		return
	}

	aggs, err := s.legacy.Search(r.Context(), s.parser.Parse(q))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]LegacyResponse, len(aggs))
	for i := range aggs {
		items[i] = legacyToResponse(&aggs[i])
	}
	writeJSON(w, http.StatusOK, LegacySearchResponse{Items: items, Total: len(items)})
}

// SearchCatalog handles GET /products/search/catalog. It answers from the
// relational catalog with a correlated EXISTS per option.
func (s *Server) SearchCatalog(w http.ResponseWriter, r *http.Request) {
	q, limit, ok := s.bindSearchParams(w, r)
	if !ok {
		return
	}
	n := defaultCatalogLimit
	if limit != nil {
		n = min(*limit, maxCatalogLimit)
	}

	products, err := s.catalog.SearchProducts(r.Context(), s.parser.Parse(q), n)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]CatalogProductResponse, len(products))
	for i := range products {
		items[i] = productToResponse(&products[i])
	}
	writeJSON(w, http.StatusOK, CatalogSearchResponse{Items: items, Total: len(items)})
}

const (
	defaultCatalogLimit = 20
	maxCatalogLimit     = 100
)

// bindRefinements reads in_stock, min_price and max_price.
func bindRefinements(w http.ResponseWriter, r *http.Request) ([]searchuc.Option, bool) {
	params := r.URL.Query()

	var inStock *bool
	if err := runtime.BindQueryParameter("form", true, false, "in_stock", params, &inStock); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid parameter in_stock: "+err.Error())
		return nil, false
	}
	var minPrice, maxPrice *float64
	if err := runtime.BindQueryParameter("form", true, false, "min_price", params, &minPrice); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid parameter min_price: "+err.Error())
		return nil, false
	}
	if err := runtime.BindQueryParameter("form", true, false, "max_price", params, &maxPrice); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid parameter max_price: "+err.Error())
		return nil, false
	}

	var opts []searchuc.Option
	if inStock != nil && *inStock {
		opts = append(opts, searchuc.WithInStock())
	}
	if minPrice != nil || maxPrice != nil {
		opts = append(opts, searchuc.WithPriceRange(minPrice, maxPrice))
	}
	return opts, true
}

func (s *Server) bindSearchParams(w http.ResponseWriter, r *http.Request) (string, *int, bool) {
	params := r.URL.Query()

	var q *string
	if err := runtime.BindQueryParameter("form", true, false, "q", params, &q); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid parameter q: "+err.Error())
		return "", nil, false
	}
	var limit *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", params, &limit); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid parameter limit: "+err.Error())
		return "", nil, false
	}
	if limit != nil && *limit <= 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "limit must be positive")
		return "", nil, false
	}

	if q == nil {
		return "", limit, true
	}
	return *q, limit, true
}

// CreateProduct handles POST /products.
func (s *Server) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var draft catalog.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	created, err := s.catalog.CreateProduct(r.Context(), &draft)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.relay.Kick()

	writeJSON(w, http.StatusCreated, CreatedResponse{ID: created.ID, Slug: created.Slug})
}

// SyncProduct handles POST /products/{id}/sync.
func (s *Server) SyncProduct(w http.ResponseWriter, r *http.Request) {
	id := gochi.URLParam(r, "id")
	if err := s.catalog.EnqueueSync(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.relay.Kick()

	writeJSON(w, http.StatusAccepted, AcceptedResponse{ProductID: id, Status: "queued"})
}

// GetSKU handles GET /skus/{id}.
func (s *Server) GetSKU(w http.ResponseWriter, r *http.Request) {
	sku, err := s.skus.Get(r.Context(), gochi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, skuToResponse(&sku))
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
		Status: string(report.Status),
		Checks: checks,
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

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
// Invalid input carries the validation reason, which is safe to return.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidInput) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrRateLimited,
		domain.ErrSearchUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
