package chi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/delay"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/geo"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/urgency"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/metrics"
	healthuc "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/usecase/health"
	planneruc "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/usecase/planner"
	searchuc "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/usecase/search"
)

// seekerGeohashPrecision is used when a search is started from coordinates.
const seekerGeohashPrecision = 9

// NeighborLimits bounds GET /v1/geohashes/{geohash}/neighbors.
type NeighborLimits struct {
	MaxLevel int
	MaxCells int
}

// Server holds the HTTP handlers.
type Server struct {
	planner        *planneruc.Service
	search         *searchuc.Service
	health         *healthuc.Service
	neighbors      NeighborLimits
	metricsHandler http.Handler
	now            func() time.Time
}

// NewServer creates an HTTP API server.
func NewServer(
	planner *planneruc.Service,
	search *searchuc.Service,
	health *healthuc.Service,
	neighbors NeighborLimits,
) *Server {
	if neighbors.MaxLevel <= 0 {
		neighbors.MaxLevel = 3
	}
	if neighbors.MaxCells <= 0 {
		neighbors.MaxCells = geo.CellCount(neighbors.MaxLevel)
	}
	return &Server{
		planner:        planner,
		search:         search,
		health:         health,
		neighbors:      neighbors,
		metricsHandler: promhttp.Handler(),
		now:            time.Now,
	}
}

// WithMetricsHandler replaces the default promhttp handler, e.g. for a private registry.
func (s *Server) WithMetricsHandler(h http.Handler) *Server {
	s.metricsHandler = h
	return s
}

// WithClock overrides time.Now for next_run_at hints.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// NewRouter wires middleware and routes.
func NewRouter(s *Server, apiKeys []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})

	s.Routes(r)
	return r
}

// Routes registers all endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/plans", s.CreatePlan)
		r.Post("/evaluations", s.CreateEvaluation)
		r.Post("/delays", s.CreateDelay)
		r.Get("/geohashes/{geohash}/neighbors", s.GetNeighbors)

		r.Post("/searches", s.StartSearch)
		r.Get("/searches/{id}", s.GetSearch)
		r.Delete("/searches/{id}", s.CancelSearch)
		r.Post("/searches/{id}/passes", s.ReportPass)
	})
}

// CreatePlan handles POST /v1/plans.
func (s *Server) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := urgency.Parse(req.Urgency)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if req.Geohash != "" {
		if err := geo.Validate(req.Geohash); err != nil {
			handleDomainError(w, r, err)
			return
		}
	}

	p := s.planner.Plan(r.Context(), planneruc.Request{
		BloodQuantity:    req.BloodQuantity,
		DonorsFound:      req.DonorsFound,
		RejectedDonors:   req.RejectedDonors,
		EligibleDonors:   req.EligibleDonors,
		Urgency:          u,
		DonationDateTime: req.DonationDateTime,
		Geohash:          req.Geohash,
	})
	writeJSON(w, http.StatusOK, planToResponse(p, s.now()))
}

// CreateEvaluation handles POST /v1/evaluations.
func (s *Server) CreateEvaluation(w http.ResponseWriter, r *http.Request) {
	var req EvaluationRequest
	if !decode(w, r, &req) {
		return
	}

	o := s.planner.Evaluate(req.Geohash, req.EligibleDonors, req.TotalDonorsToNotify)
	writeJSON(w, http.StatusOK, EvaluationResponse{
		Outcome:          string(o.Kind()),
		Action:           string(o.Action()),
		ShortenedGeohash: o.ShortenedGeohash(),
		Terminal:         o.IsTerminal(),
	})
}

// CreateDelay handles POST /v1/delays.
func (s *Server) CreateDelay(w http.ResponseWriter, r *http.Request) {
	var req DelayRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := urgency.Parse(req.Urgency)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if req.DonationDateTime.IsZero() {
		handleDomainError(w, r, domain.NewValidationError("donation_date_time", "is required"))
		return
	}

	seconds := s.planner.Delay(delay.Input{
		DonationDateTime:    req.DonationDateTime,
		RemainingBagsNeeded: req.RemainingBagsNeeded,
		Urgency:             u,
	})
	writeJSON(w, http.StatusOK, DelayResponse{
		DelaySeconds: seconds,
		NextRunAt:    s.now().Add(time.Duration(seconds) * time.Second).UTC(),
		Strategy:     s.planner.DelayStrategy(),
	})
}

// GetNeighbors handles GET /v1/geohashes/{geohash}/neighbors?level=N.
func (s *Server) GetNeighbors(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "geohash")
	if err := geo.Validate(hash); err != nil {
		handleDomainError(w, r, err)
		return
	}

	level := s.neighbors.MaxLevel
	if raw := r.URL.Query().Get("level"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > s.neighbors.MaxLevel {
			handleDomainError(w, r, domain.NewValidationError("level",
				fmt.Sprintf("must be between 0 and %d", s.neighbors.MaxLevel)))
			return
		}
		level = n
	}

	cells, reached := geo.Expand(hash, 0, level, s.neighbors.MaxCells, []string{hash})
	resp := NeighborsResponse{Geohash: hash, Level: reached, Cells: make([]NeighborCell, len(cells))}
	for i, c := range cells {
		resp.Cells[i] = NeighborCell{Geohash: c, DistanceMeters: geo.Distance(hash, c)}
	}
	writeJSON(w, http.StatusOK, resp)
}

// StartSearch handles POST /v1/searches.
func (s *Server) StartSearch(w http.ResponseWriter, r *http.Request) {
	var req StartSearchRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := urgency.Parse(req.Urgency)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	hash := req.Geohash
	if hash == "" && req.Latitude != nil && req.Longitude != nil {
		if !geo.ValidateCoordinates(*req.Latitude, *req.Longitude) {
			handleDomainError(w, r, domain.NewValidationError("latitude", "coordinates out of range"))
			return
		}
		hash = geo.Encode(*req.Latitude, *req.Longitude, seekerGeohashPrecision)
	}

	sess, err := s.search.Start(r.Context(), searchuc.StartInput{
		SeekerID:         req.SeekerID,
		RequestPostID:    req.RequestPostID,
		BloodQuantity:    req.BloodQuantity,
		Urgency:          u,
		DonationDateTime: req.DonationDateTime,
		Geohash:          hash,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/searches/"+sess.ID())
	writeJSON(w, http.StatusCreated, sessionToResponse(sess))
}

// GetSearch handles GET /v1/searches/{id}.
func (s *Server) GetSearch(w http.ResponseWriter, r *http.Request) {
	sess, err := s.search.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(sess))
}

// CancelSearch handles DELETE /v1/searches/{id}.
func (s *Server) CancelSearch(w http.ResponseWriter, r *http.Request) {
	sess, err := s.search.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(sess))
}

// ReportPass handles POST /v1/searches/{id}/passes.
func (s *Server) ReportPass(w http.ResponseWriter, r *http.Request) {
	var req PassRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.search.ReportPass(r.Context(), chi.URLParam(r, "id"), searchuc.PassResult{
		EligibleDonors: req.EligibleDonors,
		DonorsFound:    req.DonorsFound,
		RejectedDonors: req.RejectedDonors,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	resp := PassResponse{Session: sessionToResponse(res.Session)}
	if res.Plan.Outcome.Kind() != "" {
		p := planToResponse(res.Plan, res.Session.UpdatedAt())
		resp.Plan = &p
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	s.metricsHandler.ServeHTTP(w, r)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}
