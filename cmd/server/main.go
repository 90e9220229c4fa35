package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/liamcoop/triage/accountengine"
	"github.com/liamcoop/triage/action"
	"github.com/liamcoop/triage/internal/logger"
	"github.com/liamcoop/triage/planner"
	"github.com/liamcoop/triage/rules"
)

// Config assembles the server from the environment. An empty DatabaseURL
// runs everything on in-memory stores, which is the test and demo mode.
type Config struct {
	DatabaseURL string
	CacheTTL    time.Duration
	Planner     planner.Config
}

// ConfigFromEnv reads DATABASE_URL, RULES_CACHE_TTL_SECONDS, and the
// planner allow-list overrides ALLOWED_ACTIONS / DENIED_ACTIONS
// (comma-separated action types).
func ConfigFromEnv() Config {
	cfg := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Planner:     planner.DefaultConfig(),
	}

	if ttlStr := os.Getenv("RULES_CACHE_TTL_SECONDS"); ttlStr != "" {
		if secs, err := strconv.Atoi(ttlStr); err == nil && secs > 0 {
			cfg.CacheTTL = time.Duration(secs) * time.Second
		}
	}

	if allowed := parseActionList(os.Getenv("ALLOWED_ACTIONS")); allowed != nil {
		cfg.Planner.Allowed = allowed
	}
	if denied := parseActionList(os.Getenv("DENIED_ACTIONS")); denied != nil {
		cfg.Planner.Denied = denied
	}

	return cfg
}

func parseActionList(raw string) []action.Type {
	if raw == "" {
		return nil
	}
	var out []action.Type
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t := action.Type(part)
		if !action.Known(t) {
			logger.Warn("ignoring unknown action type in configuration", "type", part)
			continue
		}
		out = append(out, t)
	}
	return out
}

type Server struct {
	db        *sql.DB
	manager   *accountengine.Manager
	recStore  rules.RecommendationStore
	planStore planner.PlanStore
	planner   *planner.Planner
	router    *chi.Mux
}

func NewServer(cfg Config) (*Server, error) {
	var db *sql.DB
	var recStore rules.RecommendationStore
	var planStore planner.PlanStore

	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}

		recStore = rules.NewPostgresRecommendationStore(db)
		planStore, err = planner.NewPostgresPlanStore(db)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("DATABASE_URL not set, running with in-memory stores")
		recStore = rules.NewInMemoryRecommendationStore()
		planStore = planner.NewInMemoryPlanStore()
	}

	manager := accountengine.NewManager(db, rules.CacheConfig{TTL: cfg.CacheTTL})
	if err := manager.LoadAllAccounts(); err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	s := &Server{
		db:        db,
		manager:   manager,
		recStore:  recStore,
		planStore: planStore,
		planner:   planner.New(cfg.Planner),
	}
	s.setupRoutes()
	return s, nil
}

// NewServerWithDB builds a server over an already-open database connection
// with the default planner configuration. Used by integration tests.
func NewServerWithDB(db *sql.DB) (*Server, error) {
	planStore, err := planner.NewPostgresPlanStore(db)
	if err != nil {
		return nil, err
	}

	manager := accountengine.NewManager(db, rules.DefaultCacheConfig())
	if err := manager.LoadAllAccounts(); err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	s := &Server{
		db:        db,
		manager:   manager,
		recStore:  rules.NewPostgresRecommendationStore(db),
		planStore: planStore,
		planner:   planner.New(planner.DefaultConfig()),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(statusMetrics)

	r.Get("/api/v1/health", s.handleHealth)

	r.Post("/api/v1/evaluate", s.handleEvaluate)

	r.Route("/api/v1/recommendations", func(r chi.Router) {
		r.Get("/", s.handleListRecommendations)
		r.Route("/{recommendationId}", func(r chi.Router) {
			r.Get("/", s.handleGetRecommendation)
			r.Post("/review", s.handleReviewRecommendation)
			r.Post("/plan", s.handleCreatePlan)
		})
	})

	r.Route("/api/v1/plans", func(r chi.Router) {
		r.Get("/", s.handleListPlans)
		r.Get("/{planId}", s.handleGetPlan)
	})

	r.Route("/api/v1/accounts/{accountId}/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Post("/", s.handleCreateRule)
		r.Post("/test", s.handleTestRule)

		r.Route("/{ruleId}", func(r chi.Router) {
			r.Get("/", s.handleGetRule)
			r.Put("/", s.handleUpdateRule)
			r.Delete("/", s.handleDeleteRule)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// statusMetrics bumps the shared 4xx/5xx counters for every response.
func statusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		switch {
		case ww.Status() >= 500:
			logger.ErrorHttp5xx()
		case ww.Status() >= 400:
			logger.WarnHttp4xx(ww.Status())
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		AccountsLoaded: len(s.manager.ListAccounts()),
		Evaluations:    logger.Evaluations.Load(),
		PlansCreated:   logger.PlansCreated.Load(),
		Errors:         logger.TotalErrors.Load(),
		Warnings:       logger.TotalWarnings.Load(),
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.AccountID == "" {
		respondError(w, http.StatusBadRequest, "account_id is required", nil)
		return
	}

	engine, err := s.manager.GetEngine(req.AccountID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load account engine", err)
		return
	}

	start := time.Now()
	result := engine.Evaluate(req.Message)
	logger.Evaluations.Add(1)

	resp := EvaluateResponse{
		Result:         result,
		EvaluationTime: time.Since(start).String(),
	}

	if req.MessageID != "" {
		rec := &rules.Recommendation{
			ID:        uuid.NewString(),
			AccountID: req.AccountID,
			MessageID: req.MessageID,
			Result:    *result,
			Status:    rules.StatusGenerated,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.recStore.Add(rec); err != nil {
			respondError(w, http.StatusConflict, "recommendation already exists for message", err)
			return
		}
		resp.RecommendationID = rec.ID
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRecommendations(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		respondError(w, http.StatusBadRequest, "account_id query parameter is required", nil)
		return
	}

	filter := rules.RecommendationFilter{
		Status: rules.RecommendationStatus(r.URL.Query().Get("status")),
	}
	if mc := r.URL.Query().Get("min_confidence"); mc != "" {
		v, err := strconv.Atoi(mc)
		if err != nil {
			respondError(w, http.StatusBadRequest, "min_confidence must be an integer", err)
			return
		}
		filter.MinConfidence = v
	}
	if lim := r.URL.Query().Get("limit"); lim != "" {
		v, err := strconv.Atoi(lim)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit must be an integer", err)
			return
		}
		filter.Limit = v
	}

	recs, err := s.recStore.List(accountID, filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list recommendations", err)
		return
	}
	if recs == nil {
		recs = []*rules.Recommendation{}
	}
	respondJSON(w, http.StatusOK, RecommendationsListResponse{Recommendations: recs})
}

func (s *Server) handleGetRecommendation(w http.ResponseWriter, r *http.Request) {
	rec, err := s.recStore.Get(chi.URLParam(r, "recommendationId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "recommendation not found", err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleReviewRecommendation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recommendationId")

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Status != rules.StatusAccepted && req.Status != rules.StatusRejected {
		respondError(w, http.StatusBadRequest, "status must be accepted or rejected", nil)
		return
	}

	if _, err := s.recStore.Get(id); err != nil {
		respondError(w, http.StatusNotFound, "recommendation not found", err)
		return
	}
	if err := s.recStore.Review(id, req.Status); err != nil {
		respondError(w, http.StatusConflict, "recommendation cannot be reviewed", err)
		return
	}

	rec, err := s.recStore.Get(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load recommendation", err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	rec, err := s.recStore.Get(chi.URLParam(r, "recommendationId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "recommendation not found", err)
		return
	}

	var req CreatePlanRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	ruleNames := make([]string, len(rec.Result.MatchedRules))
	for i, ref := range rec.Result.MatchedRules {
		ruleNames[i] = ref.Name
	}

	plan := s.planner.Plan(planner.PlanRequest{
		RecommendationID: rec.ID,
		AccountID:        rec.AccountID,
		MessageID:        rec.MessageID,
		RuleNames:        ruleNames,
		ConfidenceScore:  rec.Result.ConfidenceScore,
		Simulate:         req.Simulate,
	}, rec.Result.RecommendedActions)

	if err := s.planStore.Add(plan); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store plan", err)
		return
	}

	logger.PlansCreated.Add(1)
	logger.BlockedSteps.Add(int64(len(plan.BlockedActions())))

	respondJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.planStore.Get(chi.URLParam(r, "planId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "plan not found", err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		respondError(w, http.StatusBadRequest, "account_id query parameter is required", nil)
		return
	}

	limit := 0
	if lim := r.URL.Query().Get("limit"); lim != "" {
		v, err := strconv.Atoi(lim)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit must be an integer", err)
			return
		}
		limit = v
	}

	plans, err := s.planStore.ListByAccount(accountID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list plans", err)
		return
	}
	if plans == nil {
		plans = []*planner.ExecutionPlan{}
	}
	respondJSON(w, http.StatusOK, PlansListResponse{Plans: plans})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	store, err := s.manager.Store(chi.URLParam(r, "accountId"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load account", err)
		return
	}

	list, err := store.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}
	if list == nil {
		list = []*rules.Rule{}
	}
	respondJSON(w, http.StatusOK, RulesListResponse{Rules: list})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	var rule rules.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := accountengine.ValidateDefinition(&rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule definition", err)
		return
	}

	store, err := s.manager.Store(accountID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load account", err)
		return
	}

	rule.ID = uuid.NewString()
	if err := store.Add(&rule); err != nil {
		respondError(w, http.StatusConflict, "failed to add rule", err)
		return
	}
	if err := s.manager.Reload(accountID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to reload rules", err)
		return
	}

	respondJSON(w, http.StatusCreated, &rule)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	store, err := s.manager.Store(chi.URLParam(r, "accountId"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load account", err)
		return
	}

	rule, err := store.Get(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	var rule rules.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	rule.ID = chi.URLParam(r, "ruleId")
	if err := accountengine.ValidateDefinition(&rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule definition", err)
		return
	}

	store, err := s.manager.Store(accountID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load account", err)
		return
	}

	if err := store.Update(&rule); err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	if err := s.manager.Reload(accountID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to reload rules", err)
		return
	}

	respondJSON(w, http.StatusOK, &rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	store, err := s.manager.Store(accountID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load account", err)
		return
	}

	if err := store.Delete(chi.URLParam(r, "ruleId")); err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	if err := s.manager.Reload(accountID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to reload rules", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleTestRule evaluates a candidate rule against a sample message
// without touching the account's stored rules.
func (s *Server) handleTestRule(w http.ResponseWriter, r *http.Request) {
	var req TestRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := accountengine.ValidateDefinition(&req.Rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule definition", err)
		return
	}

	candidate := req.Rule
	candidate.Active = true

	engine := rules.NewEngine(rules.NewRuleSet([]rules.Rule{candidate}))
	result := engine.Evaluate(req.Message)

	respondJSON(w, http.StatusOK, TestRuleResponse{
		Matched: len(result.MatchedRules) > 0,
		Result:  result,
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	respondJSON(w, status, resp)
}

func main() {
	server, err := NewServer(ConfigFromEnv())
	if err != nil {
		logger.Fatal("failed to create server", "error", err.Error())
	}
	if server.db != nil {
		defer server.db.Close()
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err.Error())
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err.Error())
	}
	if err := logger.Shutdown(ctx); err != nil {
		logger.Error("logger shutdown error", "error", err.Error())
	}

	logger.Info("server stopped")
}
