// Package api exposes the comparison data over HTTP. All endpoints are
// read-only; ingestion and analysis stay on the CLI side.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/benchmark-cli/internal/model"
	"github.com/sells-group/benchmark-cli/internal/store"
)

// Server routes comparison queries to the store.
type Server struct {
	router chi.Router
	store  store.Store
}

// NewServer builds the router. CORS is wide open: the frontend is served
// from a different origin in every deployment we run.
func NewServer(st store.Store) *Server {
	s := &Server{
		router: chi.NewRouter(),
		store:  st,
	}

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(requestLogger)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/banks", s.handleBanks)
	s.router.Get("/api/products", s.handleProducts)
	s.router.Get("/api/criteria", s.handleCriteria)
	s.router.Get("/api/compare", s.handleCompare)
	s.router.Get("/api/snapshots", s.handleSnapshots)
	s.router.Get("/api/recommendations", s.handleRecommendations)
	s.router.Get("/api/status", s.handleStatus)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		zap.L().Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := s.store.ListBanks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if banks == nil {
		banks = []model.Bank{}
	}
	writeJSON(w, http.StatusOK, banks)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleCriteria(w http.ResponseWriter, r *http.Request) {
	criteria, err := s.store.ListCriteria(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if criteria == nil {
		criteria = []model.Criterion{}
	}
	writeJSON(w, http.StatusOK, criteria)
}

// handleCompare returns the comparison matrix for the latest active
// completed snapshot. When the product or snapshot is missing it falls back
// to deterministic demo data marked is_mock so the frontend stays usable
// against an empty database.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	productID := queryDefault(r, "product", "deposits")
	banks := splitParam(queryDefault(r, "banks", "sber"))
	criteria := splitParam(r.URL.Query().Get("criteria"))

	result, err := s.store.LatestComparison(r.Context(), productID, banks, criteria)
	if errors.Is(err, store.ErrProductNotFound) || errors.Is(err, store.ErrNoActiveSnapshot) {
		zap.L().Warn("no comparison data, serving mock",
			zap.String("product", productID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, mockComparison(productID, banks, criteria))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product")
	snapshots, err := s.store.ListSnapshots(r.Context(), productID, 10)
	if err != nil {
		writeError(w, err)
		return
	}
	if snapshots == nil {
		snapshots = []model.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(snapshots),
		"results": snapshots,
	})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.ListRecommendations(r.Context(), store.RecommendationFilter{
		Competitor: r.URL.Query().Get("competitor"),
		Product:    r.URL.Query().Get("product"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []model.Recommendation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(recs),
		"results": recs,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      counts,
		"message":   "API is running",
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func queryDefault(r *http.Request, key, fallback string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return fallback
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
