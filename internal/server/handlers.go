package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/absweep/absweep/internal/stats"
	"github.com/absweep/absweep/internal/store"
)

const defaultOwner = "default"

type HealthResponse struct {
	Status        string `json:"status"`
	RunningTests  int    `json:"running_tests"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	running, err := s.store.ListRunningTests(r.Context())
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		RunningTests:  len(running),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	})
}

type variantResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	IsControl   bool    `json:"is_control"`
	Impressions int64   `json:"impressions"`
	Conversions int64   `json:"conversions"`
	Rate        float64 `json:"rate"`
	CILower     float64 `json:"ci_lower"`
	CIUpper     float64 `json:"ci_upper"`
}

type testResponse struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Status              string            `json:"status"`
	ConfidenceThreshold float64           `json:"confidence_threshold"`
	MinimumSampleSize   int64             `json:"minimum_sample_size"`
	ScheduledEndAt      *time.Time        `json:"scheduled_end_at,omitempty"`
	StartedAt           *time.Time        `json:"started_at,omitempty"`
	EndedAt             *time.Time        `json:"ended_at,omitempty"`
	WinnerVariantID     *string           `json:"winner_variant_id,omitempty"`
	WinnerConfidence    *float64          `json:"winner_confidence,omitempty"`
	ResultsSummary      map[string]any    `json:"results_summary,omitempty"`
	Variants            []variantResponse `json:"variants,omitempty"`
}

func (s *Server) handleListTests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = defaultOwner
	}

	tests, err := s.store.ListTests(r.Context(), owner)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	responses := make([]testResponse, 0, len(tests))
	for _, test := range tests {
		responses = append(responses, toTestResponse(test, nil))
	}

	writeJSON(w, http.StatusOK, responses)
}

func (s *Server) handleTestDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/tests/")
	if name == "" || strings.Contains(name, "/") {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = defaultOwner
	}

	test, err := s.store.GetTestByName(r.Context(), owner, name)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	variants, err := s.store.GetVariants(r.Context(), test.ID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toTestResponse(test, variants))
}

// handleSweep is the inbound trigger for the external scheduler. When a sweep
// token is configured, the caller must present it; this mirrors a hosted
// cron's shared-secret verification.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.sweepToken != "" {
		token := r.Header.Get("Authorization")
		token = strings.TrimPrefix(token, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.sweepToken)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	summary, err := s.sweeper.Run(r.Context())
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func toTestResponse(test *store.Test, variants []*store.Variant) testResponse {
	resp := testResponse{
		ID:                  test.ID,
		Name:                test.Name,
		Status:              string(test.Status),
		ConfidenceThreshold: test.ConfidenceThreshold,
		MinimumSampleSize:   test.MinimumSampleSize,
		ScheduledEndAt:      test.ScheduledEndAt,
		StartedAt:           test.StartedAt,
		EndedAt:             test.EndedAt,
		WinnerVariantID:     test.WinnerVariantID,
		WinnerConfidence:    test.WinnerConfidence,
		ResultsSummary:      test.ResultsSummary,
	}

	for _, v := range variants {
		lower, upper := stats.WilsonInterval(v.Conversions, v.Impressions, 0.95)
		resp.Variants = append(resp.Variants, variantResponse{
			ID:          v.ID,
			Name:        v.Name,
			IsControl:   v.IsControl,
			Impressions: v.Impressions,
			Conversions: v.Conversions,
			Rate:        v.Rate(),
			CILower:     lower,
			CIUpper:     upper,
		})
	}

	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
