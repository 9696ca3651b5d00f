package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"navtrack/internal/domain"
	"navtrack/internal/engine"
	"navtrack/internal/infra"

	"github.com/shopspring/decimal"
)

const defaultRecentLimit = 15

// Server exposes the engine's read accessors as a JSON API for dashboard
// consumers. All endpoints are read-only snapshots; nothing here mutates the
// series.
type Server struct {
	engine *engine.Engine
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates the read API bound to addr.
func NewServer(addr string, eng *engine.Engine) *Server {
	s := &Server{
		engine: eng,
		logger: slog.Default().With("module", "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/series", s.handleSeries)
	mux.HandleFunc("GET /api/latest", s.handleLatest)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/recent", s.handleRecent)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("api listening", slog.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.GetAll())
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	sample, ok := s.engine.GetLatest()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "series is empty"})
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

// Summary is the dashboard's metric row: the latest pair of prices, their
// spread, and the change against the previous sample.
type Summary struct {
	Timestamp         time.Time       `json:"timestamp"`
	ReferencePrice    float64         `json:"reference_price"`
	ApproximatedValue float64         `json:"approximated_value"`
	Spread            float64         `json:"spread"`
	SpreadPct         decimal.Decimal `json:"spread_pct"`
	Change            *float64        `json:"change,omitempty"`
	ChangePct         *string         `json:"change_pct,omitempty"`
	SampleCount       int             `json:"sample_count"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	samples := s.engine.GetAll()
	if len(samples) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "series is empty"})
		return
	}

	latest := samples[len(samples)-1]
	sum := Summary{
		Timestamp:         latest.Timestamp,
		ReferencePrice:    latest.ReferencePrice,
		ApproximatedValue: latest.ApproximatedValue,
		Spread:            latest.Spread,
		SpreadPct:         latest.SpreadPercent(),
		SampleCount:       len(samples),
	}
	if len(samples) > 1 {
		prev := samples[len(samples)-2]
		change, changePct := priceChange(latest, prev)
		sum.Change = &change
		sum.ChangePct = &changePct
	}
	writeJSON(w, http.StatusOK, sum)
}

// RecentRow is one line of the dashboard's tracking table: a sample plus its
// change against the chronologically previous one.
type RecentRow struct {
	domain.Sample
	PrevPrice *float64 `json:"prev_price,omitempty"`
	Change    *float64 `json:"change,omitempty"`
	ChangePct *string  `json:"change_pct,omitempty"`
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	samples := s.engine.GetAll()
	rows := make([]RecentRow, 0, min(limit, len(samples)))
	// Newest first, each row compared to the sample before it in time.
	for i := len(samples) - 1; i >= 0 && len(rows) < limit; i-- {
		row := RecentRow{Sample: samples[i]}
		if i > 0 {
			prev := samples[i-1]
			change, changePct := priceChange(samples[i], prev)
			row.PrevPrice = &prev.ReferencePrice
			row.Change = &change
			row.ChangePct = &changePct
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, infra.GlobalMetrics.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, ok := s.engine.GetLatest()
	status := map[string]any{"status": "ok", "seeded": ok}
	writeJSON(w, http.StatusOK, status)
}

// priceChange returns the absolute and percentage change of the reference
// price between two samples. Percentage math goes through decimal, same as
// the spread calculation.
func priceChange(cur, prev domain.Sample) (float64, string) {
	change := cur.ReferencePrice - prev.ReferencePrice
	prevDec := decimal.NewFromFloat(prev.ReferencePrice)
	if prevDec.IsZero() {
		return change, "0"
	}
	pct := decimal.NewFromFloat(change).Div(prevDec).Mul(decimal.NewFromInt(100))
	return change, pct.StringFixed(4)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}
