// Package api implements the read-mostly HTTP surface over stored
// candles and predictions, plus the one-shot sync trigger, registered
// the way the teacher's gateway package wires a shared mux.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"candlesystem/internal/errs"
	"candlesystem/internal/gateway"
	"candlesystem/internal/ingestor"
	"candlesystem/internal/metrics"
	"candlesystem/internal/model"
)

// Deps bundles everything a route closure needs.
type Deps struct {
	Store   model.Store
	Symbols []string
	Syncer  *ingestor.Scheduler // nil disables POST /api/sync
	Hub     *gateway.Hub
	Gateway *metrics.Gateway
}

// RegisterRoutes wires every HTTP and WebSocket endpoint onto mux.
func RegisterRoutes(mux *http.ServeMux, deps Deps) {
	tracked := make(map[string]bool, len(deps.Symbols))
	for _, s := range deps.Symbols {
		tracked[strings.ToUpper(s)] = true
	}

	mux.HandleFunc("/health", handleHealth(deps))
	mux.HandleFunc("/api/symbols", handleSymbols(deps))
	mux.HandleFunc("/api/sync", handleSync(deps))
	mux.HandleFunc("/api/data/", handleData(deps, tracked))
	mux.HandleFunc("/api/predictions/", handlePredictions(deps, tracked))
	mux.HandleFunc("/api/stats/", handleStats(deps, tracked))
	mux.HandleFunc("/ws/updates", gateway.ServeWS(deps.Hub, deps.Gateway))
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{Success: false, Error: message})
}

// statusForErr maps a storage error's kind to an HTTP status, per the
// propagation policy: StorageUnavailable surfaces as 503, everything
// else unexpected as 500.
func statusForErr(err error) int {
	if errs.Is(err, errs.KindStorageUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		database := "connected"
		if len(deps.Symbols) > 0 {
			if _, err := deps.Store.Stats(r.Context(), deps.Symbols[0]); err != nil {
				status = "degraded"
				database = "unreachable"
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   status,
			"service":  "candlesystem-api",
			"database": database,
		})
	}
}

type symbolSummary struct {
	Symbol       string `json:"symbol"`
	TotalRecords int64  `json:"total_records"`
	FirstRecord  int64  `json:"first_record,omitempty"`
	LastRecord   int64  `json:"last_record,omitempty"`
	LastPrice    string `json:"last_price,omitempty"`
}

func handleSymbols(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := make([]symbolSummary, 0, len(deps.Symbols))
		for _, symbol := range deps.Symbols {
			stats, err := deps.Store.Stats(r.Context(), symbol)
			if err != nil {
				writeError(w, statusForErr(err), err.Error())
				return
			}
			summary := symbolSummary{Symbol: strings.ToUpper(symbol), TotalRecords: stats.CandleCount}
			if !stats.FirstOpenTime.IsZero() {
				summary.FirstRecord = stats.FirstOpenTime.UnixMilli()
			}
			if !stats.LastOpenTime.IsZero() {
				summary.LastRecord = stats.LastOpenTime.UnixMilli()
			}
			if last, ok, err := deps.Store.LastCandle(r.Context(), symbol); err == nil && ok {
				summary.LastPrice = last.Close.String()
			}
			out = append(out, summary)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type syncRequest struct {
	Symbol string `json:"symbol"`
}

func handleSync(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusBadRequest, "method not allowed")
			return
		}
		if deps.Syncer == nil {
			writeError(w, http.StatusServiceUnavailable, "sync is not available on this instance")
			return
		}

		var req syncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
		if symbol == "" {
			writeError(w, http.StatusBadRequest, "symbol is required")
			return
		}

		newRecords, err := deps.Syncer.SyncOne(r.Context(), symbol)
		if err != nil {
			writeError(w, statusForErr(err), err.Error())
			return
		}

		stats, err := deps.Store.Stats(r.Context(), symbol)
		if err != nil {
			writeError(w, statusForErr(err), err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"symbol":      symbol,
			"new_records": newRecords,
			"statistics":  stats,
		})
	}
}

// parseRangeQuery reads start_time/end_time (epoch milliseconds) and
// limit from the query string, defaulting to the last 24 hours and no
// limit.
func parseRangeQuery(r *http.Request) (start, end time.Time, limit int, err error) {
	q := r.URL.Query()
	end = time.Now().UTC()
	start = end.Add(-24 * time.Hour)

	if v := q.Get("start_time"); v != "" {
		ms, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			return start, end, 0, perr
		}
		start = time.UnixMilli(ms).UTC()
	}
	if v := q.Get("end_time"); v != "" {
		ms, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			return start, end, 0, perr
		}
		end = time.UnixMilli(ms).UTC()
	}
	if v := q.Get("limit"); v != "" {
		n, perr := strconv.Atoi(v)
		if perr != nil || n <= 0 {
			return start, end, 0, perr
		}
		limit = n
	}
	return start, end, limit, nil
}

func symbolFromPath(prefix, path string) string {
	return strings.ToUpper(strings.TrimPrefix(path, prefix))
}

func handleData(deps Deps, tracked map[string]bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := symbolFromPath("/api/data/", r.URL.Path)
		if symbol == "" {
			writeError(w, http.StatusBadRequest, "symbol is required")
			return
		}
		if !tracked[symbol] {
			writeError(w, http.StatusNotFound, "unknown symbol")
			return
		}
		start, end, limit, err := parseRangeQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid query parameters")
			return
		}

		candles, err := deps.Store.CandlesRange(r.Context(), symbol, start, end)
		if err != nil {
			writeError(w, statusForErr(err), err.Error())
			return
		}
		if limit > 0 && len(candles) > limit {
			candles = candles[len(candles)-limit:]
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"symbol":  symbol,
			"count":   len(candles),
			"data":    candles,
		})
	}
}

func handlePredictions(deps Deps, tracked map[string]bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := symbolFromPath("/api/predictions/", r.URL.Path)
		if symbol == "" {
			writeError(w, http.StatusBadRequest, "symbol is required")
			return
		}
		if !tracked[symbol] {
			writeError(w, http.StatusNotFound, "unknown symbol")
			return
		}
		start, end, limit, err := parseRangeQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid query parameters")
			return
		}

		preds, err := deps.Store.PredictionsRange(r.Context(), symbol, start, end)
		if err != nil {
			writeError(w, statusForErr(err), err.Error())
			return
		}
		if limit > 0 && len(preds) > limit {
			preds = preds[len(preds)-limit:]
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"symbol":  symbol,
			"count":   len(preds),
			"data":    preds,
		})
	}
}

func handleStats(deps Deps, tracked map[string]bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := symbolFromPath("/api/stats/", r.URL.Path)
		if symbol == "" {
			writeError(w, http.StatusBadRequest, "symbol is required")
			return
		}
		if !tracked[symbol] {
			writeError(w, http.StatusNotFound, "unknown symbol")
			return
		}

		stats, err := deps.Store.Stats(r.Context(), symbol)
		if err != nil {
			writeError(w, statusForErr(err), err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"statistics": stats,
		})
	}
}
