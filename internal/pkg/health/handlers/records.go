package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/Vodeneev/ttmonitor/internal/pkg/models"
	"github.com/Vodeneev/ttmonitor/internal/pkg/storage"
)

// RecordReader is the read side of the match store.
type RecordReader interface {
	Get(ctx context.Context, id string) (*models.MatchRecord, error)
	ByStatus(ctx context.Context, status models.MatchStatus) ([]*models.MatchRecord, error)
	ChangedWithin(ctx context.Context, f models.Facet, threshold int, d time.Duration) ([]*models.MatchRecord, error)
	OddsHistory(ctx context.Context, id string) ([]models.OddsEntry, error)
	ScoreProgression(ctx context.Context, id string) ([]models.ScoreEntry, error)
	Stats(ctx context.Context) (storage.Stats, error)
}

// Records serves stored match records over HTTP.
type Records struct {
	store RecordReader
}

func NewRecords(store RecordReader) *Records {
	return &Records{store: store}
}

// Register mounts the record routes on r.
func (h *Records) Register(r *mux.Router) {
	r.HandleFunc("/stats", h.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/records", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/records/changed", h.handleChanged).Methods(http.MethodGet)
	r.HandleFunc("/records/{id}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/records/{id}/odds", h.handleOdds).Methods(http.MethodGet)
	r.HandleFunc("/records/{id}/score", h.handleScore).Methods(http.MethodGet)
}

// handleList returns all records, or those with ?status=live|upcoming|ended.
func (h *Records) handleList(w http.ResponseWriter, r *http.Request) {
	status := models.MatchStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(string(status)))
		return
	}
	recs, err := h.store.ByStatus(r.Context(), status)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(recs),
		"records": nonNil(recs),
	})
}

// handleChanged returns records updated within ?within= (default 1h) whose
// ?facet= history (default odds) is longer than ?min= (default 1).
func (h *Records) handleChanged(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	facet := models.FacetOdds
	if f := q.Get("facet"); f != "" {
		facet = models.Facet(f)
	}
	switch facet {
	case models.FacetOdds, models.FacetScore, models.FacetStatus:
	default:
		writeError(w, http.StatusBadRequest, "unknown facet "+strconv.Quote(string(facet)))
		return
	}

	within := time.Hour
	if v := q.Get("within"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid within "+strconv.Quote(v))
			return
		}
		within = d
	}

	threshold := 1
	if v := q.Get("min"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid min "+strconv.Quote(v))
			return
		}
		threshold = n
	}

	recs, err := h.store.ChangedWithin(r.Context(), facet, threshold, within)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"facet":   facet,
		"count":   len(recs),
		"records": nonNil(recs),
	})
}

func (h *Records) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Records) handleOdds(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	hist, err := h.store.OddsHistory(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"match_id": id,
		"count":    len(hist),
		"history":  nonNil(hist),
	})
}

func (h *Records) handleScore(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	hist, err := h.store.ScoreProgression(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"match_id": id,
		"count":    len(hist),
		"history":  nonNil(hist),
	})
}

func (h *Records) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Stats(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Records) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	slog.Error("Record query failed", "error", err)
	writeError(w, http.StatusInternalServerError, "store unavailable")
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
