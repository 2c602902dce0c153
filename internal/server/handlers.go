package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/tokradar/tokradar/pkg/feed"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.DB.GetStats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(stats)
}

func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	key, err := s.DB.LatestKey(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if key == "" {
		http.Error(w, "no snapshots stored", http.StatusNotFound)
		return
	}
	s.writeSnapshot(w, r, key)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w, r, r.PathValue("key"))
}

func (s *Server) writeSnapshot(w http.ResponseWriter, r *http.Request, key string) {
	rows, err := s.DB.ListSnapshot(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(rows) == 0 {
		http.Error(w, "no snapshot for key "+key, http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(rows)
}

// handleLive forwards a single upstream page without touching the database.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.Feed == nil {
		http.Error(w, "upstream not configured", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	limit := queryInt(q.Get("limit"), 50)
	offset := queryInt(q.Get("offset"), 0)
	days := queryInt(q.Get("days"), 7)
	region := q.Get("region")
	if region == "" {
		region = "US"
	}

	records, err := s.Feed.FetchPage(r.Context(), offset, limit, feed.Filters{
		Kind:   q.Get("kind"),
		Region: region,
		Days:   days,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	out := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		out = append(out, json.RawMessage(rec.Raw))
	}
	json.NewEncoder(w).Encode(out)
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
