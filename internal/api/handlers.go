package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/matsen/wordvec/internal/embedding"
)

const msgUnavailable = "Embedding table is not available."

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	_, ok := s.ready()
	writeJSON(w, http.StatusOK, RootOut{
		Message: "Welcome to the word embedding API",
		Ready:   ok,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	out := HealthOut{
		Status:     "loading",
		UptimeSecs: int64(time.Since(s.started).Seconds()),
	}
	if t, ok := s.ready(); ok {
		out.Status = "ok"
		out.Words = t.Len()
		out.Dimensions = t.Dimensions()
		out.Source = t.Stats().Source
	}
	if s.memStats != nil {
		out.RSSBytes, out.CPUs = s.memStats()
	}

	status := http.StatusOK
	if out.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, out)
}

func (s *Server) handleEmbedding(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ready()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, msgUnavailable)
		return
	}

	word := embedding.NormalizeWord(r.PathValue("word"))
	if word == "" {
		writeError(w, http.StatusBadRequest, "Input word cannot be empty.")
		return
	}

	out := EmbeddingOut{Word: word}
	if emb, found := t.Lookup(word); found {
		out.Embedding = emb.Vector
		out.Found = true
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ready()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, msgUnavailable)
		return
	}

	word := embedding.NormalizeWord(r.PathValue("word"))
	if word == "" {
		writeError(w, http.StatusBadRequest, "Input word cannot be empty.")
		return
	}

	topN, err := s.parseTopN(r.URL.Query().Get("top_n"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	neighbors := t.NearestNeighbors(word, topN)
	out := make([]NeighborOut, len(neighbors))
	for i, n := range neighbors {
		out[i] = NeighborOut{Word: n.Word, Similarity: n.Similarity}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ready()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, msgUnavailable)
		return
	}

	q := r.URL.Query()
	a, b := embedding.NormalizeWord(q.Get("a")), embedding.NormalizeWord(q.Get("b"))
	if a == "" || b == "" {
		writeError(w, http.StatusBadRequest, "Query parameters a and b are required.")
		return
	}

	score, found := t.Similarity(a, b)
	writeJSON(w, http.StatusOK, SimilarityOut{A: a, B: b, Similarity: score, Found: found})
}

// parseTopN validates the top_n query parameter.
func (s *Server) parseTopN(raw string) (int, error) {
	if raw == "" {
		return s.defaultTopN, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("top_n must be an integer, got %q", raw)
	}
	if n < 1 || n > MaxTopN {
		return 0, fmt.Errorf("top_n must be between 1 and %d, got %d", MaxTopN, n)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorOut{Detail: detail})
}

// processStats reports resident memory of this process and the logical CPU
// count. Failures yield zeros.
func processStats() (uint64, int) {
	var rss uint64
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil {
			rss = mi.RSS
		}
	}
	cpus, _ := cpu.Counts(true)
	return rss, cpus
}
