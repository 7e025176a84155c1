package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matsen/wordvec/internal/embedding"
)

const fixture = `cat 1.0 0.0 0.5
dog 0.9 0.1 0.4
car 0.0 1.0 -0.5
`

func testTable(t *testing.T) *embedding.Table {
	t.Helper()
	table, err := embedding.LoadReader(context.Background(), strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("loading fixture: %v", err)
	}
	return table
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, table *embedding.Table, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	s := NewServer(table, opts...)
	s.memStats = func() (uint64, int) { return 1024, 2 }
	return s
}

func do(t *testing.T, h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestEmbeddingEndpoint(t *testing.T) {
	h := newTestServer(t, testTable(t)).Handler()

	t.Run("found, normalized", func(t *testing.T) {
		rec := do(t, h, "GET", "/embedding/CAT", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		out := decode[EmbeddingOut](t, rec)
		if out.Word != "cat" || !out.Found || len(out.Embedding) != 3 {
			t.Errorf("body = %+v", out)
		}
	})

	t.Run("not found", func(t *testing.T) {
		rec := do(t, h, "GET", "/embedding/zzz_not_a_real_word", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"embeddings":null`) {
			t.Errorf("expected null embeddings in %s", rec.Body.String())
		}
		out := decode[EmbeddingOut](t, rec)
		if out.Found || out.Embedding != nil {
			t.Errorf("body = %+v, want found=false with null embedding", out)
		}
	})

	t.Run("blank word", func(t *testing.T) {
		for _, target := range []string{"/embedding/%20%20", "/embedding/"} {
			rec := do(t, h, "GET", target, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: status = %d, want 400", target, rec.Code)
			}
			if out := decode[ErrorOut](t, rec); out.Detail == "" {
				t.Errorf("%s: missing detail", target)
			}
		}
	})
}

func TestNeighborsEndpoint(t *testing.T) {
	h := newTestServer(t, testTable(t)).Handler()

	t.Run("top 1", func(t *testing.T) {
		rec := do(t, h, "GET", "/nearest-neighbors/cat?top_n=1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		out := decode[[]NeighborOut](t, rec)
		if len(out) != 1 || out[0].Word != "dog" || math.Abs(out[0].Similarity-0.994) > 1e-3 {
			t.Errorf("body = %+v", out)
		}
	})

	t.Run("default top_n returns all available", func(t *testing.T) {
		out := decode[[]NeighborOut](t, do(t, h, "GET", "/nearest-neighbors/cat", nil))
		if len(out) != 2 {
			t.Errorf("len = %d, want 2", len(out))
		}
	})

	t.Run("unknown word is an empty list", func(t *testing.T) {
		rec := do(t, h, "GET", "/nearest-neighbors/zzz_not_a_real_word", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
			t.Errorf("body = %s, want []", body)
		}
	})

	t.Run("bad top_n", func(t *testing.T) {
		for _, q := range []string{"0", "-1", "abc", "1001"} {
			rec := do(t, h, "GET", "/nearest-neighbors/cat?top_n="+q, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("top_n=%s: status = %d, want 400", q, rec.Code)
			}
		}
	})
}

func TestSimilarityEndpoint(t *testing.T) {
	h := newTestServer(t, testTable(t)).Handler()

	out := decode[SimilarityOut](t, do(t, h, "GET", "/similarity?a=cat&b=Dog", nil))
	if !out.Found || math.Abs(out.Similarity-0.994) > 1e-3 {
		t.Errorf("body = %+v", out)
	}

	out = decode[SimilarityOut](t, do(t, h, "GET", "/similarity?a=cat&b=zzz", nil))
	if out.Found || out.Similarity != 0 {
		t.Errorf("body = %+v, want found=false", out)
	}

	if rec := do(t, h, "GET", "/similarity?a=cat", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUnavailable(t *testing.T) {
	empty, err := embedding.NewTable(nil, nil, embedding.LoadStats{})
	if err != nil {
		t.Fatal(err)
	}

	for name, s := range map[string]*Server{
		"nil table":   newTestServer(t, nil),
		"empty table": newTestServer(t, empty),
	} {
		t.Run(name, func(t *testing.T) {
			h := s.Handler()
			for _, target := range []string{"/embedding/cat", "/nearest-neighbors/cat", "/similarity?a=a&b=b", "/healthz"} {
				if rec := do(t, h, "GET", target, nil); rec.Code != http.StatusServiceUnavailable {
					t.Errorf("%s: status = %d, want 503", target, rec.Code)
				}
			}
			out := decode[RootOut](t, do(t, h, "GET", "/", nil))
			if out.Ready {
				t.Error("root should report ready=false")
			}
		})
	}
}

func TestSetTable(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	if rec := do(t, h, "GET", "/embedding/cat", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d before SetTable, want 503", rec.Code)
	}
	s.SetTable(testTable(t))
	if rec := do(t, h, "GET", "/embedding/cat", nil); rec.Code != http.StatusOK {
		t.Errorf("status = %d after SetTable, want 200", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, testTable(t)).Handler()

	rec := do(t, h, "GET", "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	out := decode[HealthOut](t, rec)
	if out.Status != "ok" || out.Words != 3 || out.Dimensions != 3 || out.RSSBytes != 1024 || out.CPUs != 2 {
		t.Errorf("body = %+v", out)
	}
}

func TestRequestID(t *testing.T) {
	h := newTestServer(t, testTable(t)).Handler()

	rec := do(t, h, "GET", "/", nil)
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a generated request ID")
	}

	rec = do(t, h, "GET", "/", map[string]string{RequestIDHeader: "abc-123"})
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request ID = %q, want abc-123", got)
	}
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, testTable(t), WithAllowedOrigins([]string{"http://localhost:8501"})).Handler()

	rec := do(t, h, "GET", "/", map[string]string{"Origin": "http://localhost:8501"})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:8501" {
		t.Errorf("Allow-Origin = %q", got)
	}

	rec = do(t, h, "GET", "/", map[string]string{"Origin": "http://evil.example"})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q for disallowed origin", got)
	}

	rec = do(t, h, "OPTIONS", "/embedding/cat", map[string]string{
		"Origin":                        "http://localhost:8501",
		"Access-Control-Request-Method": "GET",
	})
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, testTable(t), WithRateLimit(0.001, 2)).Handler()

	for i := 0; i < 2; i++ {
		if rec := do(t, h, "GET", "/", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}
	rec := do(t, h, "GET", "/", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestServe_Shutdown(t *testing.T) {
	s := newTestServer(t, testTable(t))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/nearest-neighbors/cat?top_n=1")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
