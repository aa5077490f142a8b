package gateway_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-storefront-gateway/credentials"
	"github.com/jrsteele09/go-storefront-gateway/credentials/memory"
	"github.com/jrsteele09/go-storefront-gateway/fallback"
	"github.com/jrsteele09/go-storefront-gateway/gateway"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testSigningSecret = "storefront-test-secret"

// hit records one request seen by the fake backend
type hit struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
	Body          string
}

// backend is a fake storefront API that records every request it receives
type backend struct {
	*httptest.Server
	mu   sync.Mutex
	hits []hit
}

func newBackend(t *testing.T, routes func(r chi.Router)) *backend {
	t.Helper()

	b := &backend{}
	r := chi.NewRouter()
	r.Use(b.record)
	routes(r)
	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Close)
	return b
}

func (b *backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(data))

		b.mu.Lock()
		b.hits = append(b.hits, hit{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get(gateway.RequestIDHeader),
			Body:          string(data),
		})
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// count returns how many requests reached method+path
func (b *backend) count(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, h := range b.hits {
		if h.Method == method && h.Path == path {
			n++
		}
	}
	return n
}

func (b *backend) hitsFor(method, path string) []hit {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []hit
	for _, h := range b.hits {
		if h.Method == method && h.Path == path {
			out = append(out, h)
		}
	}
	return out
}

func (b *backend) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.hits)
}

// requireBearer only lets requests through whose bearer token is in accepted,
// answering 401 (or the given status) otherwise.
func requireBearer(status int, accepted ...string) func(http.Handler) http.Handler {
	ok := make(map[string]bool, len(accepted))
	for _, a := range accepted {
		ok[a] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || !ok[parts[1]] {
				writeJSON(w, status, map[string]any{"success": false, "error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func refreshReply(access, refresh string) map[string]any {
	tokens := map[string]any{"accessToken": access}
	if refresh != "" {
		tokens["refreshToken"] = refresh
	}
	return map[string]any{"success": true, "data": map[string]any{"tokens": tokens}}
}

type fixture struct {
	store   *memory.Store
	client  *gateway.Client
	backend *backend
}

func setupFixture(t *testing.T, routes func(r chi.Router), opts ...gateway.Option) *fixture {
	t.Helper()

	b := newBackend(t, routes)
	store := memory.New()
	opts = append([]gateway.Option{
		gateway.WithFallback(fallback.Disabled{}),
		gateway.WithMetrics(prometheus.NewRegistry()),
	}, opts...)

	return &fixture{
		store:   store,
		client:  gateway.New(b.URL, store, opts...),
		backend: b,
	}
}

func (f *fixture) setPair(t *testing.T, realm credentials.Realm, access, refresh string) {
	t.Helper()
	require.NoError(t, f.store.SetPair(realm, credentials.Pair{Access: access, Refresh: refresh}))
}

// mintToken signs a JWT for the given subject expiring at exp
func mintToken(t *testing.T, subject string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": exp.Unix(),
		"jti": uuid.New().String(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningSecret))
	require.NoError(t, err)
	return signed
}
