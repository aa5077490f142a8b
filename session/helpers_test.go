package session_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-storefront-gateway/credentials"
	"github.com/jrsteele09/go-storefront-gateway/credentials/memory"
	"github.com/jrsteele09/go-storefront-gateway/fallback"
	"github.com/jrsteele09/go-storefront-gateway/gateway"
	"github.com/jrsteele09/go-storefront-gateway/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const (
	userAccess  = "user-access"
	adminAccess = "admin-access"
)

// storefront is a fake backend with the auth endpoints of both realms
type storefront struct {
	*httptest.Server
	mu    sync.Mutex
	valid map[string]bool
	hits  map[string]int
}

func newStorefront(t *testing.T) *storefront {
	t.Helper()

	s := &storefront{
		valid: map[string]bool{userAccess: true, adminAccess: true},
		hits:  make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(s.count)
	r.Post(gateway.RouteUserLogin, func(w http.ResponseWriter, r *http.Request) {
		if !passwordIs(r, "secret") {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"user":   map[string]any{"id": "u-1", "email": "sara@example.com", "name": "سارة", "role": "customer"},
				"tokens": map[string]any{"accessToken": userAccess, "refreshToken": "user-refresh"},
			},
		})
	})
	r.Post(gateway.RouteAdminLogin, func(w http.ResponseWriter, r *http.Request) {
		if !passwordIs(r, "admin-secret") {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"token": adminAccess}})
	})
	r.Group(func(r chi.Router) {
		r.Use(s.requireValid)
		r.Get(gateway.RouteUserMe, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{
				"user": map[string]any{"id": "u-1", "email": "sara@example.com", "role": "customer"},
			}})
		})
		r.Get(gateway.RouteAdminMe, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{
				"admin": map[string]any{"_id": "a-1", "email": "ops@example.com", "role": "super_admin"},
			}})
		})
		r.Get("/orders/mine", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []any{}})
		})
	})
	r.Post(gateway.RouteUserLogout, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	r.Post(gateway.RouteAdminLogout, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	r.Get("/admin/orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "error": "forbidden"})
	})
	r.Get("/services", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "pq: relation \"services\" does not exist"})
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func (s *storefront) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *storefront) requireValid(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		ok := s.valid[token]
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "token expired"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// revoke makes the backend reject token from now on
func (s *storefront) revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.valid, token)
}

func (s *storefront) hitCount(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

func (s *storefront) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.hits {
		n += c
	}
	return n
}

func passwordIs(r *http.Request, want string) bool {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	return gjson.GetBytes(data, "password").String() == want && gjson.GetBytes(data, "email").String() != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// recorder captures notifier and navigator calls
type recorder struct {
	mu         sync.Mutex
	expired    []time.Duration
	dataErrors []string
	redirects  []string
}

func (r *recorder) SessionExpired(_ credentials.Realm, redirectIn time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, redirectIn)
}

func (r *recorder) DataLoadFailed(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dataErrors = append(r.dataErrors, message)
}

func (r *recorder) Redirect(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects = append(r.redirects, route)
}

func (r *recorder) expiredCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.expired)
}

func (r *recorder) redirectsSeen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.redirects...)
}

func (r *recorder) dataErrorsSeen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dataErrors...)
}

// transitions collects the kinds a controller moved through
type transitions struct {
	mu    sync.Mutex
	kinds []session.Kind
}

func (tr *transitions) record(s session.State) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.kinds = append(tr.kinds, s.Kind)
}

func (tr *transitions) countOf(k session.Kind) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	n := 0
	for _, kind := range tr.kinds {
		if kind == k {
			n++
		}
	}
	return n
}

type fixture struct {
	backend    *storefront
	store      *memory.Store
	client     *gateway.Client
	ctrl       *session.Controller
	rec        *recorder
	transition *transitions
}

func setupFixture(t *testing.T, opts ...session.Option) *fixture {
	t.Helper()

	backend := newStorefront(t)
	store := memory.New()
	client := gateway.New(backend.URL, store,
		gateway.WithFallback(fallback.Disabled{}),
		gateway.WithMetrics(prometheus.NewRegistry()),
	)
	rec := &recorder{}
	opts = append([]session.Option{
		session.WithNotifier(rec),
		session.WithNavigator(rec),
		session.WithRedirectDelay(20 * time.Millisecond),
	}, opts...)

	ctrl := session.New(client, store, opts...)
	t.Cleanup(ctrl.Close)

	tr := &transitions{}
	ctrl.Subscribe(tr.record)

	return &fixture{
		backend:    backend,
		store:      store,
		client:     client,
		ctrl:       ctrl,
		rec:        rec,
		transition: tr,
	}
}

func (f *fixture) setPair(t *testing.T, realm credentials.Realm, access, refresh string) {
	t.Helper()
	require.NoError(t, f.store.SetPair(realm, credentials.Pair{Access: access, Refresh: refresh}))
}

func (f *fixture) requireKind(t *testing.T, want session.Kind) {
	t.Helper()
	require.Equal(t, want.String(), f.ctrl.State().Kind.String())
}
