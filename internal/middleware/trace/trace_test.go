package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "potrosnja/internal/log"
)

type observation struct {
	route, method string
	code          int
}

type recordingObserver struct{ seen []observation }

func (o *recordingObserver) ObserveHTTP(route, method string, code int, _ time.Duration) {
	o.seen = append(o.seen, observation{route, method, code})
}

func TestMiddleware_RequestIDAndRoute(t *testing.T) {
	obs := &recordingObserver{}
	m := NewMiddleware(func(*http.Request) string { return "1.2.3.4" }, nil, obs)

	var seenID string
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/records/abc", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotEmpty(t, seenID)
	assert.True(t, strings.HasPrefix(seenID, "req_"))
	assert.Equal(t, seenID, rec.Header().Get(RequestIDHeader))
	require.Len(t, obs.seen, 1)
	assert.Equal(t, observation{"/api/records/{id}", http.MethodGet, http.StatusNotFound}, obs.seen[0])
	assert.Equal(t, int64(1), m.GetMetrics().TotalRequests)
}

func TestMiddleware_KeepsUpstreamRequestID(t *testing.T) {
	m := NewMiddleware(nil, nil, nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "upstream-1", GetRequestID(r.Context()))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-1", rec.Header().Get(RequestIDHeader))
}

func TestLoggerMiddleware(t *testing.T) {
	base := applog.Default(applog.ComponentHTTP)
	h := NewMiddleware(nil, nil, nil).Middleware(LoggerMiddleware(base)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := applog.FromContext(r.Context())
			assert.Equal(t, applog.ComponentHTTP, logger.Component())
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len("req_")+16)
}
