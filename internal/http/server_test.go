package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potrosnja/internal/core"
	"potrosnja/internal/metrics"
	"potrosnja/internal/services"
	"potrosnja/internal/sheets/memory"
)

func newTestServer(t *testing.T, opts Options, records ...core.Record) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New(records...)
	n := 0
	svc := services.NewRecordService(services.Options{
		Primary: store,
		NewID: func() string {
			n++
			return fmt.Sprintf("rec-%d", n)
		},
	})
	svc.Load(context.Background())

	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := do(t, srv, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
	rec := do(t, srv, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyOffline(t *testing.T) {
	store := memory.New()
	store.Fail(assert.AnError)
	svc := services.NewRecordService(services.Options{Primary: store})
	svc.Load(context.Background())
	srv := NewServer(":0", svc, Options{})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rec := do(t, srv, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "offline", rec.Header().Get("X-Sync-State"))
}

func TestSubmitInsertThenMerge(t *testing.T) {
	srv, store := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/api/records", "application/json",
		`{"year":2024,"month":1,"householdState":100,"carState":20}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/records/rec-1", rec.Header().Get("Location"))

	rec = do(t, srv, http.MethodPost, "/api/records", "application/json",
		`{"year":2024,"month":2,"householdState":"150","carState":null,"bojlerConsumption":4}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	res := decode[services.Result](t, rec)
	assert.Equal(t, 50.0, res.Record.HouseholdConsumption)
	assert.Equal(t, 0.0, res.Record.CarConsumption, "absent car state on insert is zero")
	assert.Equal(t, 50.0, res.Record.TotalConsumption)
	assert.Equal(t, 4.0, res.Record.BojlerConsumption)
	assert.Equal(t, "ok", rec.Header().Get("X-Sync-State"))

	// form submission merging into February; blank household keeps 150
	form := url.Values{"year": {"2024"}, "month": {"2"}, "householdState": {""}, "carState": {"35"}}
	rec = do(t, srv, http.MethodPost, "/api/records", "application/x-www-form-urlencoded", form.Encode())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res = decode[services.Result](t, rec)
	assert.True(t, res.Merged)
	assert.Equal(t, "rec-2", res.Record.ID)
	assert.Equal(t, 150.0, res.Record.HouseholdState)
	assert.Equal(t, 15.0, res.Record.CarConsumption)
	assert.Equal(t, 65.0, res.Record.TotalConsumption)
	assert.Equal(t, 4.0, res.Record.BojlerConsumption)

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestSubmitOverride(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/api/records", "application/json",
		`{"year":2024,"month":3,"householdState":500,"householdConsumptionOverride":"12,5"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	res := decode[services.Result](t, rec)
	assert.Equal(t, 12.5, res.Record.HouseholdConsumption)
	assert.Equal(t, 12.5, res.Record.TotalConsumption)
}

func TestSubmitErrors(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	tests := []struct {
		name string
		ct   string
		body string
		code int
	}{
		{"invalid month", "application/json", `{"year":2024,"month":13}`, http.StatusUnprocessableEntity},
		{"year out of range", "application/json", `{"year":1999,"month":1}`, http.StatusUnprocessableEntity},
		{"negative state", "application/json", `{"year":2024,"month":1,"householdState":-5}`, http.StatusUnprocessableEntity},
		{"missing year", "application/json", `{"month":1}`, http.StatusBadRequest},
		{"broken json", "application/json", `{"year":`, http.StatusBadRequest},
		{"fractional month", "", "year=2024&month=1.5", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/records", tt.ct, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			body := decode[ErrorBody](t, rec)
			assert.NotEmpty(t, body.Error)
		})
	}
	assert.Empty(t, srv.svc.Records(), "rejected submissions never mutate")
}

func TestNonNumericBojlerCountsAsZero(t *testing.T) {
	srv, _ := newTestServer(t, Options{}, core.Record{ID: "a", Year: 2024, Month: 1, BojlerConsumption: 9})

	form := url.Values{"year": {"2024"}, "month": {"1"}, "bojlerConsumption": {"abc"}}
	rec := do(t, srv, http.MethodPost, "/api/records", "application/x-www-form-urlencoded", form.Encode())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, decode[services.Result](t, rec).Record.BojlerConsumption)
}

func TestGetUpdateDelete(t *testing.T) {
	srv, _ := newTestServer(t, Options{},
		core.Record{ID: "a", Year: 2024, Month: 1, HouseholdState: 100},
		core.Record{ID: "b", Year: 2024, Month: 2, HouseholdState: 160, HouseholdConsumption: 60, TotalConsumption: 60},
	)

	rec := do(t, srv, http.MethodGet, "/api/records/b", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 60.0, decode[core.Record](t, rec).HouseholdConsumption)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/records/zzz", "", "").Code)

	// moving b onto a's period is a conflict
	rec = do(t, srv, http.MethodPut, "/api/records/b", "application/json", `{"year":2024,"month":1,"householdState":160}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodPut, "/api/records/b", "application/json", `{"year":2024,"month":2,"householdState":130}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[services.Result](t, rec)
	assert.Equal(t, 30.0, res.Record.HouseholdConsumption)
	assert.False(t, res.Merged)

	assert.Equal(t, http.StatusNotFound,
		do(t, srv, http.MethodPut, "/api/records/zzz", "application/json", `{"year":2024,"month":5}`).Code)

	rec = do(t, srv, http.MethodDelete, "/api/records/a", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/api/records/a", "", "").Code)

	// neighbours keep their stored consumption
	rec = do(t, srv, http.MethodGet, "/api/records/b", "", "")
	assert.Equal(t, 30.0, decode[core.Record](t, rec).HouseholdConsumption)
}

func TestListIsChronological(t *testing.T) {
	srv, _ := newTestServer(t, Options{},
		core.Record{ID: "c", Year: 2024, Month: 3},
		core.Record{ID: "a", Year: 2023, Month: 12},
		core.Record{ID: "b", Year: 2024, Month: 1},
	)

	rec := do(t, srv, http.MethodGet, "/api/records", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[recordsResponse](t, rec)
	require.Equal(t, 3, list.Count)
	assert.Equal(t, []string{"a", "b", "c"}, []string{list.Records[0].ID, list.Records[1].ID, list.Records[2].ID})

	rec = do(t, srv, http.MethodGet, "/api/records/latest", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c", decode[core.Record](t, rec).ID)
}

func TestEmptyListAndLatest(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/api/records", "", "")
	assert.Contains(t, rec.Body.String(), `"records":[]`)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/records/latest", "", "").Code)
}

func TestSummariesFollowWrites(t *testing.T) {
	srv, _ := newTestServer(t, Options{},
		core.Record{ID: "a", Year: 2023, Month: 1, HouseholdConsumption: 10, TotalConsumption: 10},
		core.Record{ID: "b", Year: 2024, Month: 1, HouseholdConsumption: 20, TotalConsumption: 20},
	)

	rec := do(t, srv, http.MethodGet, "/api/summary/annual", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	annual := decode[annualResponse](t, rec)
	require.Len(t, annual.Years, 2)
	assert.Equal(t, 20.0, annual.Years[1].TotalConsumption)

	// cached view must not survive a write
	rec = do(t, srv, http.MethodPost, "/api/records", "application/json",
		`{"year":2024,"month":2,"householdConsumptionOverride":5}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	annual = decode[annualResponse](t, do(t, srv, http.MethodGet, "/api/summary/annual", "", ""))
	assert.Equal(t, 25.0, annual.Years[1].TotalConsumption)
	assert.Equal(t, 2, annual.Years[1].Months)

	rec = do(t, srv, http.MethodGet, "/api/summary/monthly?field=householdConsumption", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"years":[2023,2024]`)
	assert.Contains(t, body, `"values":[null,5]`, "missing months render as null")

	assert.Equal(t, http.StatusBadRequest,
		do(t, srv, http.MethodGet, "/api/summary/monthly?field=water", "", "").Code)
}

func TestExportImport(t *testing.T) {
	srv, store := newTestServer(t, Options{}, core.Record{ID: "a", Year: 2024, Month: 1, HouseholdState: 10})

	rec := do(t, srv, http.MethodGet, "/api/export?format=yaml", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "householdState: 10")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".yaml")

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/export?format=csv", "", "").Code)

	// missing fields: rejected, nothing changes
	rec = do(t, srv, http.MethodPost, "/api/import", "application/json", `[{"id":"x","year":2024}]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, srv.svc.Records(), 1)

	doc := `[{"id":"x","year":2024,"month":5,"householdState":1,"householdConsumption":0,
		"carState":0,"carConsumption":0,"bojlerConsumption":0,"totalConsumption":0},
		{"id":"y","year":2024,"month":6,"householdState":3,"householdConsumption":2,
		"carState":0,"carConsumption":0,"bojlerConsumption":1,"totalConsumption":2}]`
	rec = do(t, srv, http.MethodPost, "/api/import", "application/json", doc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[importResponse](t, rec).Imported)

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestStatusAndReload(t *testing.T) {
	srv, store := newTestServer(t, Options{}, core.Record{ID: "a", Year: 2024, Month: 4})

	rec := do(t, srv, http.MethodGet, "/api/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[statusResponse](t, rec)
	assert.Equal(t, services.SyncOK, st.Status.State)
	assert.Equal(t, 1, st.Records)
	require.NotNil(t, st.Latest)
	assert.Equal(t, core.Period{Year: 2024, Month: 4}, *st.Latest)

	require.NoError(t, store.Save(context.Background(), nil))
	rec = do(t, srv, http.MethodPost, "/api/reload", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, srv.svc.Records())
}

func TestWriteRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, Options{WritesPerMinute: 1})

	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/records", "application/json", `{"year":2024,"month":1}`).Code)
	rec := do(t, srv, http.MethodPost, "/api/records", "application/json", `{"year":2024,"month":2}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decode[ErrorBody](t, rec).Code)

	// reads are not limited
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/records", "", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Options{Metrics: metrics.New()})

	do(t, srv, http.MethodGet, "/api/records/missing", "", "")
	rec := do(t, srv, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/records/{id}"`)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorBody](t, rec).Code)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, srv, http.MethodPatch, "/api/records", "", "").Code)
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t, Options{CORSOrigins: []string{"http://dash.local"}})

	req := httptest.NewRequest(http.MethodGet, "/api/records", nil)
	req.Header.Set("Origin", "http://dash.local")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, "http://dash.local", rec.Header().Get("Access-Control-Allow-Origin"))
}
