package http

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"potrosnja/internal/cache"
	"potrosnja/internal/core"
	applog "potrosnja/internal/log"
	"potrosnja/internal/services"
)

type annualResponse struct {
	Years []core.AnnualTotal `json:"years"`
}

func (s *Server) handleAnnualSummary(w http.ResponseWriter, r *http.Request) {
	key := cache.VersionedKey("annual", s.svc.Version())
	totals := s.annualCache.GetOrCompute(key, func() []core.AnnualTotal {
		if t := s.svc.AnnualTotals(); t != nil {
			return t
		}
		return []core.AnnualTotal{}
	})
	NewJSONResponse().Body(annualResponse{Years: totals}).Write(w)
}

// handleMonthlySummary serves the chart series for one field, default
// totalConsumption.
func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	field := core.FieldTotalConsumption
	if raw := r.URL.Query().Get("field"); raw != "" {
		f, err := core.ParseField(raw)
		if err != nil {
			ErrorFromDomain(err).Write(w)
			return
		}
		field = f
	}

	key := cache.VersionedKey("monthly", s.svc.Version(), string(field))
	cmp := s.monthlyCache.GetOrCompute(key, func() core.Comparison {
		return s.svc.MonthlyComparison(field)
	})
	NewJSONResponse().Body(cmp).Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := formatParam(r)
	if err != nil {
		ErrorFromDomain(err).Write(w)
		return
	}

	var buf bytes.Buffer
	if err := s.svc.Export(&buf, format); err != nil {
		s.writeError(w, r, applog.OpExport, err)
		return
	}

	name := fmt.Sprintf("potrosnja-%s.%s", time.Now().Format("20060102"), format.Extension())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type importResponse struct {
	Imported int                 `json:"imported"`
	Status   services.SyncStatus `json:"status"`
}

// handleImport replaces the whole set. A malformed document changes nothing.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	format, err := formatParam(r)
	if err != nil {
		ErrorFromDomain(err).Write(w)
		return
	}

	n, st, err := s.svc.Import(r.Context(), r.Body, format)
	if err != nil {
		s.writeError(w, r, applog.OpImport, err)
		return
	}
	s.purgeViews()
	NewJSONResponse().SyncStatus(st).Body(importResponse{Imported: n, Status: st}).Write(w)
}

type statusResponse struct {
	Status  services.SyncStatus `json:"status"`
	Records int                 `json:"records"`
	Version uint64              `json:"version"`
	Latest  *core.Period        `json:"latest,omitempty"`
	Years   core.YearRange      `json:"supportedYears"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Status()
	resp := statusResponse{
		Status:  st,
		Records: len(s.svc.Records()),
		Version: s.svc.Version(),
		Years:   s.svc.Years(),
	}
	if rec, ok := s.svc.Latest(); ok {
		p := rec.Period()
		resp.Latest = &p
	}
	NewJSONResponse().SyncStatus(st).Body(resp).Write(w)
}

// handleReload re-reads the primary store, falling back like at startup.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Load(r.Context())
	s.purgeViews()
	NewJSONResponse().SyncStatus(st).Body(st).Write(w)
}

// purgeViews drops cached views after a write. Version-scoped keys already
// stop stale hits; this only frees the memory.
func (s *Server) purgeViews() {
	s.annualCache.Purge()
	s.monthlyCache.Purge()
}
