package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"potrosnja/internal/core"
	applog "potrosnja/internal/log"
	"potrosnja/internal/services"
)

// recordsResponse lists records in chronological order.
type recordsResponse struct {
	Records []core.Record       `json:"records"`
	Count   int                 `json:"count"`
	Status  services.SyncStatus `json:"status"`
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records := s.svc.Chronological()
	if records == nil {
		records = []core.Record{}
	}
	st := s.svc.Status()
	NewJSONResponse().
		SyncStatus(st).
		Body(recordsResponse{Records: records, Count: len(records), Status: st}).
		Write(w)
}

func (s *Server) handleLatestRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.svc.Latest()
	if !ok {
		NotFoundError("no records yet").Write(w)
		return
	}
	NewJSONResponse().Body(rec).Write(w)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		ErrorFromDomain(err).Write(w)
		return
	}
	NewJSONResponse().Body(rec).Write(w)
}

// handleSubmitRecord inserts a new period (201) or merges into an existing
// one (200).
func (s *Server) handleSubmitRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	in, err := ParseSubmission(r)
	if err != nil {
		s.writeError(w, r, applog.OpParse, err)
		return
	}

	res, err := s.svc.Submit(r.Context(), in)
	if err != nil {
		s.writeError(w, r, applog.OpInsert, err)
		return
	}
	s.purgeViews()

	code := http.StatusCreated
	if res.Merged {
		code = http.StatusOK
	} else {
		w.Header().Set("Location", "/api/records/"+res.Record.ID)
	}
	NewJSONResponse().Status(code).SyncStatus(res.Status).Body(res).Write(w)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	in, err := ParseSubmission(r)
	if err != nil {
		s.writeError(w, r, applog.OpParse, err)
		return
	}

	res, err := s.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	s.purgeViews()
	NewJSONResponse().SyncStatus(res.Status).Body(res).Write(w)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, applog.OpDelete, err)
		return
	}
	s.purgeViews()
	NewJSONResponse().SyncStatus(res.Status).Body(res).Write(w)
}

// writeError logs client and server errors at the right level and writes the
// mapped response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFromDomain(err)
	logger := applog.FromContext(r.Context())
	if resp.statusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", applog.FieldOperation, op, applog.FieldError, err)
	} else {
		logger.InfoContext(r.Context(), "Request rejected", applog.FieldOperation, op, applog.FieldError, err)
	}
	resp.Write(w)
}
