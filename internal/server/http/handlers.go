package http

import (
	"encoding/json"
	"fmt"
	"github.com/litetable/litetable-filter/internal/filter"
	"github.com/litetable/litetable-filter/internal/mutation"
	"github.com/litetable/litetable-filter/internal/scan"
	"github.com/litetable/litetable-filter/internal/storage"
	"github.com/rs/zerolog/log"
	"io"
	"net/http"
)

type FamiliesRequest struct {
	Families []string `json:"families"`
}

type FamiliesResponse struct {
	Families []string `json:"families"`
}

type MutateRequest struct {
	Entries []mutation.Entry `json:"entries"`
}

type MutateResponse struct {
	BatchID string `json:"batch_id"`
	Cells   int    `json:"cells"`
}

// ScanRequest scans a row range through a filter. A nil Filter passes every cell.
type ScanRequest struct {
	Range  storage.RowRange   `json:"range"`
	Filter *filter.Definition `json:"filter,omitempty"`
}

type RowFailure struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

type ScanResponse struct {
	Rows     []scan.ResultRow `json:"rows"`
	Failures []RowFailure     `json:"failures,omitempty"`
}

func decode(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListFamilies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, FamiliesResponse{Families: s.store.Families()})
}

func (s *Server) handleCreateFamilies(w http.ResponseWriter, r *http.Request) {
	var req FamiliesRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if len(req.Families) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "family required"})
		return
	}

	if err := s.store.CreateFamilies(req.Families...); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FamiliesResponse{Families: s.store.Families()})
}

func (s *Server) handleMutate(w http.ResponseWriter, r *http.Request) {
	var req MutateRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	b := mutation.NewBuilder()
	for _, e := range req.Entries {
		b.Upsert(e.RowKey, e.Family, e.Qualifier, e.Value, e.Timestamp)
	}
	batch := b.Batch()

	if err := s.store.ApplyMutations(r.Context(), batch); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MutateResponse{BatchID: batch.ID, Cells: len(batch.Entries)})
}

// handleScan answers with JSON rows, or with the plain text report for ?format=text.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	f := filter.PassAll()
	if req.Filter != nil {
		var err error
		if f, err = req.Filter.Filter(); err != nil {
			writeError(w, err)
			return
		}
	}
	prog, err := filter.Compile(f)
	if err != nil {
		writeError(w, err)
		return
	}

	rows, err := s.store.GetRows(r.Context(), req.Range)
	if err != nil {
		writeError(w, err)
		return
	}
	result := s.executor.Run(r.Context(), rows, prog)

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", contentTypeText)
		w.WriteHeader(http.StatusOK)
		if err = scan.Render(w, result); err != nil {
			log.Warn().Err(err).Msg("error writing scan report")
		}
		return
	}

	resp := ScanResponse{Rows: result.Rows}
	if resp.Rows == nil {
		resp.Rows = []scan.ResultRow{}
	}
	for _, rowErr := range result.Errors {
		resp.Failures = append(resp.Failures, RowFailure{
			Key:     string(rowErr.Key),
			Message: rowErr.Err.Error(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
