package grpc

import (
	"github.com/litetable/litetable-filter/internal/filter"
	"github.com/litetable/litetable-filter/internal/mutation"
	"github.com/litetable/litetable-filter/internal/scan"
	"github.com/litetable/litetable-filter/internal/storage"
)

// ReadRowsRequest scans a row range through a filter. A nil Filter passes every cell.
type ReadRowsRequest struct {
	Range  storage.RowRange   `json:"range"`
	Filter *filter.Definition `json:"filter,omitempty"`
}

// RowFailure reports a row the filter failed on. The scan carries on past it.
type RowFailure struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

type ReadRowsResponse struct {
	Rows     []scan.ResultRow `json:"rows"`
	Failures []RowFailure     `json:"failures,omitempty"`
}

type MutateRowsRequest struct {
	Entries []mutation.Entry `json:"entries"`
}

type MutateRowsResponse struct {
	BatchID string `json:"batch_id"`
	Cells   int    `json:"cells"`
}

type CreateFamilyRequest struct {
	Families []string `json:"families"`
}

type CreateFamilyResponse struct {
	Families []string `json:"families"`
}
