package grpc

import (
	"context"
	"github.com/litetable/litetable-filter/internal/filter"
	"github.com/litetable/litetable-filter/internal/scan"
	"github.com/rs/zerolog/log"
	"time"
)

func (t *table) ReadRows(ctx context.Context, msg *ReadRowsRequest) (*ReadRowsResponse, error) {
	now := time.Now()
	log.Debug().Msgf("ReadRows request: %+v", msg.Range)

	f := filter.PassAll()
	if msg.Filter != nil {
		var err error
		if f, err = msg.Filter.Filter(); err != nil {
			return nil, toStatus(err)
		}
	}
	// compile before touching storage so a bad filter never costs a read
	prog, err := filter.Compile(f)
	if err != nil {
		return nil, toStatus(err)
	}

	rows, err := t.store.GetRows(ctx, msg.Range)
	if err != nil {
		return nil, toStatus(err)
	}

	result := t.executor.Run(ctx, rows, prog)

	resp := &ReadRowsResponse{Rows: result.Rows}
	if resp.Rows == nil {
		resp.Rows = []scan.ResultRow{}
	}
	for _, rowErr := range result.Errors {
		resp.Failures = append(resp.Failures, RowFailure{
			Key:     string(rowErr.Key),
			Message: rowErr.Err.Error(),
		})
	}

	log.Debug().Msgf("ReadRows latency: %v", time.Since(now))
	return resp, nil
}
