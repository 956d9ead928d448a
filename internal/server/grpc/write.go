package grpc

import (
	"context"
	"github.com/litetable/litetable-filter/internal/mutation"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"time"
)

func (t *table) MutateRows(ctx context.Context, msg *MutateRowsRequest) (*MutateRowsResponse, error) {
	if len(msg.Entries) == 0 {
		return nil, status.Errorf(codes.InvalidArgument, "entries required")
	}
	now := time.Now()

	b := mutation.NewBuilder()
	for _, e := range msg.Entries {
		b.Upsert(e.RowKey, e.Family, e.Qualifier, e.Value, e.Timestamp)
	}
	batch := b.Batch()

	if err := t.store.ApplyMutations(ctx, batch); err != nil {
		return nil, toStatus(err)
	}

	log.Debug().Str("batch", batch.ID).Msgf("MutateRows latency: %v", time.Since(now))
	return &MutateRowsResponse{BatchID: batch.ID, Cells: len(batch.Entries)}, nil
}
