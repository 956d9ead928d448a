package grpc

import (
	"context"
	"errors"
	"github.com/litetable/litetable-filter/internal/filter"
	"github.com/litetable/litetable-filter/internal/fixtures"
	"github.com/litetable/litetable-filter/internal/mutation"
	"github.com/litetable/litetable-filter/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"testing"
	"time"
)

var clock = fixtures.NewClock(time.Date(2019, 5, 1, 12, 0, 0, 0, time.UTC))

func definition(f filter.Filter) *filter.Definition {
	d := f.Definition()
	return &d
}

func TestTable_ReadRows(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		request      *ReadRowsRequest
		mockSetup    func(m *storage.MockRowStore)
		expectedCode codes.Code
		wantKeys     []string
		wantFailures int
	}{
		"no filter passes everything": {
			request: &ReadRowsRequest{},
			mockSetup: func(m *storage.MockRowStore) {
				m.EXPECT().GetRows(gomock.Any(), storage.RowRange{}).Return(fixtures.Rows(clock), nil)
			},
			expectedCode: codes.OK,
			wantKeys: []string{
				"phone#4c410523#20190501", "phone#4c410523#20190502", "phone#4c410523#20190505",
				"phone#5c10102#20190501", "phone#5c10102#20190502",
			},
		},
		"row key regex over a prefix": {
			request: &ReadRowsRequest{
				Range:  storage.RowRange{Prefix: []byte("phone#5c10102")},
				Filter: definition(filter.RowKeyRegex(".*#20190501")),
			},
			mockSetup: func(m *storage.MockRowStore) {
				rows := fixtures.Rows(clock)
				m.EXPECT().GetRows(gomock.Any(), storage.RowRange{Prefix: []byte("phone#5c10102")}).
					Return(rows[3:], nil)
			},
			expectedCode: codes.OK,
			wantKeys:     []string{"phone#5c10102#20190501"},
		},
		"row failures do not fail the call": {
			request: &ReadRowsRequest{
				Filter: definition(filter.Chain(
					filter.QualifierRegex("connected_wifi"),
					filter.CellExpression(`10 / int(value) > 0`),
				)),
			},
			mockSetup: func(m *storage.MockRowStore) {
				m.EXPECT().GetRows(gomock.Any(), gomock.Any()).Return(fixtures.Rows(clock), nil)
			},
			expectedCode: codes.OK,
			wantKeys: []string{
				"phone#4c410523#20190501", "phone#4c410523#20190502", "phone#4c410523#20190505",
				"phone#5c10102#20190501",
			},
			wantFailures: 1,
		},
		"invalid filter never reads": {
			request: &ReadRowsRequest{
				Filter: definition(filter.CellsPerRow(-1)),
			},
			expectedCode: codes.InvalidArgument,
		},
		"definition with two filters set": {
			request: &ReadRowsRequest{
				Filter: &filter.Definition{PassAll: true, BlockAll: true},
			},
			expectedCode: codes.InvalidArgument,
		},
		"data unavailable": {
			request: &ReadRowsRequest{},
			mockSetup: func(m *storage.MockRowStore) {
				m.EXPECT().GetRows(gomock.Any(), gomock.Any()).
					Return(nil, storage.NewError(storage.ErrDataUnavailable, "shard offline"))
			},
			expectedCode: codes.Unavailable,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			req := require.New(t)
			ctrl := gomock.NewController(t)

			store := storage.NewMockRowStore(ctrl)
			if tc.mockSetup != nil {
				tc.mockSetup(store)
			}
			svc := &table{store: store, executor: newExecutor(t)}

			resp, err := svc.ReadRows(context.Background(), tc.request)
			if tc.expectedCode != codes.OK {
				req.Error(err)
				st, ok := status.FromError(err)
				req.True(ok)
				req.Equal(tc.expectedCode, st.Code())
				return
			}

			req.NoError(err)
			var keys []string
			for _, r := range resp.Rows {
				keys = append(keys, string(r.Key))
			}
			req.Equal(tc.wantKeys, keys)
			req.Len(resp.Failures, tc.wantFailures)
		})
	}
}

func TestTable_MutateRows(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		request      *MutateRowsRequest
		mockSetup    func(m *storage.MockRowStore)
		expectedCode codes.Code
	}{
		"no entries": {
			request:      &MutateRowsRequest{},
			expectedCode: codes.InvalidArgument,
		},
		"applies the batch": {
			request: &MutateRowsRequest{Entries: fixtures.Batch(clock).Entries},
			mockSetup: func(m *storage.MockRowStore) {
				m.EXPECT().ApplyMutations(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, b mutation.Batch) error {
						if len(b.Entries) != len(fixtures.Batch(clock).Entries) {
							return errors.New("unexpected batch")
						}
						return nil
					})
			},
			expectedCode: codes.OK,
		},
		"family not allowed": {
			request: &MutateRowsRequest{Entries: []mutation.Entry{
				{RowKey: "r", Family: "unknown", Qualifier: "q", Timestamp: 1},
			}},
			mockSetup: func(m *storage.MockRowStore) {
				m.EXPECT().ApplyMutations(gomock.Any(), gomock.Any()).
					Return(storage.NewError(storage.ErrFamilyNotAllowed, "unknown"))
			},
			expectedCode: codes.FailedPrecondition,
		},
		"invalid mutation": {
			request: &MutateRowsRequest{Entries: []mutation.Entry{{Family: "f"}}},
			mockSetup: func(m *storage.MockRowStore) {
				m.EXPECT().ApplyMutations(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, b mutation.Batch) error {
						return b.Validate()
					})
			},
			expectedCode: codes.InvalidArgument,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			req := require.New(t)
			ctrl := gomock.NewController(t)

			store := storage.NewMockRowStore(ctrl)
			if tc.mockSetup != nil {
				tc.mockSetup(store)
			}
			svc := &table{store: store, executor: newExecutor(t)}

			resp, err := svc.MutateRows(context.Background(), tc.request)
			if tc.expectedCode != codes.OK {
				req.Equal(tc.expectedCode, status.Code(err))
				return
			}
			req.NoError(err)
			req.NotEmpty(resp.BatchID)
			req.Equal(len(tc.request.Entries), resp.Cells)
		})
	}
}

func TestTable_CreateFamily(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		request         *CreateFamilyRequest
		mockSetup       func(m *storage.MockRowStore)
		expectedCode    codes.Code
		expectedMessage string
	}{
		"missing family": {
			request:         &CreateFamilyRequest{},
			expectedCode:    codes.InvalidArgument,
			expectedMessage: "family required",
		},
		"store error": {
			request: &CreateFamilyRequest{Families: []string{"f"}},
			mockSetup: func(m *storage.MockRowStore) {
				m.EXPECT().CreateFamilies("f").Return(errors.New("disk full"))
			},
			expectedCode:    codes.Internal,
			expectedMessage: "failed to create family: disk full",
		},
		"created": {
			request: &CreateFamilyRequest{Families: fixtures.Families()},
			mockSetup: func(m *storage.MockRowStore) {
				m.EXPECT().CreateFamilies(fixtures.CellPlan, fixtures.StatsSummary).Return(nil)
				m.EXPECT().Families().Return(fixtures.Families())
			},
			expectedCode: codes.OK,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			req := require.New(t)
			ctrl := gomock.NewController(t)

			store := storage.NewMockRowStore(ctrl)
			if tc.mockSetup != nil {
				tc.mockSetup(store)
			}
			svc := &table{store: store}

			resp, err := svc.CreateFamily(context.Background(), tc.request)
			if tc.expectedCode != codes.OK {
				st, ok := status.FromError(err)
				req.True(ok)
				req.Equal(tc.expectedCode, st.Code())
				req.Contains(st.Message(), tc.expectedMessage)
				return
			}
			req.NoError(err)
			req.Equal(fixtures.Families(), resp.Families)
		})
	}
}

func TestClient_roundTrip(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	ctrl := gomock.NewController(t)

	store := storage.NewMockRowStore(ctrl)
	store.EXPECT().CreateFamilies(fixtures.CellPlan).Return(nil)
	store.EXPECT().Families().Return([]string{fixtures.CellPlan})
	store.EXPECT().ApplyMutations(gomock.Any(), gomock.Any()).Return(nil)
	store.EXPECT().GetRows(gomock.Any(), storage.RowRange{Prefix: []byte("phone#4c410523#20190501")}).
		Return(fixtures.Rows(clock)[:1], nil)

	client := NewClient(dialBufconn(t, &Config{Store: store, Executor: newExecutor(t)}))
	ctx := context.Background()

	created, err := client.CreateFamily(ctx, &CreateFamilyRequest{Families: []string{fixtures.CellPlan}})
	req.NoError(err)
	req.Equal([]string{fixtures.CellPlan}, created.Families)

	mutated, err := client.MutateRows(ctx, &MutateRowsRequest{Entries: fixtures.Batch(clock).Entries[:2]})
	req.NoError(err)
	req.Equal(2, mutated.Cells)

	read, err := client.ReadRows(ctx, &ReadRowsRequest{
		Range:  storage.RowRange{Prefix: []byte("phone#4c410523#20190501")},
		Filter: definition(filter.CellsPerColumn(1)),
	})
	req.NoError(err)
	req.Len(read.Rows, 1)
	for _, fam := range read.Rows[0].Families {
		for _, c := range fam.Cells {
			req.NotEqual(clock.HourAgo, c.Timestamp, "only the newest version survives")
		}
	}

	_, err = client.ReadRows(ctx, &ReadRowsRequest{Filter: definition(filter.RowSample(2))})
	req.Equal(codes.InvalidArgument, status.Code(err))
}
