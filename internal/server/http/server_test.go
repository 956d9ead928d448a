package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"github.com/litetable/litetable-filter/internal/filter"
	"github.com/litetable/litetable-filter/internal/fixtures"
	"github.com/litetable/litetable-filter/internal/mutation"
	"github.com/litetable/litetable-filter/internal/observability"
	"github.com/litetable/litetable-filter/internal/scan"
	"github.com/litetable/litetable-filter/internal/storage"
	"github.com/stretchr/testify/require"
	"github.com/thanos-io/objstore"
	"go.uber.org/mock/gomock"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var clock = fixtures.NewClock(time.Date(2019, 5, 1, 12, 0, 0, 0, time.UTC))

func newExecutor(t *testing.T) *scan.Executor {
	t.Helper()
	e, err := scan.New(&scan.Config{Workers: 2})
	require.NoError(t, err)
	return e
}

func newTestServer(t *testing.T, store storage.RowStore) (*httptest.Server, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics()
	s := newServer(&Config{Store: store, Executor: newExecutor(t), Metrics: metrics})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, metrics
}

// seededStore returns a sharded store holding the fixture dataset.
func seededStore(t *testing.T) *storage.Manager {
	t.Helper()
	m, err := storage.New(&storage.Config{RootDir: t.TempDir(), Bucket: objstore.NewInMemBucket()})
	require.NoError(t, err)
	require.NoError(t, m.CreateFamilies(fixtures.Families()...))
	require.NoError(t, m.ApplyMutations(context.Background(), fixtures.Batch(clock)))
	return m
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, contentTypeJSON, bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestNewServer(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	ctrl := gomock.NewController(t)

	_, err := NewServer(&Config{})
	req.Error(err)
	req.Equal("address required\nstore required\nexecutor required", err.Error())

	s, err := NewServer(&Config{
		Address:  "127.0.0.1:0",
		Store:    storage.NewMockRowStore(ctrl),
		Executor: newExecutor(t),
	})
	req.NoError(err)
	req.Equal("HTTP Server", s.Name())
	req.NoError(s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/health")
	req.NoError(err)
	_ = resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	req.NoError(s.Stop())
}

func TestServer_Stop_releasesUnstartedListener(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	ctrl := gomock.NewController(t)

	s, err := NewServer(&Config{
		Address:  "127.0.0.1:0",
		Store:    storage.NewMockRowStore(ctrl),
		Executor: newExecutor(t),
	})
	req.NoError(err)
	req.NoError(s.Stop())

	lis, err := net.Listen("tcp", s.Addr())
	req.NoError(err, "address must be free after Stop")
	req.NoError(lis.Close())
}

func TestServer_scanExamples(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, seededStore(t))
	client := NewClient(ts.URL)

	for _, example := range fixtures.Examples(clock) {
		if example.Sampled {
			continue
		}
		t.Run(example.Name, func(t *testing.T) {
			t.Parallel()
			req := require.New(t)

			def := example.Filter.Definition()
			report, err := client.ScanReport(context.Background(), ScanRequest{Filter: &def})
			req.NoError(err)
			req.Equal(example.Report(), report)
		})
	}
}

func TestServer_scan(t *testing.T) {
	t.Parallel()

	ts, metrics := newTestServer(t, seededStore(t))

	tests := map[string]struct {
		body       any
		wantStatus int
		wantRows   int
		wantPath   string
	}{
		"json rows": {
			body:       ScanRequest{Range: storage.RowRange{Prefix: []byte("phone#4c410523")}},
			wantStatus: http.StatusOK,
			wantRows:   3,
		},
		"invalid filter reports its path": {
			body: map[string]any{
				"filter": map[string]any{
					"chain": []any{
						map[string]any{"pass_all": true},
						map[string]any{"cells_per_row": -1},
					},
				},
			},
			wantStatus: http.StatusBadRequest,
			wantPath:   "chain[1].cells_per_row",
		},
		"invalid range": {
			body:       ScanRequest{Range: storage.RowRange{Start: []byte("b"), End: []byte("a")}},
			wantStatus: http.StatusBadRequest,
		},
		"malformed body": {
			body:       "not an object",
			wantStatus: http.StatusBadRequest,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			req := require.New(t)

			resp := post(t, ts.URL+"/v1/rows:scan", tc.body)
			req.Equal(tc.wantStatus, resp.StatusCode)

			if tc.wantStatus != http.StatusOK {
				var errResp ErrorResponse
				req.NoError(json.NewDecoder(resp.Body).Decode(&errResp))
				req.NotEmpty(errResp.Error)
				req.Equal(tc.wantPath, errResp.Path)
				return
			}

			var scanResp ScanResponse
			req.NoError(json.NewDecoder(resp.Body).Decode(&scanResp))
			req.Len(scanResp.Rows, tc.wantRows)
		})
	}

	t.Run("metrics", func(t *testing.T) {
		t.Parallel()
		req := require.New(t)

		_ = post(t, ts.URL+"/v1/rows:scan", ScanRequest{})
		resp, err := http.Get(ts.URL + "/metrics")
		req.NoError(err)
		defer resp.Body.Close()

		var buf bytes.Buffer
		_, err = buf.ReadFrom(resp.Body)
		req.NoError(err)
		req.Contains(buf.String(), "litetable_operation_total")
		req.NotNil(metrics.Registry)
	})
}

func TestServer_scanRowFailures(t *testing.T) {
	t.Parallel()
	req := require.New(t)

	ts, _ := newTestServer(t, seededStore(t))
	def := filter.Chain(
		filter.QualifierRegex("connected_wifi"),
		filter.CellExpression(`10 / int(value) > 0`),
	).Definition()

	resp, err := NewClient(ts.URL).Scan(context.Background(), ScanRequest{Filter: &def})
	req.NoError(err)
	req.Len(resp.Rows, 4)
	req.Len(resp.Failures, 1)
	req.Equal("phone#5c10102#20190502", resp.Failures[0].Key)
}

func TestServer_families(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		body       any
		mockSetup  func(m *storage.MockRowStore)
		wantStatus int
	}{
		"created": {
			body: FamiliesRequest{Families: []string{"cell_plan"}},
			mockSetup: func(m *storage.MockRowStore) {
				m.EXPECT().CreateFamilies("cell_plan").Return(nil)
				m.EXPECT().Families().Return([]string{"cell_plan"})
			},
			wantStatus: http.StatusCreated,
		},
		"missing family": {
			body:       FamiliesRequest{},
			wantStatus: http.StatusBadRequest,
		},
		"store error": {
			body: FamiliesRequest{Families: []string{"cell_plan"}},
			mockSetup: func(m *storage.MockRowStore) {
				m.EXPECT().CreateFamilies("cell_plan").Return(errors.New("disk full"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			store := storage.NewMockRowStore(ctrl)
			if tc.mockSetup != nil {
				tc.mockSetup(store)
			}
			ts, _ := newTestServer(t, store)

			resp := post(t, ts.URL+"/v1/families", tc.body)
			require.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}

func TestServer_mutate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		batch      mutation.Batch
		storeErr   error
		wantStatus int
	}{
		"applied": {
			batch:      fixtures.Batch(clock),
			wantStatus: http.StatusOK,
		},
		"family not allowed": {
			batch:      mutation.NewBuilder().UpsertString("r", "unknown", "q", "v", 1).Batch(),
			storeErr:   storage.NewError(storage.ErrFamilyNotAllowed, "unknown"),
			wantStatus: http.StatusUnprocessableEntity,
		},
		"unavailable": {
			batch:      fixtures.Batch(clock),
			storeErr:   storage.NewError(storage.ErrDataUnavailable, "cancelled"),
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			req := require.New(t)
			ctrl := gomock.NewController(t)

			store := storage.NewMockRowStore(ctrl)
			store.EXPECT().ApplyMutations(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, b mutation.Batch) error {
					req.Equal(tc.batch.Entries, b.Entries)
					return tc.storeErr
				})
			ts, _ := newTestServer(t, store)

			resp, err := NewClient(ts.URL).Mutate(context.Background(), tc.batch)
			if tc.wantStatus != http.StatusOK {
				req.Error(err)
				req.True(strings.Contains(err.Error(), http.StatusText(tc.wantStatus)))
				return
			}
			req.NoError(err)
			req.Equal(len(tc.batch.Entries), resp.Cells)
		})
	}
}
