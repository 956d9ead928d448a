package cdc_emitter

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/litetable/litetable-filter/internal/litetable"
	"github.com/litetable/litetable-filter/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"net"
	"sync"
	"testing"
)

func TestManager_Emit(t *testing.T) {
	m := &Manager{
		emitChan: make(chan *CDCParams, 1),
	}

	params := &CDCParams{}
	m.Emit(params)

	emitted := <-m.emitChan
	if emitted != params {
		t.Errorf("Expected emitted params to be %v, got %v", params, emitted)
	}

	close(m.emitChan)
}

func TestManager_Emit_stopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &Manager{
		emitChan: make(chan *CDCParams),
		procCtx:  ctx,
	}

	// must not block on the unbuffered channel once stopped
	m.Emit(&CDCParams{})
}

func TestManager_raiseCDCEvent(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		params        *CDCParams
		clients       int
		writeErrors   []error
		expectRemoved []bool
	}{
		{
			name: "single client successful write",
			params: &CDCParams{
				Operation: litetable.OperationWrite,
				RowKey:    "phone#4c410523#20190501",
				Cell: litetable.Cell{
					Family:    "cell_plan",
					Qualifier: []byte("data_plan_01gb"),
					Value:     []byte("1"),
					Timestamp: 1556708400000000,
				},
			},
			clients:       1,
			writeErrors:   []error{nil},
			expectRemoved: []bool{false},
		},
		{
			name: "multiple clients successful write",
			params: &CDCParams{
				Operation: litetable.OperationWrite,
				RowKey:    "phone#5c10102#20190501",
				Cell: litetable.Cell{
					Family:    "stats_summary",
					Qualifier: []byte("os_build"),
					Value:     []byte("PQ2A.190401.002"),
					Timestamp: 1556712000000000,
				},
			},
			clients:       3,
			writeErrors:   []error{nil, nil, nil},
			expectRemoved: []bool{false, false, false},
		},
		{
			name: "some clients with write errors",
			params: &CDCParams{
				Operation: litetable.OperationCreate,
				RowKey:    "phone#5c10102#20190502",
				Cell: litetable.Cell{
					Family:    "stats_summary",
					Qualifier: []byte("connected_wifi"),
					Value:     []byte("0"),
					Timestamp: 1556712000000000,
				},
			},
			clients:       3,
			writeErrors:   []error{nil, errors.New("write error"), nil},
			expectRemoved: []bool{false, true, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			m := &Manager{
				clients:    make(map[net.Conn]bool),
				clientsMux: sync.Mutex{},
				metrics:    observability.NewMetrics(),
			}

			expectedData, err := json.Marshal(newEvent(tt.params))
			require.NoError(t, err)
			expectedMessage := append(expectedData, '\n')

			mockConns := make([]net.Conn, tt.clients)
			for i := 0; i < tt.clients; i++ {
				mockConn := NewMockConn(ctrl)
				m.clients[mockConn] = true
				mockConns[i] = mockConn
				mockConn.EXPECT().SetWriteDeadline(gomock.Any()).Return(nil)
				mockConn.EXPECT().Write(gomock.Eq(expectedMessage)).Return(len(expectedMessage), tt.writeErrors[i])
				// If error, expect Close to be called
				if tt.writeErrors[i] != nil {
					mockConn.EXPECT().Close().Return(nil)
				}
			}

			m.raiseCDCEvent(tt.params)

			var failed int
			for _, err := range tt.writeErrors {
				if err != nil {
					failed++
				}
			}
			assert.Equal(t, float64(tt.clients-failed),
				testutil.ToFloat64(m.metrics.CDCEvents.WithLabelValues("delivered")))
			assert.Equal(t, float64(failed),
				testutil.ToFloat64(m.metrics.CDCEvents.WithLabelValues("failed")))

			for i, conn := range mockConns {
				_, exists := m.clients[conn]
				assert.Equal(t, !tt.expectRemoved[i], exists,
					"Client %d should be %s", i,
					map[bool]string{true: "removed", false: "present"}[tt.expectRemoved[i]])
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	t.Parallel()
	req := require.New(t)

	e := newEvent(&CDCParams{
		Operation: litetable.OperationWrite,
		RowKey:    "phone#1",
		Cell: litetable.Cell{
			Family:    "cell_plan",
			Qualifier: []byte("data_plan_05gb"),
			Value:     []byte("1"),
			Timestamp: 42,
		},
	})

	data, err := json.Marshal(e)
	req.NoError(err)
	req.JSONEq(`{"operation":"WRITE","key":"phone#1","family":"cell_plan",
		"qualifier":"data_plan_05gb","value":"MQ==","timestamp":42}`, string(data))
}
