package cdc_emitter

import (
	"encoding/json"
	"github.com/litetable/litetable-filter/internal/litetable"
	"github.com/rs/zerolog/log"
	"time"
)

const writeDeadline = 100 * time.Millisecond

// CDCParams describes a single cell change.
type CDCParams struct {
	Operation litetable.Operation
	RowKey    string
	Cell      litetable.Cell
}

// event is the JSON line sent to clients.
type event struct {
	Operation string `json:"operation"`
	RowKey    string `json:"key"`
	Family    string `json:"family"`
	Qualifier string `json:"qualifier"`
	Value     []byte `json:"value,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func newEvent(params *CDCParams) *event {
	return &event{
		Operation: params.Operation.String(),
		RowKey:    params.RowKey,
		Family:    params.Cell.Family,
		Qualifier: string(params.Cell.Qualifier),
		Value:     params.Cell.Value,
		Timestamp: params.Cell.Timestamp,
	}
}

// Emit pushes a CDC event to the channel. This is how consumers get notified
// of a CDC event. Emit never blocks once the emitter is stopped.
func (m *Manager) Emit(params *CDCParams) {
	if m.procCtx == nil {
		m.emitChan <- params
		return
	}
	select {
	case m.emitChan <- params:
	case <-m.procCtx.Done():
	}
}

// raiseCDCEvent will emit the CDC event to all connected clients.
func (m *Manager) raiseCDCEvent(params *CDCParams) {
	data, err := json.Marshal(newEvent(params))
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal CDC event")
		return
	}

	// Add newline for message framing
	message := append(data, '\n')

	// no new clients while writing
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()

	for client := range m.clients {
		// Non-blocking write with short timeout
		_ = client.SetWriteDeadline(time.Now().Add(writeDeadline))
		_, err = client.Write(message)
		if err != nil {
			log.Debug().Err(err).Msg("dropping CDC client")
			_ = client.Close()
			delete(m.clients, client)
			m.clientGauge(-1)
			m.countEvent("failed")
			continue
		}
		m.countEvent("delivered")
	}
}

func (m *Manager) countEvent(outcome string) {
	if m.metrics != nil {
		m.metrics.CDCEvents.WithLabelValues(outcome).Inc()
	}
}
