// Package cdc_emitter streams cell changes to TCP clients as JSON lines.
package cdc_emitter

import (
	"context"
	"errors"
	"fmt"
	"github.com/litetable/litetable-filter/internal/observability"
	"github.com/rs/zerolog/log"
	"io"
	"net"
	"sync"
)

const defaultBufferSize = 100000

type Config struct {
	// Address is the host:port to listen on. Port 0 picks a free port.
	Address    string
	BufferSize int
	// Metrics is optional.
	Metrics *observability.Metrics
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Address == "" {
		errGrp = append(errGrp, errors.New("address is required"))
	} else if _, _, err := net.SplitHostPort(c.Address); err != nil {
		errGrp = append(errGrp, fmt.Errorf("invalid address %s: %w", c.Address, err))
	}
	if c.BufferSize < 0 {
		errGrp = append(errGrp, fmt.Errorf("invalid buffer size: %d", c.BufferSize))
	}
	return errors.Join(errGrp...)
}

type Manager struct {
	address  string
	listener net.Listener

	emitChan   chan *CDCParams
	procCtx    context.Context
	procCancel context.CancelFunc

	clients    map[net.Conn]bool
	clientsMux sync.Mutex

	metrics *observability.Metrics
}

func New(cfg *Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Address, err)
	}

	bufferSize := cfg.BufferSize
	if bufferSize == 0 {
		bufferSize = defaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		listener:   listener,
		address:    listener.Addr().String(),
		emitChan:   make(chan *CDCParams, bufferSize),
		procCtx:    ctx,
		procCancel: cancel,

		clients:    make(map[net.Conn]bool),
		clientsMux: sync.Mutex{},
		metrics:    cfg.Metrics,
	}, nil
}

// Addr returns the address the emitter listens on.
func (m *Manager) Addr() string {
	return m.address
}

func (m *Manager) Start() error {
	go func() {
		for {
			select {
			case <-m.procCtx.Done():
				return
			case p := <-m.emitChan:
				m.raiseCDCEvent(p)
			}
		}
	}()

	go func() {
		for {
			conn, err := m.listener.Accept()
			if err != nil {
				if m.procCtx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				log.Warn().Err(err).Msg("failed to accept CDC connection")
				continue
			}

			go m.handle(conn)
		}
	}()

	log.Info().Msgf("CDC emitter listening at %s", m.address)
	return nil
}

func (m *Manager) Stop() error {
	if m.procCancel != nil {
		m.procCancel()
	}

	if m.listener != nil {
		err := m.listener.Close()
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("failed to close listener: %w", err)
		}
	}

	m.clientsMux.Lock()
	for client := range m.clients {
		_ = client.Close()
		delete(m.clients, client)
		m.clientGauge(-1)
	}
	m.clientsMux.Unlock()

	return nil
}

func (m *Manager) Name() string {
	return "CDC Emitter"
}

func (m *Manager) handle(conn net.Conn) {
	defer func() {
		_ = conn.Close()

		m.clientsMux.Lock()
		if _, ok := m.clients[conn]; ok {
			delete(m.clients, conn)
			m.clientGauge(-1)
		}
		m.clientsMux.Unlock()
	}()

	// Register this client
	m.clientsMux.Lock()
	m.clients[conn] = true
	m.clientGauge(1)
	m.clientsMux.Unlock()

	log.Debug().Msgf("CDC client connected: %s", conn.RemoteAddr())

	// Reading only detects disconnection
	buffer := make([]byte, 4096)
	for {
		_, err := conn.Read(buffer)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug().Msgf("CDC client disconnected: %s", conn.RemoteAddr())
			} else {
				log.Debug().Err(err).Msgf("error reading from CDC client %s", conn.RemoteAddr())
			}
			return
		}
	}
}

func (m *Manager) clientGauge(delta float64) {
	if m.metrics != nil {
		m.metrics.CDCClients.Add(delta)
	}
}
