// Package ws owns the persistent channel to the backend: one
// authenticated websocket per valid session credential, recreated whenever
// the credential changes and never retried beyond the dial loop's fixed
// reconnect interval.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/MR-JLTC/tutorchat/internal/bus"
	"github.com/MR-JLTC/tutorchat/internal/session"
	"github.com/MR-JLTC/tutorchat/internal/status"
)

var (
	// ErrNotConnected is returned when an emit is attempted without a live channel.
	ErrNotConnected = errors.New("ws: not connected")
	// ErrAckTimeout is returned to ack callbacks when the server never answers.
	ErrAckTimeout = errors.New("ws: acknowledgement timed out")
)

const (
	reconnectDelay = 3 * time.Second
	ackTimeout     = 10 * time.Second
	writeWait      = 10 * time.Second
	sendQueueSize  = 64
)

type pendingAck struct {
	cb    func(error)
	timer *time.Timer
}

// Manager owns the websocket connection lifecycle. All inbound events are
// published on the bus in arrival order; outbound emits go through a
// single writer goroutine.
type Manager struct {
	serverURL string
	sess      *session.Manager
	bus       *bus.Bus
	machine   *status.Machine
	logger    *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	sendCh chan []byte
	nextID uint64
	acks   map[uint64]*pendingAck
	rooms  map[int64]bool

	cancel context.CancelFunc
}

// NewManager creates a connection manager. serverURL is the backend HTTP
// origin; the websocket endpoint is derived from it.
func NewManager(serverURL string, sess *session.Manager, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *Manager {
	return &Manager{
		serverURL: strings.TrimRight(serverURL, "/"),
		sess:      sess,
		bus:       b,
		machine:   machine,
		logger:    logger,
		acks:      make(map[uint64]*pendingAck),
		rooms:     make(map[int64]bool),
	}
}

// Start launches the supervision loop. It dials while a credential exists,
// parks in AuthRequired while none does, and recycles the connection on
// every credential change.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	go m.supervise(ctx)
}

// Stop tears the connection down and halts supervision.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.teardown(ErrNotConnected)
}

func (m *Manager) supervise(ctx context.Context) {
	sessCh, unsub := m.bus.Subscribe("session.", 8)
	defer unsub()

	for {
		if ctx.Err() != nil {
			return
		}

		creds := m.sess.Current()
		if creds == nil {
			_ = m.machine.Transition(status.AuthRequired)
			select {
			case <-sessCh:
				continue
			case <-ctx.Done():
				return
			}
		}

		_ = m.machine.Transition(status.Connecting)
		conn, err := m.dial(ctx, creds.Token)
		if err != nil {
			m.logger.Warn("websocket dial failed", zap.Error(err))
			_ = m.machine.Transition(status.Reconnecting)
			select {
			case <-time.After(reconnectDelay):
			case <-sessCh:
			case <-ctx.Done():
				return
			}
			continue
		}

		m.attach(conn)
		_ = m.machine.Transition(status.Connected)
		m.bus.Publish(bus.Event{Kind: bus.KindServerConnected, Timestamp: time.Now()})
		m.rejoinRooms()

		// Close the socket when the credential changes or we shut down,
		// which unblocks the read loop below.
		connCtx, connCancel := context.WithCancel(ctx)
		go func() {
			select {
			case <-sessCh:
				_ = conn.Close()
			case <-connCtx.Done():
			}
		}()

		m.readLoop(conn)
		connCancel()

		m.teardown(ErrNotConnected)
		m.bus.Publish(bus.Event{Kind: bus.KindServerDropped, Timestamp: time.Now()})
		if ctx.Err() == nil {
			_ = m.machine.Transition(status.Reconnecting)
		}
	}
}

func (m *Manager) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	wsURL := m.serverURL + "/chat"
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	return conn, nil
}

func (m *Manager) attach(conn *websocket.Conn) {
	sendCh := make(chan []byte, sendQueueSize)

	m.mu.Lock()
	m.conn = conn
	m.sendCh = sendCh
	m.mu.Unlock()

	// Single writer goroutine per connection; closed sendCh ends it.
	go func() {
		for data := range sendCh {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				m.logger.Warn("websocket write failed", zap.Error(err))
				_ = conn.Close()
				return
			}
		}
	}()
}

// teardown drops the current connection and fails all pending acks.
func (m *Manager) teardown(ackErr error) {
	m.mu.Lock()
	conn := m.conn
	sendCh := m.sendCh
	pending := m.acks
	m.conn = nil
	m.sendCh = nil
	m.acks = make(map[uint64]*pendingAck)
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if sendCh != nil {
		close(sendCh)
	}
	for _, p := range pending {
		p.timer.Stop()
		p.cb(ackErr)
	}
}

// readLoop publishes decoded server events in strict arrival order.
// Returns when the connection dies.
func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.logger.Info("websocket closed", zap.Error(err))
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			m.logger.Warn("malformed frame", zap.Error(err))
			continue
		}

		if env.Event == evtAck {
			m.resolveAck(&env)
			continue
		}

		payload, err := decodeEvent(&env)
		if err != nil {
			m.logger.Warn("undecodable event", zap.String("event", env.Event), zap.Error(err))
			continue
		}
		if payload == nil {
			continue
		}
		m.bus.Publish(bus.Event{Kind: kindFor(env.Event), Timestamp: time.Now(), Payload: payload})
	}
}

func kindFor(event string) string {
	switch event {
	case evtNewMessage:
		return bus.KindServerMessage
	case evtPresence:
		return bus.KindServerPresence
	case evtMessageStatus:
		return bus.KindServerStatus
	case evtMessagesSeen:
		return bus.KindServerSeen
	}
	return "server.unknown"
}

func (m *Manager) resolveAck(env *envelope) {
	m.mu.Lock()
	p, ok := m.acks[env.ID]
	delete(m.acks, env.ID)
	m.mu.Unlock()
	if !ok {
		return
	}
	p.timer.Stop()
	if env.OK != nil && !*env.OK {
		msg := env.Error
		if msg == "" {
			msg = "send rejected"
		}
		p.cb(fmt.Errorf("ws: %s", msg))
		return
	}
	p.cb(nil)
}

// emit queues an envelope for the writer goroutine.
func (m *Manager) emit(env *envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", env.Event, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendCh == nil {
		return ErrNotConnected
	}
	select {
	case m.sendCh <- data:
		return nil
	default:
		return fmt.Errorf("ws: send queue full")
	}
}

// Live reports whether the channel is currently usable.
func (m *Manager) Live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}
