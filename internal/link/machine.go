// Package link owns the duplex WebSocket connection to the classifier and
// keeps it alive through transient failures with bounded exponential backoff.
package link

import (
	"context"
	"errors"
	"facestream/internal/logger"
	"facestream/internal/metrics"
	"facestream/internal/status"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = 30 * time.Second
	handshakeTimeout = 10 * time.Second
	maxMessageSize   = 64 * 1024
)

// Dialer opens the duplex connection. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// SendResult tells the caller what happened to a payload. It never carries a
// transport error: failures are absorbed by the machine.
type SendResult int

const (
	SendAccepted SendResult = iota
	SendRejected            // link was not open
	SendReplaced            // queued, superseding a frame the writer had not sent yet
)

func (r SendResult) String() string {
	switch r {
	case SendAccepted:
		return "accepted"
	case SendRejected:
		return "rejected"
	case SendReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

type Options struct {
	URL       string
	Header    http.Header
	Dialer    Dialer
	Policy    Policy
	OnMessage func([]byte)
	// Reporter is called with the machine's lock held and must not call back into it.
	Reporter status.Reporter
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
}

// Machine is the connection state machine. One instance lives for the whole
// streaming session; all state changes happen under mu.
type Machine struct {
	url       string
	header    http.Header
	dialer    Dialer
	policy    Policy
	onMessage func([]byte)
	reporter  status.Reporter
	logger    *logger.Logger
	metrics   *metrics.Metrics

	mu         sync.Mutex
	state      State
	attempt    int
	delay      time.Duration
	lastReason string
	gen        uint64 // bumped per dial; events from older generations are stale
	conn       *websocket.Conn
	connDone   chan struct{}
	outbox     chan []byte // one slot; the newest frame wins
	dialCancel context.CancelFunc
	timer      *time.Timer
	shutdown   bool
}

func New(opts Options) (*Machine, error) {
	if opts.URL == "" {
		return nil, errors.New("link: URL is required")
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}

	m := &Machine{
		url:       opts.URL,
		header:    opts.Header,
		dialer:    opts.Dialer,
		policy:    opts.Policy,
		onMessage: opts.OnMessage,
		reporter:  opts.Reporter,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		state:     StateIdle,
	}
	if m.dialer == nil {
		m.dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		}
	}
	if m.onMessage == nil {
		m.onMessage = func([]byte) {}
	}
	if m.reporter == nil {
		m.reporter = status.Multi{}
	}
	if m.logger == nil {
		m.logger = logger.Discard()
	}
	m.metrics.SetLinkState(int(StateIdle))
	return m, nil
}

// Connect opens the link unless it is already connecting, open, failed or shut down.
// It never blocks: the dial runs in the background.
func (m *Machine) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectLocked()
}

// Reset is the manual intervention after a permanent failure: it restores the
// retry budget and dials again.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateFailed || m.shutdown {
		return
	}
	m.attempt = 0
	m.delay = 0
	m.setStateLocked(StateIdle)
	m.connectLocked()
}

// Send queues one text frame for the connection's writer and never waits
// on the network. Only an open link accepts payloads. Write failures surface
// later as a closure of the link.
func (m *Machine) Send(payload []byte) SendResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateOpen || m.outbox == nil {
		return SendRejected
	}

	select {
	case m.outbox <- payload:
		return SendAccepted
	default:
	}

	// The writer is still busy with an earlier frame.
	result := SendAccepted
	select {
	case <-m.outbox:
		result = SendReplaced
	default:
	}
	select {
	case m.outbox <- payload:
		return result
	default:
		return SendRejected
	}
}

// ForceClose drops the current link locally and applies the reconnect policy.
func (m *Machine) ForceClose(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked(m.gen, fmt.Errorf("%w: %s", ErrForcedClose, reason))
}

// Shutdown closes the link for good. Pending reconnects are cancelled and
// later Connect calls are no-ops.
func (m *Machine) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return
	}
	m.shutdown = true
	m.gen++
	m.stopTimerLocked()
	if m.conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutdown")
		if err := m.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
			m.logger.Trace("close frame not sent: %v", err)
		}
	}
	m.teardownLocked()
	m.lastReason = ErrShutdown.Error()
	m.setStateLocked(StateClosed)
	m.report(status.Status{Kind: status.KindDisconnected, Message: ErrShutdown.Error()})
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:      m.state,
		Attempt:    m.attempt,
		Delay:      m.delay,
		LastReason: m.lastReason,
	}
}

func (m *Machine) Policy() Policy {
	return m.policy
}

func (m *Machine) connectLocked() {
	if m.shutdown {
		return
	}
	switch m.state {
	case StateConnecting, StateOpen, StateFailed:
		return
	}

	// A manual connect supersedes a scheduled one.
	m.stopTimerLocked()
	m.gen++
	gen := m.gen

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	m.dialCancel = cancel
	m.setStateLocked(StateConnecting)
	m.report(status.Status{Kind: status.KindConnecting, Attempt: m.attempt, MaxAttempts: m.policy.MaxAttempts})

	go m.dial(ctx, cancel, gen)
}

func (m *Machine) dial(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer cancel()

	conn, resp, err := m.dialer.DialContext(ctx, m.url, m.header)
	if err != nil && resp != nil {
		err = fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.state != StateConnecting {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		m.closeLocked(gen, fmt.Errorf("dial %s: %w", m.url, err))
		return
	}

	m.dialCancel = nil
	m.conn = conn
	m.connDone = make(chan struct{})
	m.outbox = make(chan []byte, 1)
	m.attempt = 0
	m.delay = 0
	m.lastReason = ""
	m.setStateLocked(StateOpen)
	m.report(status.Status{Kind: status.KindConnected})

	go m.readPump(conn, gen)
	go m.writePump(conn, gen, m.outbox, m.connDone)
}

// readPump delivers inbound frames until the connection breaks.
func (m *Machine) readPump(conn *websocket.Conn, gen uint64) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.logger.Warning("Classifier link read error: %v", err)
			}
			m.handleClosure(gen, fmt.Errorf("read: %w", err))
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		m.onMessage(data)
	}
}

// writePump is the connection's only data writer. It drains the outbox and
// keeps the peer alive with pings.
func (m *Machine) writePump(conn *websocket.Conn, gen uint64, outbox <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case payload := <-outbox:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				m.metrics.IncDropped(metrics.DropSendFailed)
				m.handleClosure(gen, fmt.Errorf("send: %w", err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				m.handleClosure(gen, fmt.Errorf("ping: %w", err))
				return
			}
		}
	}
}

func (m *Machine) handleClosure(gen uint64, reason error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked(gen, reason)
}

// closeLocked is the single closure transition. Only the first closure of the
// current generation counts, so a broken link schedules exactly one reconnect.
func (m *Machine) closeLocked(gen uint64, reason error) {
	if gen != m.gen || m.shutdown {
		return
	}
	if m.state != StateConnecting && m.state != StateOpen {
		return
	}

	m.teardownLocked()
	m.lastReason = reason.Error()
	m.setStateLocked(StateClosed)
	m.report(status.Status{Kind: status.KindError, Message: m.lastReason})

	if m.attempt < m.policy.MaxAttempts {
		delay := m.policy.Delay(m.attempt)
		m.attempt++
		m.delay = delay
		m.setStateLocked(StateReconnecting)
		m.metrics.IncReconnects()
		m.report(status.Status{
			Kind:        status.KindReconnecting,
			Message:     m.lastReason,
			Attempt:     m.attempt,
			MaxAttempts: m.policy.MaxAttempts,
			Delay:       delay,
		})
		token := m.gen
		m.timer = time.AfterFunc(delay, func() { m.fireReconnect(token) })
		return
	}

	m.delay = 0
	m.setStateLocked(StateFailed)
	m.report(status.Status{
		Kind:        status.KindFatal,
		Message:     fmt.Sprintf("%v after %d attempts (%s). Restart to retry.", ErrRetriesExhausted, m.policy.MaxAttempts, m.lastReason),
		Attempt:     m.attempt,
		MaxAttempts: m.policy.MaxAttempts,
	})
}

func (m *Machine) fireReconnect(token uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A manual connect or shutdown since scheduling makes this timer stale.
	if token != m.gen || m.state != StateReconnecting {
		return
	}
	m.timer = nil
	m.connectLocked()
}

func (m *Machine) teardownLocked() {
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
	if m.conn != nil {
		close(m.connDone)
		m.conn.Close()
		m.conn = nil
		m.connDone = nil
		m.outbox = nil
	}
}

func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) setStateLocked(s State) {
	m.state = s
	m.metrics.SetLinkState(int(s))
}

func (m *Machine) report(s status.Status) {
	s.Time = time.Now()
	m.reporter.Report(s)
}
