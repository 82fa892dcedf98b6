package spot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saker-ai/spot-sdk/internal/protocol"
	"github.com/saker-ai/spot-sdk/internal/session/fsm"
)

// ConnectionState mirrors the live connection lifecycle.
type ConnectionState = fsm.State

const (
	StateDisconnected = fsm.StateDisconnected
	StateConnecting   = fsm.StateConnecting
	StateIdentified   = fsm.StateIdentified
	StateClosed       = fsm.StateClosed
)

const (
	closeWriteWait = time.Second
	maxBackoff     = 30 * time.Second
)

// ConnOptions configures a ConnectionManager.
type ConnOptions struct {
	URL         string
	Identity    string
	Reconnect   bool
	DialTimeout time.Duration
	Logger      *zap.Logger
}

// ConnectionManager owns the live websocket: it dials, identifies, and then
// drains the queue oldest-first, one frame at a time, on its own goroutine.
type ConnectionManager struct {
	opts   ConnOptions
	queue  *Queue
	logger *zap.Logger
	state  *fsm.Machine

	mu      sync.Mutex
	conn    *websocket.Conn
	started bool
	stopped bool
	err     error

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewConnectionManager executes the newConnectionManager function.
func NewConnectionManager(opts ConnOptions, queue *Queue) *ConnectionManager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	m := &ConnectionManager{
		opts:   opts,
		queue:  queue,
		logger: logger,
		state:  fsm.New(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	m.state.OnChange(func(from fsm.State, to fsm.State) {
		logger.Debug("live connection state",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
	})
	return m
}

// Start launches the connect and drain loop. It may be called once.
func (m *ConnectionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("connection manager already started")
	}
	m.started = true
	m.mu.Unlock()

	go m.run(ctx)
	return nil
}

// Stop clears the keep-alive flag, closes the socket and ends the loop.
func (m *ConnectionManager) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()
		close(m.stop)
	})
}

// Done is closed once the loop has exited.
func (m *ConnectionManager) Done() <-chan struct{} {
	return m.done
}

// Err returns the error that ended the loop, or nil after a requested stop.
func (m *ConnectionManager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// State returns the current connection state.
func (m *ConnectionManager) State() ConnectionState {
	return m.state.State()
}

func (m *ConnectionManager) keepAlive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.stopped
}

func (m *ConnectionManager) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *ConnectionManager) run(parent context.Context) {
	defer close(m.done)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		select {
		case <-m.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	delay := time.Second
	for {
		err := m.session(ctx)
		switch {
		case err == nil || !m.keepAlive() || ctx.Err() != nil:
			if m.keepAlive() {
				m.setErr(parent.Err())
			}
			_ = m.state.OnClose()
			m.logger.Info("live connection stopped", zap.String("identity", m.opts.Identity))
			return
		case errors.Is(err, ErrProtocolClosed):
			m.setErr(err)
			_ = m.state.OnClose()
			m.logger.Info("websocket closed by control server", zap.String("identity", m.opts.Identity))
			return
		}

		m.setErr(err)
		if m.state.State() != fsm.StateDisconnected {
			_ = m.state.OnLost()
		}
		if !m.opts.Reconnect {
			m.logger.Warn("live connection lost", zap.Error(err))
			return
		}
		m.logger.Warn("live connection lost; reconnecting",
			zap.Error(err),
			zap.Duration("backoff", delay),
		)
		select {
		case <-ctx.Done():
			_ = m.state.OnClose()
			if !m.keepAlive() {
				m.setErr(nil)
			} else {
				m.setErr(parent.Err())
			}
			return
		case <-time.After(delay):
		}
		delay = nextBackoff(delay)
	}
}

// session runs one connection from dial to teardown. A nil return means the
// loop was asked to stop.
func (m *ConnectionManager) session(ctx context.Context) error {
	if err := m.state.OnConnect(); err != nil {
		return err
	}
	m.logger.Info("live connection connecting",
		zap.String("url", m.opts.URL),
		zap.String("identity", m.opts.Identity),
	)

	conn, err := m.dial(ctx)
	if err != nil || conn == nil {
		return err
	}
	defer m.closeConn(conn)

	// Stop must interrupt a blocking read during the handshake.
	ended := make(chan struct{})
	defer close(ended)
	go func() {
		select {
		case <-ctx.Done():
			m.closeConn(conn)
		case <-ended:
		}
	}()

	if err := m.handshake(conn); err != nil {
		return err
	}
	if err := m.state.OnIdentified(); err != nil {
		return err
	}
	m.logger.Info("live connection identified",
		zap.String("url", m.opts.URL),
		zap.String("identity", m.opts.Identity),
	)

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		readErr <- m.readLoop(conn)
		cancel()
	}()

	drainErr := m.drain(sctx, conn)
	// The reader only returns once the socket is closed or fails.
	m.closeConn(conn)
	wg.Wait()
	rerr := <-readErr

	if ctx.Err() != nil {
		return nil
	}
	if drainErr != nil && !errors.Is(drainErr, websocket.ErrCloseSent) {
		return drainErr
	}
	return rerr
}

func (m *ConnectionManager) dial(ctx context.Context) (*websocket.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, m.opts.DialTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: m.opts.DialTimeout}
	conn, _, err := dialer.DialContext(dctx, m.opts.URL, nil)
	if err != nil {
		return nil, &TransportError{Op: "dial", URL: m.opts.URL, Err: err}
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		_ = conn.Close()
		return nil, nil
	}
	m.conn = conn
	m.mu.Unlock()
	return conn, nil
}

func (m *ConnectionManager) handshake(conn *websocket.Conn) error {
	if conn == nil {
		return nil
	}
	if _, _, err := conn.ReadMessage(); err != nil {
		return m.classifyReadErr(err)
	}
	frame := protocol.NewChangeNameFrame(m.opts.Identity)
	if err := conn.WriteJSON(frame); err != nil {
		return &TransportError{Op: "identify", URL: m.opts.URL, Err: err}
	}
	return nil
}

func (m *ConnectionManager) drain(ctx context.Context, conn *websocket.Conn) error {
	for {
		cmd, err := m.queue.Peek(ctx)
		if err != nil {
			return nil
		}
		if err := conn.WriteJSON(cmd.frame()); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &TransportError{Op: "send command", URL: m.opts.URL, Err: err}
		}
		m.queue.Pop()
		m.logger.Debug("live command sent",
			zap.String("command", cmd.String()),
			zap.Int("pending", m.queue.Len()),
		)
	}
}

func (m *ConnectionManager) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return m.classifyReadErr(err)
		}
		m.logger.Debug("live frame received", zap.ByteString("frame", data))
	}
}

func (m *ConnectionManager) classifyReadErr(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return fmt.Errorf("%w: %v", ErrProtocolClosed, err)
	}
	return &TransportError{Op: "read", URL: m.opts.URL, Err: err}
}

func (m *ConnectionManager) closeConn(conn *websocket.Conn) {
	if conn == nil {
		return
	}
	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
	_ = conn.Close()
}

func nextBackoff(delay time.Duration) time.Duration {
	delay *= 2
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}
