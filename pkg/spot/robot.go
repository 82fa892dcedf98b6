package spot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Robot is one control session. Motion calls are recorded into a program
// while authoring and queued for live delivery otherwise.
type Robot struct {
	cfg       Config
	endpoints Endpoints
	logger    *zap.Logger
	store     *ProgramStore
	queue     *Queue

	mu       sync.Mutex
	mode     sessionMode
	identity string
	conn     *ConnectionManager
	closed   bool

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRobot executes the newRobot function.
func NewRobot(cfg Config, logger *zap.Logger) *Robot {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = normalizeConfig(cfg)
	endpoints := EndpointsFor(cfg.ServerAddr)
	return &Robot{
		cfg:       cfg,
		endpoints: endpoints,
		logger:    logger,
		store:     NewProgramStore(endpoints.Program, cfg.HTTPClient, logger),
		queue:     NewQueue(),
		mode:      idleMode{},
		sleep:     sleepContext,
	}
}

// Endpoints returns the URLs this robot talks to.
func (r *Robot) Endpoints() Endpoints {
	return r.endpoints
}

// Queue exposes the live dispatch queue.
func (r *Robot) Queue() *Queue {
	return r.queue
}

// Identity returns the controller name announced by Connect.
func (r *Robot) Identity() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identity
}

// Mode reports the current routing mode. A live session whose connection has
// ended reports idle.
func (r *Robot) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.mode.(liveMode); ok && r.conn != nil && isDone(r.conn.Done()) {
		return ModeIdle
	}
	return r.mode.kind()
}

// ConnectionState reports the live connection state, or disconnected before
// Connect.
func (r *Robot) ConnectionState() ConnectionState {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return StateDisconnected
	}
	return conn.State()
}

// Connect starts the live connection in the background under the given
// controller identity. Commands queued before or after are drained in order.
//
// ctx governs the whole background connection, not only the dial: when it is
// cancelled or its deadline passes, the session is closed. Pass a long-lived
// context and use Close or a keep-alive call to end the session.
func (r *Robot) Connect(ctx context.Context, identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return invalidArgument("controller identity is empty")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.conn != nil && !isDone(r.conn.Done()) {
		r.mu.Unlock()
		return errors.New("live connection already running")
	}
	conn := NewConnectionManager(ConnOptions{
		URL:         r.endpoints.Live,
		Identity:    identity,
		Reconnect:   r.cfg.Reconnect,
		DialTimeout: r.cfg.DialTimeout,
		Logger:      r.logger,
	}, r.queue)
	r.conn = conn
	r.identity = identity
	switch m := r.mode.(type) {
	case idleMode:
		r.mode = liveMode{}
	case authoringMode:
		m.resume = liveMode{}
		r.mode = m
	}
	r.mu.Unlock()

	return conn.Start(ctx)
}

// StartProgram begins authoring a program. Any program already being
// authored is discarded.
func (r *Robot) StartProgram(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	resume := r.mode
	if current, ok := r.mode.(authoringMode); ok {
		r.logger.Warn("discarding unflushed program",
			zap.String("program", current.program.Name),
			zap.Int("commands", len(current.program.Commands)),
		)
		resume = current.resume
	}
	r.mode = authoringMode{program: &Program{Name: name}, resume: resume}
	return nil
}

// Program returns a copy of the program being authored.
func (r *Robot) Program() (Program, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.mode.(authoringMode)
	if !ok {
		return Program{}, false
	}
	out := Program{Name: current.program.Name, Commands: make([]Command, len(current.program.Commands))}
	copy(out.Commands, current.program.Commands)
	return out, true
}

// FlushProgram leaves authoring mode and submits the program. The session
// is reset before the result is known, so a failed submission does not block
// the next program; a configured Recorder still receives a copy.
func (r *Robot) FlushProgram(ctx context.Context) (bool, error) {
	r.mu.Lock()
	current, ok := r.mode.(authoringMode)
	if !ok {
		r.mu.Unlock()
		return false, ErrNotAuthoring
	}
	r.mode = current.resume
	if r.mode == nil {
		r.mode = idleMode{}
	}
	r.mu.Unlock()

	program := *current.program
	valid, err := r.store.Submit(ctx, program)
	if r.cfg.Recorder != nil {
		rec := ProgramRecord{Program: program, Valid: valid, Err: err, SubmittedAt: time.Now()}
		if recErr := r.cfg.Recorder.Record(rec); recErr != nil {
			r.logger.Warn("program journal write failed",
				zap.String("program", program.Name),
				zap.Error(recErr),
			)
		}
	}
	return valid, err
}

// Do builds a command from loosely typed params and sends it.
func (r *Robot) Do(ctx context.Context, verb Verb, params map[string]any) error {
	cmd, err := Build(verb, params)
	if err != nil {
		return err
	}
	return r.Send(ctx, cmd)
}

// Send routes a built command and, outside authoring, waits for the verb's
// settle duration. A command that Build would reject, including the zero
// Command, fails with ErrInvalidArgument and is neither queued nor recorded.
func (r *Robot) Send(ctx context.Context, cmd Command) error {
	if err := cmd.validate(); err != nil {
		return err
	}
	authoring, err := r.dispatch(cmd)
	if err != nil {
		return err
	}
	if authoring {
		return nil
	}
	if d := r.cfg.Settle.forVerb(cmd.Verb()); d > 0 {
		return r.sleep(ctx, d)
	}
	return nil
}

// Stand tells the robot to stand.
func (r *Robot) Stand(ctx context.Context) error {
	return r.Send(ctx, Stand())
}

// Sit tells the robot to sit.
func (r *Robot) Sit(ctx context.Context) error {
	return r.Send(ctx, Sit())
}

// Rotate sets the body pitch, yaw and roll in degrees.
func (r *Robot) Rotate(ctx context.Context, pitch, yaw, roll float64) error {
	return r.Send(ctx, Rotate(pitch, yaw, roll))
}

// Walk moves the robot; x and y are velocity components and z the body turn.
func (r *Robot) Walk(ctx context.Context, x, y, z float64) error {
	return r.Send(ctx, Walk(x, y, z))
}

// Wait schedules a delay on the robot. It does not block the caller.
func (r *Robot) Wait(ctx context.Context, seconds float64) error {
	return r.Send(ctx, Wait(seconds))
}

// dispatch appends cmd to the program when authoring and to the live queue
// otherwise. It reports whether the command went to a program.
func (r *Robot) dispatch(cmd Command) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false, ErrClosed
	}
	if current, ok := r.mode.(authoringMode); ok {
		current.program.append(cmd)
		return true, nil
	}
	r.queue.Enqueue(cmd)
	return false, nil
}

// KeepAliveForever blocks until ctx is done, Close is called, or the live
// connection ends on its own.
func (r *Robot) KeepAliveForever(ctx context.Context) error {
	conn, err := r.liveConn()
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		conn.Stop()
		<-conn.Done()
		return ctx.Err()
	case <-conn.Done():
		return conn.Err()
	}
}

// KeepAliveUntilDone blocks until every queued command has been handed to
// the connection, then stops it.
func (r *Robot) KeepAliveUntilDone(ctx context.Context) error {
	conn, err := r.liveConn()
	if err != nil {
		return err
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	drained := make(chan error, 1)
	go func() {
		drained <- r.queue.WaitEmpty(wctx)
	}()

	select {
	case err := <-drained:
		conn.Stop()
		<-conn.Done()
		return err
	case <-conn.Done():
		cancel()
		<-drained
		return conn.Err()
	}
}

// Close stops the live connection and rejects further commands.
func (r *Robot) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conn := r.conn
	r.mu.Unlock()

	if conn != nil {
		conn.Stop()
		<-conn.Done()
	}
	return nil
}

func (r *Robot) liveConn() (*ConnectionManager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil, ErrNotConnected
	}
	return r.conn, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isDone(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
