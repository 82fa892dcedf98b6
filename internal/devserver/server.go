// Package devserver is a local stand-in for the robot control server. It
// accepts programs, source uploads and live command streams, validates them
// and keeps what it received for inspection; nothing is sent to a robot.
package devserver

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saker-ai/spot-sdk/pkg/spot"
)

// Options configures a Server.
type Options struct {
	Addr             string
	SourceExtensions []string
	MaxUploadBytes   int64
}

// ProgramSubmission is a program received on POST /program.
type ProgramSubmission struct {
	Name     string         `json:"name"`
	Commands []spot.Command `json:"commands"`
	Valid    bool           `json:"valid"`
	Reason   string         `json:"reason,omitempty"`
	At       time.Time      `json:"at"`
}

// Upload is a source upload received on POST /file.
type Upload struct {
	Folder bool      `json:"folder"`
	Main   string    `json:"main"`
	Files  []string  `json:"files"`
	Valid  bool      `json:"valid"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// ReceivedCommand is a live command frame received from a controller.
type ReceivedCommand struct {
	Controller string       `json:"controller"`
	Command    spot.Command `json:"command"`
	At         time.Time    `json:"at"`
}

// Server represents a server.
type Server struct {
	opts     Options
	logger   *zap.Logger
	engine   *gin.Engine
	http     *http.Server
	upgrader websocket.Upgrader
	registry *Registry

	mu       sync.Mutex
	programs []ProgramSubmission
	uploads  []Upload
	commands []ReceivedCommand
	changed  chan struct{}
	conns    map[*websocket.Conn]struct{}
}

// New executes the new function.
func New(opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.SourceExtensions) == 0 {
		opts.SourceExtensions = []string{".py"}
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	s := &Server{
		opts:     opts,
		logger:   logger,
		registry: NewRegistry(),
		changed:  make(chan struct{}),
		conns:    make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.engine = newRouter(s, logger)
	s.http = &http.Server{
		Addr:    opts.Addr,
		Handler: s.engine,
	}
	return s
}

// Handler returns the HTTP handler, for embedding or httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("starting control server", zap.String("addr", s.opts.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown disconnects live controllers and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.DisconnectAll()
	return s.http.Shutdown(ctx)
}

// DisconnectAll closes every live connection with a normal close frame.
func (s *Server) DisconnectAll() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down")
	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
}

// Controllers lists the connected controllers.
func (s *Server) Controllers() []Controller {
	return s.registry.List()
}

// Programs returns the programs received so far.
func (s *Server) Programs() []ProgramSubmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProgramSubmission, len(s.programs))
	copy(out, s.programs)
	return out
}

// Uploads returns the uploads received so far.
func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Upload, len(s.uploads))
	copy(out, s.uploads)
	return out
}

// Commands returns the live commands received so far, in arrival order.
func (s *Server) Commands() []ReceivedCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ReceivedCommand, len(s.commands))
	copy(out, s.commands)
	return out
}

// WaitCommands blocks until at least n live commands have arrived.
func (s *Server) WaitCommands(ctx context.Context, n int) ([]ReceivedCommand, error) {
	for {
		s.mu.Lock()
		if len(s.commands) >= n {
			out := make([]ReceivedCommand, len(s.commands))
			copy(out, s.commands)
			s.mu.Unlock()
			return out, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		}
	}
}

func (s *Server) recordProgram(p ProgramSubmission) {
	s.mu.Lock()
	s.programs = append(s.programs, p)
	s.notifyLocked()
	s.mu.Unlock()
}

func (s *Server) recordUpload(u Upload) {
	s.mu.Lock()
	s.uploads = append(s.uploads, u)
	s.notifyLocked()
	s.mu.Unlock()
}

func (s *Server) recordCommand(c ReceivedCommand) {
	s.mu.Lock()
	s.commands = append(s.commands, c)
	s.notifyLocked()
	s.mu.Unlock()
}

func (s *Server) trackConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrackConn(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
