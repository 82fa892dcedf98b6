package devserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saker-ai/spot-sdk/internal/protocol"
)

type liveSession struct {
	server *Server
	conn   *websocket.Conn
	id     string
	logger *zap.Logger
}

type frameHandler func(protocol.IncomingCommandFrame)

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	sess := &liveSession{
		server: s,
		conn:   conn,
		id:     id,
		logger: s.logger.With(zap.String("session_id", id)),
	}

	s.registry.Register(id)
	s.trackConn(conn)
	defer func() {
		s.untrackConn(conn)
		s.registry.Remove(id)
	}()

	sess.logger.Info("ws session opened", zap.String("remote", r.RemoteAddr))
	if err := conn.WriteJSON(protocol.WelcomeFrame{Type: protocol.TypeWelcome, ID: id}); err != nil {
		sess.logger.Warn("ws greeting failed", zap.Error(err))
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.logger.Info("ws session closed", zap.String("controller", s.registry.Name(id)))
			} else {
				sess.logger.Warn("ws session lost", zap.Error(err))
			}
			return
		}
		sess.dispatch(data)
	}
}

func (sess *liveSession) dispatch(data []byte) {
	var frame protocol.IncomingCommandFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		sess.logger.Warn("ws malformed frame", zap.Error(err))
		return
	}

	handlers := map[string]frameHandler{
		protocol.TypeChangeName: sess.onChangeName,
		protocol.TypeCommand:    sess.onCommand,
	}
	if handler, ok := handlers[frame.Type]; ok {
		handler(frame)
		return
	}
	sess.logger.Debug("ws unknown message type", zap.String("type", frame.Type))
}

func (sess *liveSession) onChangeName(frame protocol.IncomingCommandFrame) {
	prev, _ := sess.server.registry.Rename(sess.id, frame.Name)
	sess.logger.Info("controller renamed",
		zap.String("from", prev),
		zap.String("to", frame.Name),
	)
}

func (sess *liveSession) onCommand(frame protocol.IncomingCommandFrame) {
	args, err := protocol.CommandArgs(frame.Args)
	if err != nil {
		sess.logger.Warn("ws command args malformed", zap.String("command", frame.Command), zap.Error(err))
		return
	}
	cmd, err := decodeCommand(frame.Command, args)
	if err != nil {
		sess.logger.Warn("ws command rejected", zap.String("command", frame.Command), zap.Error(err))
		return
	}
	controller := sess.server.registry.Name(sess.id)
	sess.server.recordCommand(ReceivedCommand{Controller: controller, Command: cmd, At: time.Now()})
	sess.logger.Info("live command received",
		zap.String("controller", controller),
		zap.String("command", cmd.String()),
	)
}
