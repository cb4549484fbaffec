package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dbehnke/mbedecode/internal/codec"
	"github.com/dbehnke/mbedecode/internal/database"
	"github.com/dbehnke/mbedecode/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendQueueSize  = 64
)

var (
	// ErrTooManySessions is sent when max_sessions sessions are live
	ErrTooManySessions = errors.New("server: too many sessions")

	// ErrUnsupportedCodec is sent when session/start names a codec the device lacks
	ErrUnsupportedCodec = errors.New("server: unsupported codec")

	// ErrBadControlMessage is sent for text messages that cannot be handled
	ErrBadControlMessage = errors.New("server: bad control message")

	// ErrShuttingDown refuses upgrades once Shutdown has started
	ErrShuttingDown = errors.New("server: shutting down")
)

type outbound struct {
	messageType int
	data        []byte
}

// liveSession couples one websocket connection with one decode session
type liveSession struct {
	server     *Server
	conn       *websocket.Conn
	sess       *session.Session
	record     *database.SessionRecord
	remoteAddr string
	startedAt  time.Time

	ctx    context.Context
	cancel context.CancelFunc
	send   chan outbound

	mu     sync.Mutex
	reason string
}

func (s *Server) handleDecode(c *gin.Context) {
	// Add must not race the Wait in Shutdown
	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		s.refused()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrShuttingDown.Error()})
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Printf("Websocket upgrade failed: %v", err)
		return
	}

	remoteAddr := c.Request.RemoteAddr
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ls, err := s.startSession(conn, remoteAddr)
	if err != nil {
		if s.config.Debug {
			s.logger.Printf("Session start from %s failed: %v", remoteAddr, err)
		}
		s.writeDirect(conn, newErrorMessage(err))
		s.closeDirect(conn, websocket.ClosePolicyViolation, err.Error())
		return
	}

	ls.run()
}

// startSession reads session/start and brings up a registered session
func (s *Server) startSession(conn *websocket.Conn, remoteAddr string) (*liveSession, error) {
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadControlMessage, err)
	}
	if messageType != websocket.TextMessage {
		return nil, fmt.Errorf("%w: expected %s first", ErrBadControlMessage, MSG_SESSION_START)
	}

	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadControlMessage, err)
	}
	if msg.Type != MSG_SESSION_START {
		return nil, fmt.Errorf("%w: expected %s first, got %q", ErrBadControlMessage, MSG_SESSION_START, msg.Type)
	}
	if msg.Codec != "" && !slices.Contains(s.device.Codecs(), msg.Codec) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, msg.Codec)
	}

	if !s.hasCapacity() {
		s.refused()
		return nil, ErrTooManySessions
	}

	sess, err := s.device.StartSession(msg.Settings())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ls := &liveSession{
		server:     s,
		conn:       conn,
		sess:       sess,
		remoteAddr: remoteAddr,
		startedAt:  time.Now().UTC(),
		ctx:        ctx,
		cancel:     cancel,
		send:       make(chan outbound, sendQueueSize),
	}
	ls.record = &database.SessionRecord{
		ID:          sess.ID().String(),
		Driver:      s.driverID,
		Synthesizer: sess.Synthesizer(),
		Mode:        sess.Mode().String(),
		RemoteAddr:  remoteAddr,
		Args:        formatArgs(msg.Args),
		Quality:     sess.Quality(),
		StartedAt:   ls.startedAt,
	}

	if !s.register(ls) {
		cancel()
		sess.End()
		s.refused()
		return nil, ErrTooManySessions
	}

	if s.journal != nil {
		if err := s.journal.Create(ls.record); err != nil {
			s.logger.Printf("Session %s: journal create failed: %v", ls.record.ID, err)
		}
	}
	if s.metrics != nil {
		s.metrics.SessionStarted()
	}

	s.logger.Printf("Session %s started for %s (%s)", ls.record.ID, remoteAddr, ls.record.Mode)
	return ls, nil
}

func (s *Server) hasCapacity() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.isShutdown && len(s.sessions) < s.config.MaxSessions
}

func (s *Server) register(ls *liveSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isShutdown || len(s.sessions) >= s.config.MaxSessions {
		return false
	}
	s.sessions[ls.record.ID] = ls
	return true
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Server) refused() {
	if s.metrics != nil {
		s.metrics.SessionsRefused.Inc()
	}
}

func (s *Server) writeDirect(conn *websocket.Conn, v any) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(v); err != nil && s.config.Debug {
		s.logger.Printf("Websocket write failed: %v", err)
	}
}

func (s *Server) closeDirect(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}

// run serves the connection until the client ends the session, the
// connection drops or the server shuts down
func (ls *liveSession) run() {
	writerDone := make(chan struct{})
	pumpDone := make(chan struct{})

	go ls.writer(writerDone)
	go ls.pump(pumpDone)

	ls.queueJSON(newFramingMessage(ls.sess))

	reason := ls.readLoop()
	ls.setReason(reason)

	ls.cancel()
	ls.sess.End()
	<-pumpDone

	stats := ls.sess.Stats()
	if ls.endReason() == database.END_REASON_CLIENT {
		ls.queueJSON(EndedMessage{Type: MSG_SESSION_ENDED, SessionID: ls.record.ID, Stats: stats})
	}
	close(ls.send)
	<-writerDone
	_ = ls.conn.Close()

	ls.finish(stats)
}

func (ls *liveSession) readLoop() string {
	for {
		messageType, data, err := ls.conn.ReadMessage()
		if err != nil {
			if ls.ctx.Err() != nil {
				return ls.endReason()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ls.server.logger.Printf("Session %s: websocket error: %v", ls.record.ID, err)
			}
			return database.END_REASON_DISCONNECT
		}

		switch messageType {
		case websocket.BinaryMessage:
			if err := ls.sess.Decode(ls.ctx, data); err != nil {
				switch {
				case errors.Is(err, codec.ErrReconfigured):
					// dropped: queued under the previous mode
				case errors.Is(err, session.ErrSessionEnded), errors.Is(err, context.Canceled):
					return ls.endReason()
				default:
					ls.server.logger.Printf("Session %s: decode failed: %v", ls.record.ID, err)
					return database.END_REASON_ERROR
				}
			}

		case websocket.TextMessage:
			if done := ls.handleControl(data); done {
				return database.END_REASON_CLIENT
			}
		}
	}
}

// handleControl acts on one text message and reports whether the client
// asked to end the session
func (ls *liveSession) handleControl(data []byte) bool {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		ls.queueJSON(newErrorMessage(fmt.Errorf("%w: %v", ErrBadControlMessage, err)))
		return false
	}

	switch msg.Type {
	case MSG_SESSION_RENEGOTIATE:
		if err := ls.sess.Renegotiate(msg.Settings()); err != nil {
			ls.queueJSON(newErrorMessage(err))
			return false
		}
		ls.mu.Lock()
		ls.record.Mode = ls.sess.Mode().String()
		ls.record.Args = formatArgs(msg.Args)
		ls.mu.Unlock()
		ls.queueJSON(newFramingMessage(ls.sess))

	case MSG_SESSION_END:
		return true

	default:
		ls.queueJSON(newErrorMessage(fmt.Errorf("%w: unknown type %q", ErrBadControlMessage, msg.Type)))
	}

	return false
}

// pump decodes queued frames and sends each PCM frame as a binary message
func (ls *liveSession) pump(done chan<- struct{}) {
	defer close(done)

	pcm := make([]byte, codec.AUDIO_BYTES)
	for {
		n, err := ls.sess.Read(ls.ctx, pcm)
		if err != nil {
			if errors.Is(err, codec.ErrReconfigured) {
				continue
			}
			if !errors.Is(err, session.ErrSessionEnded) && !errors.Is(err, context.Canceled) {
				ls.server.logger.Printf("Session %s: read failed: %v", ls.record.ID, err)
				ls.stop(database.END_REASON_ERROR)
			}
			return
		}

		frame := make([]byte, n)
		copy(frame, pcm[:n])
		if !ls.queue(outbound{messageType: websocket.BinaryMessage, data: frame}) {
			return
		}
	}
}

// writer is the only goroutine writing to the connection
func (ls *liveSession) writer(done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ls.send:
			_ = ls.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ls.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ls.endReason()))
				return
			}
			if err := ls.conn.WriteMessage(msg.messageType, msg.data); err != nil {
				ls.stop(database.END_REASON_DISCONNECT)
				// drain until run closes the channel
				for range ls.send {
				}
				return
			}

		case <-ticker.C:
			_ = ls.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ls.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				ls.stop(database.END_REASON_DISCONNECT)
			}
		}
	}
}

// queue hands a message to the writer. It gives up once the session is
// stopping.
func (ls *liveSession) queue(msg outbound) bool {
	select {
	case ls.send <- msg:
		return true
	case <-ls.ctx.Done():
		return false
	}
}

func (ls *liveSession) queueJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		ls.server.logger.Printf("Session %s: encoding %T: %v", ls.record.ID, v, err)
		return
	}
	msg := outbound{messageType: websocket.TextMessage, data: data}
	if ls.ctx.Err() != nil {
		// the writer drains the channel until it is closed
		ls.send <- msg
		return
	}
	ls.queue(msg)
}

// stop ends the session from outside the read loop. The first recorded
// reason wins.
func (ls *liveSession) stop(reason string) {
	ls.setReason(reason)
	ls.cancel()
	ls.sess.End()
	// unblock ReadMessage
	_ = ls.conn.SetReadDeadline(time.Now())
}

func (ls *liveSession) setReason(reason string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.reason == "" {
		ls.reason = reason
	}
}

func (ls *liveSession) endReason() string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.reason == "" {
		return database.END_REASON_DISCONNECT
	}
	return ls.reason
}

func (ls *liveSession) finish(stats session.Stats) {
	s := ls.server
	reason := ls.endReason()
	endedAt := time.Now().UTC()

	s.unregister(ls.record.ID)

	ls.mu.Lock()
	ls.record.FramesIn = stats.FramesIn
	ls.record.FramesOut = stats.FramesOut
	ls.record.Errors = stats.Errors
	ls.record.Errors2 = stats.Errors2
	ls.record.Renegotiations = stats.Renegotiations
	ls.mu.Unlock()

	if s.journal != nil {
		if err := s.journal.Finish(ls.record, reason, endedAt); err != nil {
			s.logger.Printf("Session %s: journal finish failed: %v", ls.record.ID, err)
		}
	}
	if s.metrics != nil {
		s.metrics.SessionEnded(reason, endedAt.Sub(ls.startedAt))
	}

	s.logger.Printf("Session %s ended (%s): %d frames in, %d frames out",
		ls.record.ID, reason, stats.FramesIn, stats.FramesOut)
}

func (ls *liveSession) info() SessionInfo {
	return SessionInfo{
		ID:          ls.sess.ID().String(),
		Mode:        ls.sess.Mode().String(),
		State:       ls.sess.State().String(),
		RemoteAddr:  ls.remoteAddr,
		Synthesizer: ls.sess.Synthesizer(),
		Quality:     ls.sess.Quality(),
		StartedAt:   ls.startedAt,
		Framing:     ls.sess.Framing(),
		Stats:       ls.sess.Stats(),
	}
}

// formatArgs renders negotiation args as sorted key=value pairs
func formatArgs(args map[string]string) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+args[k])
	}
	return strings.Join(parts, ",")
}
