// Package ws is the real-time transport. Clients subscribe to notification
// topics and send chat frames over one WebSocket connection.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"
	"golang.org/x/time/rate"

	"github.com/vecinotech/vecinotech/internal/authn"
	"github.com/vecinotech/vecinotech/pkg/logger"
	"github.com/vecinotech/vecinotech/pkg/notify"
	"github.com/vecinotech/vecinotech/pkg/server"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
)

const (
	maxFramePayloadBytes    = 16 * 1024
	maxFramesPerSecond      = 20
	maxDecodeErrorsPerConn  = 3
	maxSubscriptionsPerConn = 32
)

type Config struct {
	// PingPeriod is how often the server pings an idle client. Zero disables pings.
	PingPeriod time.Duration
	// WriteTimeout bounds every frame write.
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		PingPeriod:   30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Handler upgrades authenticated requests to WebSocket sessions. The caller
// must run authn.Middleware before it.
type Handler struct {
	server *server.Server
	logger logger.Logger
	config Config
	ws     websocket.Server

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

func NewHandler(s *server.Server, l logger.Logger, cfg Config) *Handler {
	h := &Handler{server: s, logger: l, config: cfg, conns: make(map[*websocket.Conn]struct{})}
	h.ws = websocket.Server{
		// origins are enforced by the CORS layer; tokens, not cookies, authenticate
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   h.serveConn,
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if authn.UserID(r.Context()) == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	h.ws.ServeHTTP(w, r)
}

// Close disconnects every open session. Sessions opened afterwards are
// closed right away. Hijacked connections are not tracked by
// http.Server.Shutdown, so register Close with RegisterOnShutdown.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	conns := h.conns
	h.conns = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	for conn := range conns {
		_ = conn.Close()
	}
}

func (h *Handler) track(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[conn] = struct{}{}
	return true
}

func (h *Handler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

func (h *Handler) serveConn(conn *websocket.Conn) {
	if !h.track(conn) {
		_ = conn.Close()
		return
	}
	conn.MaxPayloadBytes = maxFramePayloadBytes

	ctx, cancel := context.WithCancel(conn.Request().Context())
	sess := &session{
		h:      h,
		conn:   conn,
		id:     uuid.NewString(),
		userID: authn.UserID(ctx),
		subs:   make(map[notify.Topic]*notify.Subscription),
	}
	h.logger.DebugWithContext(ctx, "websocket session opened",
		zap.String("conn_id", sess.id),
		zap.String("user_id", sess.userID))

	var wg conc.WaitGroup
	defer func() {
		cancel()
		sess.unsubscribeAll()
		_ = conn.Close()
		wg.Wait()
		h.untrack(conn)
		h.logger.Debug("websocket session closed",
			zap.String("conn_id", sess.id),
			zap.String("user_id", sess.userID))
	}()

	if h.config.PingPeriod > 0 {
		wg.Go(func() { sess.pingLoop(ctx) })
	}

	sess.readLoop(ctx, &wg)
}

type session struct {
	h      *Handler
	conn   *websocket.Conn
	id     string
	userID string

	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[notify.Topic]*notify.Subscription
}

func (s *session) write(frame Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.h.config.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.h.config.WriteTimeout))
	}
	return websocket.JSON.Send(s.conn, frame)
}

func (s *session) writeError(ref string, err error) {
	_ = s.write(Frame{
		Type:    TypeError,
		Ref:     ref,
		Payload: mustJSON(errorPayload{Code: serverErrors.Code(err), Message: serverErrors.PublicMessage(err)}),
	})
}

func (s *session) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.h.config.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.h.config.WriteTimeout))
	}
	s.conn.PayloadType = websocket.PingFrame
	defer func() { s.conn.PayloadType = websocket.TextFrame }()
	_, err := s.conn.Write(nil)
	return err
}

func (s *session) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.h.config.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.ping(); err != nil {
				// unblocks the read loop
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (s *session) readLoop(ctx context.Context, wg *conc.WaitGroup) {
	limiter := rate.NewLimiter(rate.Limit(maxFramesPerSecond), maxFramesPerSecond)
	decodeErrors := 0

	for {
		var frame Frame
		if err := websocket.JSON.Receive(s.conn, &frame); err != nil {
			if ctx.Err() != nil || !isDecodeError(err) {
				return
			}
			decodeErrors++
			s.writeError("", serverErrors.InvalidArgument("invalid frame"))
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if !limiter.Allow() {
			s.writeError(frame.Ref, serverErrors.InvalidArgument("rate limit exceeded"))
			return
		}

		if err := s.dispatch(ctx, wg, frame); err != nil {
			s.writeError(frame.Ref, err)
		}
	}
}

// isDecodeError reports whether err is a bad frame rather than a broken
// connection.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.Is(err, websocket.ErrFrameTooLarge) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func (s *session) dispatch(ctx context.Context, wg *conc.WaitGroup, frame Frame) error {
	switch frame.Type {
	case TypeSubscribe:
		return s.subscribe(ctx, wg, frame)
	case TypeUnsubscribe:
		topic, err := s.topicOf(frame)
		if err != nil {
			return err
		}
		s.unsubscribe(topic)
		return nil
	case TypeChatSend:
		p, err := chatOf(frame)
		if err != nil {
			return err
		}
		_, err = s.h.server.SendMessage(ctx, p.RequestID, s.userID, p.Body)
		return err
	case TypeChatJoin:
		p, err := chatOf(frame)
		if err != nil {
			return err
		}
		return s.h.server.JoinChat(ctx, p.RequestID, s.userID)
	case TypeChatLeave:
		p, err := chatOf(frame)
		if err != nil {
			return err
		}
		return s.h.server.LeaveChat(ctx, p.RequestID, s.userID)
	default:
		return serverErrors.InvalidArgument("unsupported frame type %q", frame.Type)
	}
}

func (s *session) topicOf(frame Frame) (notify.Topic, error) {
	var p topicPayload
	if err := json.Unmarshal(frame.Payload, &p); err != nil {
		return notify.Topic{}, serverErrors.InvalidArgument("invalid %s payload", frame.Type)
	}
	topic, err := notify.ParseTopic(p.Topic)
	if err != nil {
		return notify.Topic{}, serverErrors.InvalidArgument("invalid topic %q", p.Topic)
	}
	return topic, nil
}

func chatOf(frame Frame) (chatPayload, error) {
	var p chatPayload
	if err := json.Unmarshal(frame.Payload, &p); err != nil {
		return p, serverErrors.InvalidArgument("invalid %s payload", frame.Type)
	}
	return p, nil
}

func (s *session) subscribe(ctx context.Context, wg *conc.WaitGroup, frame Frame) error {
	topic, err := s.topicOf(frame)
	if err != nil {
		return err
	}

	s.mu.Lock()
	_, exists := s.subs[topic]
	full := len(s.subs) >= maxSubscriptionsPerConn
	s.mu.Unlock()

	if !exists {
		if full {
			return serverErrors.InvalidArgument("at most %d subscriptions per connection", maxSubscriptionsPerConn)
		}
		sub, err := s.h.server.Subscribe(ctx, topic, s.userID)
		if err != nil {
			return err
		}

		s.mu.Lock()
		if _, raced := s.subs[topic]; raced {
			s.mu.Unlock()
			s.h.server.Unsubscribe(sub)
		} else {
			s.subs[topic] = sub
			s.mu.Unlock()
			wg.Go(func() { s.forward(sub) })
		}
	}

	return s.write(Frame{Type: TypeSubscribed, Ref: frame.Ref, Payload: mustJSON(subscribedPayload{Topic: topic})})
}

// forward relays sub's events until it is unsubscribed.
func (s *session) forward(sub *notify.Subscription) {
	for ev := range sub.Events() {
		if err := s.write(Frame{Type: TypeEvent, Payload: mustJSON(ev)}); err != nil {
			s.h.logger.Debug("failed to write event frame",
				zap.String("conn_id", s.id),
				zap.String("user_id", s.userID),
				zap.String("topic", sub.Topic.String()),
				zap.Error(err))
		}
	}
	if dropped := sub.Dropped(); dropped > 0 {
		s.h.logger.Info("slow subscriber dropped events",
			zap.String("conn_id", s.id),
			zap.String("user_id", s.userID),
			zap.String("topic", sub.Topic.String()),
			zap.Int("dropped", dropped))
	}
}

func (s *session) unsubscribe(topic notify.Topic) {
	s.mu.Lock()
	sub, ok := s.subs[topic]
	delete(s.subs, topic)
	s.mu.Unlock()
	if ok {
		s.h.server.Unsubscribe(sub)
	}
}

func (s *session) unsubscribeAll() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[notify.Topic]*notify.Subscription)
	s.mu.Unlock()
	for _, sub := range subs {
		s.h.server.Unsubscribe(sub)
	}
}
