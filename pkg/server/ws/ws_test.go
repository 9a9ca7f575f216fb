package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/net/websocket"

	"github.com/vecinotech/vecinotech/internal/authn"
	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/logger"
	"github.com/vecinotech/vecinotech/pkg/notify"
	"github.com/vecinotech/vecinotech/pkg/server"
	"github.com/vecinotech/vecinotech/pkg/server/commands"
	"github.com/vecinotech/vecinotech/pkg/storage"
	"github.com/vecinotech/vecinotech/pkg/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	t       *testing.T
	handler *Handler
	ds      *memory.MemoryBackend
	server  *server.Server
	url     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ds := memory.New()
	log := logger.NewNoopLogger()
	s := server.New(&server.Dependencies{Datastore: ds, Logger: log}, &server.Config{SubscriberBufferSize: 16})

	onError := func(w http.ResponseWriter, _ *http.Request, err error) {
		http.Error(w, err.Error(), http.StatusUnauthorized)
	}
	handler := NewHandler(s, log, DefaultConfig())
	httpServer := httptest.NewServer(authn.Middleware(authn.HeaderAuthenticator{}, onError)(handler))

	t.Cleanup(func() {
		s.Close()
		httpServer.Close()
	})

	return &fixture{t: t, handler: handler, ds: ds, server: s, url: "ws" + strings.TrimPrefix(httpServer.URL, "http")}
}

func (f *fixture) dial(userID string) *websocket.Conn {
	f.t.Helper()
	cfg, err := websocket.NewConfig(f.url+"/ws", "http://localhost/")
	require.NoError(f.t, err)
	cfg.Header.Set(authn.UserIDHeader, userID)
	conn, err := websocket.DialConfig(cfg)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *fixture) openRequest(requester string) *storage.Request {
	f.t.Helper()
	ctx := context.Background()
	loc := geo.Coordinate{Latitude: 40.4153, Longitude: -3.7074}
	require.NoError(f.t, f.ds.UpsertProfile(ctx, &storage.UserProfile{UserID: requester, DisplayName: requester}))
	require.NoError(f.t, f.ds.SetProfileLocation(ctx, requester, &loc, time.Now()))
	r, err := f.server.CreateRequest(ctx, commands.CreateRequestInput{RequesterID: requester, Title: "t", Description: "d"})
	require.NoError(f.t, err)
	return r
}

func send(t *testing.T, conn *websocket.Conn, typ, ref string, payload any) {
	t.Helper()
	require.NoError(t, websocket.JSON.Send(conn, Frame{Type: typ, Ref: ref, Payload: mustJSON(payload)}))
}

func receive(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame Frame
	require.NoError(t, websocket.JSON.Receive(conn, &frame))
	return frame
}

type eventFrame struct {
	Kind      notify.Kind     `json:"kind"`
	Topic     string          `json:"topic"`
	RequestID string          `json:"requestId"`
	ActorID   string          `json:"actorId"`
	Data      json.RawMessage `json:"data"`
}

func receiveEvent(t *testing.T, conn *websocket.Conn) eventFrame {
	t.Helper()
	frame := receive(t, conn)
	require.Equal(t, TypeEvent, frame.Type, string(frame.Payload))
	var ev eventFrame
	require.NoError(t, json.Unmarshal(frame.Payload, &ev))
	return ev
}

func receiveError(t *testing.T, conn *websocket.Conn) (string, errorPayload) {
	t.Helper()
	frame := receive(t, conn)
	require.Equal(t, TypeError, frame.Type)
	var p errorPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &p))
	return frame.Ref, p
}

func user(prefix string) string {
	return prefix + "-" + ulid.Make().String()
}

func TestSubscribeAndChat(t *testing.T) {
	f := newFixture(t)
	requester, volunteer := user("R"), user("V")
	r := f.openRequest(requester)

	rc := f.dial(requester)
	send(t, rc, TypeSubscribe, "1", topicPayload{Topic: notify.UserTopic(requester).String()})
	frame := receive(t, rc)
	require.Equal(t, Frame{Type: TypeSubscribed, Ref: "1", Payload: mustJSON(subscribedPayload{Topic: notify.UserTopic(requester)})}, frame)

	_, err := f.server.ClaimRequest(context.Background(), r.ID, volunteer)
	require.NoError(t, err)

	ev := receiveEvent(t, rc)
	require.Equal(t, notify.KindAccepted, ev.Kind)
	require.Equal(t, r.ID, ev.RequestID)
	require.Equal(t, volunteer, ev.ActorID)

	chat := notify.ChatTopic(r.ID).String()
	send(t, rc, TypeSubscribe, "2", topicPayload{Topic: chat})
	require.Equal(t, TypeSubscribed, receive(t, rc).Type)

	vc := f.dial(volunteer)
	send(t, vc, TypeSubscribe, "a", topicPayload{Topic: chat})
	require.Equal(t, TypeSubscribed, receive(t, vc).Type)

	send(t, vc, TypeChatJoin, "b", chatPayload{RequestID: r.ID})
	require.Equal(t, notify.KindJoined, receiveEvent(t, rc).Kind)
	require.Equal(t, notify.KindJoined, receiveEvent(t, vc).Kind)

	send(t, vc, TypeChatSend, "c", chatPayload{RequestID: r.ID, Body: "On my way"})
	ev = receiveEvent(t, rc)
	require.Equal(t, notify.KindMessage, ev.Kind)
	require.Equal(t, chat, ev.Topic)
	var msg server.MessageEvent
	require.NoError(t, json.Unmarshal(ev.Data, &msg))
	require.Equal(t, "On my way", msg.Body)
	require.Equal(t, volunteer, msg.SenderID)
	require.Equal(t, notify.KindMessage, receiveEvent(t, vc).Kind)

	send(t, vc, TypeUnsubscribe, "d", topicPayload{Topic: chat})
	send(t, vc, TypeChatLeave, "e", chatPayload{RequestID: r.ID})
	require.Equal(t, notify.KindLeft, receiveEvent(t, rc).Kind)

	_, _, err = f.server.CompleteRequest(context.Background(), r.ID, requester)
	require.NoError(t, err)
	require.Equal(t, notify.KindFinished, receiveEvent(t, rc).Kind)
	require.Equal(t, notify.KindFinished, receiveEvent(t, rc).Kind, "chat and personal topic")
}

func TestErrorFrames(t *testing.T) {
	f := newFixture(t)
	requester, stranger := user("R"), user("U")
	r := f.openRequest(requester)
	_, err := f.server.ClaimRequest(context.Background(), r.ID, user("V"))
	require.NoError(t, err)

	conn := f.dial(stranger)

	tests := []struct {
		name     string
		typ      string
		payload  any
		wantCode string
	}{
		{name: "foreign_chat", typ: TypeSubscribe, payload: topicPayload{Topic: notify.ChatTopic(r.ID).String()}, wantCode: "unauthorized"},
		{name: "foreign_user_topic", typ: TypeSubscribe, payload: topicPayload{Topic: notify.UserTopic(requester).String()}, wantCode: "unauthorized"},
		{name: "bad_topic", typ: TypeSubscribe, payload: topicPayload{Topic: "room:1"}, wantCode: "invalid_argument"},
		{name: "send_as_stranger", typ: TypeChatSend, payload: chatPayload{RequestID: r.ID, Body: "hi"}, wantCode: "unauthorized"},
		{name: "join_as_stranger", typ: TypeChatJoin, payload: chatPayload{RequestID: r.ID}, wantCode: "unauthorized"},
		{name: "unknown_request", typ: TypeChatJoin, payload: chatPayload{RequestID: ulid.Make().String()}, wantCode: "not_found"},
		{name: "unsupported", typ: "chat.history", payload: struct{}{}, wantCode: "invalid_argument"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			send(t, conn, tc.typ, tc.name, tc.payload)
			ref, p := receiveError(t, conn)
			require.Equal(t, tc.name, ref)
			require.Equal(t, tc.wantCode, p.Code)
		})
	}
}

func TestInvalidFramesCloseTheConnection(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(user("U"))

	for i := 0; i < maxDecodeErrorsPerConn; i++ {
		_, err := conn.Write([]byte("not json"))
		require.NoError(t, err)
		_, p := receiveError(t, conn)
		require.Equal(t, "invalid frame", p.Message)
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame Frame
	require.Error(t, websocket.JSON.Receive(conn, &frame))
}

func TestUnauthenticatedHandshake(t *testing.T) {
	f := newFixture(t)
	cfg, err := websocket.NewConfig(f.url+"/ws", "http://localhost/")
	require.NoError(t, err)
	_, err = websocket.DialConfig(cfg)
	require.Error(t, err)
}

func TestCloseDisconnectsSessions(t *testing.T) {
	f := newFixture(t)
	requester := user("R")
	conn := f.dial(requester)

	send(t, conn, TypeSubscribe, "1", topicPayload{Topic: notify.UserTopic(requester).String()})
	require.Equal(t, TypeSubscribed, receive(t, conn).Type)

	f.handler.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame Frame
	require.Error(t, websocket.JSON.Receive(conn, &frame))

	require.Eventually(t, func() bool {
		return len(f.server.Bus().Subscribers(notify.UserTopic(requester))) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
