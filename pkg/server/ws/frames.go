package ws

import (
	"encoding/json"

	"github.com/vecinotech/vecinotech/pkg/notify"
)

// Client frame types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeChatSend    = "chat.send"
	TypeChatJoin    = "chat.join"
	TypeChatLeave   = "chat.leave"
)

// Server frame types.
const (
	TypeEvent      = "event"
	TypeSubscribed = "subscribed"
	TypeError      = "error"
)

// Frame is the envelope of every message in both directions. Ref is chosen by
// the client and echoed on the replies to that frame.
type Frame struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type topicPayload struct {
	Topic string `json:"topic"`
}

type chatPayload struct {
	RequestID string `json:"requestId"`
	Body      string `json:"body,omitempty"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type subscribedPayload struct {
	Topic notify.Topic `json:"topic"`
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
