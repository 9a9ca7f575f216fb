package notify

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidTopic = errors.New("invalid topic")

// Family is the kind of address a topic names.
type Family string

const (
	// FamilyChat topics carry the chat, presence and lifecycle events of one
	// request. Only its participants may listen.
	FamilyChat Family = "chat"
	// FamilyUser topics are personal channels. Only their owner may listen.
	FamilyUser Family = "notify"
)

// Topic is a fan-out address such as chat:{requestId} or notify:{userId}.
type Topic struct {
	Family Family
	ID     string
}

func ChatTopic(requestID string) Topic {
	return Topic{Family: FamilyChat, ID: requestID}
}

func UserTopic(userID string) Topic {
	return Topic{Family: FamilyUser, ID: userID}
}

func (t Topic) String() string {
	return string(t.Family) + ":" + t.ID
}

// ParseTopic parses the textual form of a topic.
func ParseTopic(s string) (Topic, error) {
	family, id, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(id) == "" || strings.ContainsAny(id, ": ") {
		return Topic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, s)
	}

	switch Family(family) {
	case FamilyChat, FamilyUser:
		return Topic{Family: Family(family), ID: id}, nil
	default:
		return Topic{}, fmt.Errorf("%w: unknown family %q", ErrInvalidTopic, family)
	}
}

func (t Topic) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Topic) UnmarshalText(b []byte) error {
	parsed, err := ParseTopic(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
