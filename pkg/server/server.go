package server

import (
	"context"
	"errors"
	"time"

	"github.com/natefinch/wrap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/vecinotech/vecinotech/internal/build"
	"github.com/vecinotech/vecinotech/pkg/geocode"
	"github.com/vecinotech/vecinotech/pkg/logger"
	"github.com/vecinotech/vecinotech/pkg/notify"
	"github.com/vecinotech/vecinotech/pkg/server/commands"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

var tracer = otel.Tracer("vecinotech/pkg/server")

var transitionsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: build.ProjectName,
	Name:      "request_transitions_total",
	Help:      "Help requests entering each lifecycle state.",
}, []string{"state"})

// A Server implements the help request service. Transports call its methods
// with the authenticated user id; events are published on the bus once the
// datastore change is committed.
type Server struct {
	logger    logger.Logger
	datastore storage.Datastore
	geocoder  geocode.Geocoder
	bus       *notify.Bus
	config    *Config
}

var _ notify.ParticipantLookup = (*Server)(nil)

type Dependencies struct {
	Datastore storage.Datastore
	// Geocoder may be nil, requests are then located only from cached
	// profile locations.
	Geocoder geocode.Geocoder
	Logger   logger.Logger
}

type Config struct {
	// CallBaseURL is the video call service the call rooms live on.
	CallBaseURL string
	// SubscriberBufferSize is the per subscription event buffer.
	SubscriberBufferSize int
}

// New creates a new Server which uses the supplied backends
// for managing data.
func New(dependencies *Dependencies, config *Config) *Server {
	if config == nil {
		config = &Config{}
	}
	log := dependencies.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}

	s := &Server{
		logger:    log,
		datastore: dependencies.Datastore,
		geocoder:  dependencies.Geocoder,
		config:    config,
	}

	busOpts := []notify.BusOption{notify.WithLogger(log)}
	if config.SubscriberBufferSize > 0 {
		busOpts = append(busOpts, notify.WithBufferSize(config.SubscriberBufferSize))
	}
	s.bus = notify.NewBus(s, busOpts...)

	return s
}

// Bus returns the bus the server publishes on.
func (s *Server) Bus() *notify.Bus {
	return s.bus
}

// publish logs instead of failing: the state change it reports is already
// stored.
func (s *Server) publish(ctx context.Context, topic notify.Topic, ev notify.Event) {
	if _, err := s.bus.Publish(ctx, topic, ev); err != nil {
		s.logger.WarnWithContext(ctx, "failed to publish event",
			zap.String("topic", topic.String()),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err))
	}
}

func (s *Server) CreateRequest(ctx context.Context, in commands.CreateRequestInput) (*storage.Request, error) {
	ctx, span := tracer.Start(ctx, "CreateRequest")
	defer span.End()

	r, err := commands.NewCreateRequestCommand(s.datastore, s.geocoder, s.logger).Execute(ctx, in)
	if err != nil {
		return nil, err
	}
	transitionsCounter.WithLabelValues(string(storage.StateOpen)).Inc()
	return r, nil
}

func (s *Server) GetRequest(ctx context.Context, requestID string) (*storage.Request, error) {
	return commands.NewGetRequestQuery(s.datastore, s.logger).Execute(ctx, requestID)
}

// ClaimRequest assigns volunteerID to the request and tells the requester
// and the request chat.
func (s *Server) ClaimRequest(ctx context.Context, requestID, volunteerID string) (*storage.Request, error) {
	ctx, span := tracer.Start(ctx, "ClaimRequest")
	defer span.End()

	r, err := commands.NewClaimRequestCommand(s.datastore, s.logger).Execute(ctx, requestID, volunteerID)
	if err != nil {
		return nil, err
	}
	transitionsCounter.WithLabelValues(string(storage.StateInProgress)).Inc()

	ev := notify.Event{
		Kind:      notify.KindAccepted,
		RequestID: r.ID,
		ActorID:   volunteerID,
		At:        r.UpdatedAt,
		Data:      requestEventData(r),
	}
	s.publish(ctx, notify.UserTopic(r.RequesterID), ev)
	s.publish(ctx, notify.ChatTopic(r.ID), ev)

	return r, nil
}

// CompleteRequest closes the request. The "finished" event goes out only
// from the call that actually closed it.
func (s *Server) CompleteRequest(ctx context.Context, requestID, actorID string) (*storage.Request, bool, error) {
	ctx, span := tracer.Start(ctx, "CompleteRequest")
	defer span.End()

	r, transitioned, err := commands.NewCompleteRequestCommand(s.datastore, s.logger).Execute(ctx, requestID, actorID)
	if err != nil {
		return nil, false, err
	}
	if !transitioned {
		return r, false, nil
	}
	transitionsCounter.WithLabelValues(string(storage.StateClosed)).Inc()

	ev := notify.Event{
		Kind:      notify.KindFinished,
		RequestID: r.ID,
		ActorID:   actorID,
		At:        r.UpdatedAt,
		Data:      requestEventData(r),
	}
	s.publish(ctx, notify.ChatTopic(r.ID), ev)
	s.publish(ctx, notify.UserTopic(r.RequesterID), ev)
	s.publish(ctx, notify.UserTopic(r.VolunteerID), ev)

	return r, true, nil
}

// ParticipantsOf reads the participants of a request from the datastore on
// every call.
func (s *Server) ParticipantsOf(ctx context.Context, requestID string) (storage.Participants, error) {
	return commands.NewParticipantsQuery(s.datastore).Execute(ctx, requestID)
}

func (s *Server) SearchNearby(ctx context.Context, in commands.SearchNearbyInput) (*commands.SearchNearbyResult, error) {
	return commands.NewSearchNearbyCommand(s.datastore, s.logger).Execute(ctx, in)
}

func (s *Server) ListRequests(ctx context.Context, userID string, role commands.Role) ([]*storage.Request, error) {
	return commands.NewListRequestsQuery(s.datastore, s.logger).Execute(ctx, userID, role)
}

func (s *Server) MapListing(ctx context.Context, limit int) ([]*storage.Request, error) {
	return commands.NewMapListingQuery(s.datastore, s.logger).Execute(ctx, limit)
}

func (s *Server) Leaderboard(ctx context.Context, limit int) ([]storage.LeaderboardEntry, error) {
	return commands.NewLeaderboardQuery(s.datastore, s.logger).Execute(ctx, limit)
}

// SendMessage stores the message and relays it on the request chat.
func (s *Server) SendMessage(ctx context.Context, requestID, senderID, body string) (*storage.Message, error) {
	ctx, span := tracer.Start(ctx, "SendMessage")
	defer span.End()

	m, err := commands.NewSendMessageCommand(s.datastore, s.logger).Execute(ctx, requestID, senderID, body)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.ChatTopic(requestID), notify.Event{
		Kind:      notify.KindMessage,
		RequestID: requestID,
		ActorID:   senderID,
		At:        m.SentAt,
		Data:      messageEventData(m),
	})
	return m, nil
}

func (s *Server) ListMessages(ctx context.Context, requestID, userID string) ([]*storage.Message, error) {
	return commands.NewListMessagesQuery(s.datastore, s.logger).Execute(ctx, requestID, userID)
}

func (s *Server) MarkMessagesRead(ctx context.Context, requestID, readerID string) (int, error) {
	return commands.NewMarkMessagesReadCommand(s.datastore, s.logger).Execute(ctx, requestID, readerID)
}

func (s *Server) CountUnread(ctx context.Context, requestID, readerID string) (int, error) {
	return commands.NewCountUnreadQuery(s.datastore, s.logger).Execute(ctx, requestID, readerID)
}

// JoinChat announces that userID opened the request chat.
func (s *Server) JoinChat(ctx context.Context, requestID, userID string) error {
	return s.presence(ctx, notify.KindJoined, requestID, userID)
}

// LeaveChat announces that userID left the request chat.
func (s *Server) LeaveChat(ctx context.Context, requestID, userID string) error {
	return s.presence(ctx, notify.KindLeft, requestID, userID)
}

func (s *Server) presence(ctx context.Context, kind notify.Kind, requestID, userID string) error {
	ctx, span := tracer.Start(ctx, "presence")
	defer span.End()

	if userID == "" {
		return serverErrors.ErrMissingUser
	}
	participants, err := s.ParticipantsOf(ctx, requestID)
	if err != nil {
		return err
	}
	if !participants.Contains(userID) {
		return serverErrors.ErrNotParticipant
	}

	s.publish(ctx, notify.ChatTopic(requestID), notify.Event{
		Kind:      kind,
		RequestID: requestID,
		ActorID:   userID,
	})
	return nil
}

// InviteToCall returns the request's call room and invites the other
// participant through the chat.
func (s *Server) InviteToCall(ctx context.Context, requestID, userID string) (*notify.CallInvite, error) {
	ctx, span := tracer.Start(ctx, "InviteToCall")
	defer span.End()

	room, err := commands.NewInviteToCallCommand(s.datastore, s.logger, s.config.CallBaseURL).Execute(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}

	invite := &notify.CallInvite{Room: room.Name, URL: room.URL}
	s.publish(ctx, notify.ChatTopic(requestID), notify.Event{
		Kind:      notify.KindCallInvite,
		RequestID: requestID,
		ActorID:   userID,
		Data:      invite,
	})
	return invite, nil
}

func (s *Server) RateRequest(ctx context.Context, in commands.RateRequestInput) (*storage.Rating, error) {
	return commands.NewRateRequestCommand(s.datastore, s.logger).Execute(ctx, in)
}

func (s *Server) GetRequestRating(ctx context.Context, requestID string) (*storage.Rating, error) {
	return commands.NewGetRequestRatingQuery(s.datastore, s.logger).Execute(ctx, requestID)
}

func (s *Server) ListVolunteerRatings(ctx context.Context, volunteerID string) (*commands.VolunteerRatings, error) {
	return commands.NewListVolunteerRatingsQuery(s.datastore, s.logger).Execute(ctx, volunteerID)
}

func (s *Server) GetProfile(ctx context.Context, userID string) (*storage.UserProfile, error) {
	return commands.NewGetProfileQuery(s.datastore, s.logger).Execute(ctx, userID)
}

func (s *Server) UpdateProfile(ctx context.Context, in commands.UpdateProfileInput) (*storage.UserProfile, error) {
	return commands.NewUpdateProfileCommand(s.datastore, s.logger).Execute(ctx, in)
}

func (s *Server) RefreshLocation(ctx context.Context, userID string) (*storage.UserProfile, error) {
	return commands.NewRefreshLocationCommand(s.datastore, s.geocoder, s.logger).Execute(ctx, userID)
}

func (s *Server) SetVolunteer(ctx context.Context, userID string, volunteer bool) (*storage.UserProfile, error) {
	return commands.NewSetVolunteerCommand(s.datastore, s.logger).Execute(ctx, userID, volunteer)
}

// Subscribe registers userID on topic, checking request participation for
// chat topics and ownership for user topics.
func (s *Server) Subscribe(ctx context.Context, topic notify.Topic, userID string) (*notify.Subscription, error) {
	if userID == "" {
		return nil, serverErrors.ErrMissingUser
	}

	sub, err := s.bus.Subscribe(ctx, topic, userID)
	if err != nil {
		var served *serverErrors.Error
		switch {
		case errors.As(err, &served):
			return nil, err
		case errors.Is(err, notify.ErrForbidden):
			return nil, wrap.With(err, serverErrors.ErrNotParticipant)
		case errors.Is(err, notify.ErrInvalidTopic):
			return nil, wrap.With(err, serverErrors.InvalidArgument("invalid topic %q", topic.String()))
		default:
			return nil, serverErrors.HandleError("", err)
		}
	}
	return sub, nil
}

func (s *Server) Unsubscribe(sub *notify.Subscription) {
	s.bus.Unsubscribe(sub)
}

// IsReady reports whether the server is ready to accept traffic.
func (s *Server) IsReady(ctx context.Context) (bool, error) {
	status, err := s.datastore.IsReady(ctx)
	if err != nil {
		return false, err
	}
	if !status.IsReady {
		s.logger.WarnWithContext(ctx, "datastore not ready", zap.String("status", status.Message))
	}
	return status.IsReady, nil
}

// Close ends every subscription. The datastore is owned by the caller.
func (s *Server) Close() {
	s.bus.Close()
}

// RequestEvent is the payload of lifecycle events.
type RequestEvent struct {
	ID          string               `json:"id"`
	Ticket      string               `json:"ticket"`
	Title       string               `json:"title"`
	State       storage.RequestState `json:"state"`
	RequesterID string               `json:"requesterId"`
	VolunteerID string               `json:"volunteerId,omitempty"`
}

func requestEventData(r *storage.Request) RequestEvent {
	return RequestEvent{
		ID:          r.ID,
		Ticket:      r.Ticket(),
		Title:       r.Title,
		State:       r.State,
		RequesterID: r.RequesterID,
		VolunteerID: r.VolunteerID,
	}
}

// MessageEvent is the payload of chat message events.
type MessageEvent struct {
	ID       string    `json:"id"`
	SenderID string    `json:"senderId"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sentAt"`
}

func messageEventData(m *storage.Message) MessageEvent {
	return MessageEvent{
		ID:       m.ID,
		SenderID: m.SenderID,
		Body:     m.Body,
		SentAt:   m.SentAt,
	}
}
