package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourcaryourway/support-chat/internal/archive"
	"github.com/yourcaryourway/support-chat/internal/audit"
	"github.com/yourcaryourway/support-chat/internal/domain"
	"github.com/yourcaryourway/support-chat/internal/hub"
	"github.com/yourcaryourway/support-chat/internal/idgen"
	"github.com/yourcaryourway/support-chat/internal/metrics"
	"github.com/yourcaryourway/support-chat/internal/registry"
	"github.com/yourcaryourway/support-chat/internal/repository"
	"github.com/yourcaryourway/support-chat/pkg/log"
	"github.com/yourcaryourway/support-chat/pkg/pubsub"
)

type relayService struct {
	hub        *hub.Hub
	repo       repository.ChatRepository
	sessionIDs idgen.Generator
	messageIDs idgen.Generator
	publisher  pubsub.Publisher
	registry   registry.Registry
	archiver   archive.Archiver
	advertise  string
	now        func() time.Time
}

func NewRelayService(
	h *hub.Hub,
	repo repository.ChatRepository,
	sessionIDs idgen.Generator,
	messageIDs idgen.Generator,
	publisher pubsub.Publisher,
	reg registry.Registry,
	archiver archive.Archiver,
	advertiseAddress string,
) RelayService {
	return newRelayService(h, repo, sessionIDs, messageIDs, publisher, reg, archiver, advertiseAddress)
}

func newRelayService(
	h *hub.Hub,
	repo repository.ChatRepository,
	sessionIDs idgen.Generator,
	messageIDs idgen.Generator,
	publisher pubsub.Publisher,
	reg registry.Registry,
	archiver archive.Archiver,
	advertiseAddress string,
) *relayService {
	if publisher == nil {
		publisher = pubsub.NopPubSub{}
	}
	if reg == nil {
		reg = registry.NopRegistry{}
	}
	if archiver == nil {
		archiver = archive.Nop{}
	}
	return &relayService{
		hub:        h,
		repo:       repo,
		sessionIDs: sessionIDs,
		messageIDs: messageIDs,
		publisher:  publisher,
		registry:   reg,
		archiver:   archiver,
		advertise:  advertiseAddress,
		now:        time.Now,
	}
}

func (s *relayService) HandleStart(ctx context.Context, c *hub.Client, req domain.StartRequest) error {
	now := domain.TruncateToMillis(s.now())

	id, err := s.sessionIDs.Generate(now)
	if err != nil {
		return s.fail(ctx, c, domain.ErrMsgCreateSession, err)
	}
	session := &domain.ChatSession{
		ID:        id,
		UserID:    req.UserID,
		Status:    domain.StatusWaiting,
		StartedAt: now,
	}

	start := time.Now()
	err = s.repo.CreateSession(ctx, session)
	metrics.ObserveDatastore("create_session", start)
	if err != nil {
		return s.fail(ctx, c, domain.ErrMsgCreateSession, fmt.Errorf("create session for user %q: %w", req.UserID, err))
	}

	ctx = log.WithFields(ctx, log.FieldSessionID, session.ID)
	if err := s.joinRoom(ctx, c, session.ID); err != nil {
		return s.fail(ctx, c, domain.ErrMsgCreateSession, err)
	}

	s.publish(ctx, pubsub.EventSessionStarted, session.ID, pubsub.SessionStartedPayload{
		SessionID: session.ID,
		UserID:    session.UserID,
	})
	audit.LogWithDetail(ctx, audit.ActionSessionStart, session.ID, session.UserID, "chat session started")

	return s.hub.SendTo(c, domain.EventChatStarted, domain.StartedPayload{SessionID: session.ID})
}

func (s *relayService) HandleJoin(ctx context.Context, c *hub.Client, req domain.JoinRequest) error {
	ctx = log.WithFields(ctx, log.FieldSessionID, req.SessionID)

	start := time.Now()
	_, err := s.repo.GetSession(ctx, req.SessionID)
	metrics.ObserveDatastore("get_session", start)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return s.fail(ctx, c, domain.ErrMsgSessionNotFound, err)
	}
	if err != nil {
		return s.fail(ctx, c, domain.ErrMsgJoinSession, err)
	}

	start = time.Now()
	activated, err := s.repo.ActivateSession(ctx, req.SessionID)
	metrics.ObserveDatastore("activate_session", start)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return s.fail(ctx, c, domain.ErrMsgSessionNotFound, err)
	}
	if err != nil {
		return s.fail(ctx, c, domain.ErrMsgJoinSession, err)
	}
	if activated {
		s.publish(ctx, pubsub.EventSessionActivated, req.SessionID, pubsub.SessionActivatedPayload{SessionID: req.SessionID})
	}

	if err := s.joinRoom(ctx, c, req.SessionID); err != nil {
		return s.fail(ctx, c, domain.ErrMsgJoinSession, err)
	}

	// Existing members are not told about the newcomer.
	audit.Log(ctx, audit.ActionSessionJoin, req.SessionID, "joined chat session")
	return nil
}

func (s *relayService) HandleSend(ctx context.Context, c *hub.Client, req domain.SendRequest) error {
	ctx = log.WithFields(ctx, log.FieldSessionID, req.SessionID)
	sentAt := domain.TruncateToMillis(s.now())

	id, err := s.messageIDs.Generate(sentAt)
	if err != nil {
		return s.fail(ctx, c, domain.ErrMsgSendMessage, err)
	}
	msg := &domain.ChatMessage{
		ID:            id,
		ChatSessionID: req.SessionID,
		Content:       req.Content,
		SentAt:        sentAt,
		IsFromSupport: req.IsFromSupport,
	}

	start := time.Now()
	err = s.repo.CreateMessage(ctx, msg)
	metrics.ObserveDatastore("create_message", start)
	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		return s.fail(ctx, c, domain.ErrMsgSessionNotFound, err)
	case errors.Is(err, repository.ErrSessionEnded):
		return s.fail(ctx, c, domain.ErrMsgSessionEnded, err)
	case err != nil:
		return s.fail(ctx, c, domain.ErrMsgSendMessage, err)
	}

	if _, err := s.hub.Broadcast(req.SessionID, domain.EventMessageReceive, domain.MessageReceivePayload{Message: msg.View()}, ""); err != nil {
		return fmt.Errorf("broadcast message %s: %w", msg.ID, err)
	}

	s.publish(ctx, pubsub.EventMessageSent, req.SessionID, pubsub.MessageSentPayload{
		SessionID:     req.SessionID,
		MessageID:     msg.ID,
		IsFromSupport: msg.IsFromSupport,
	})
	return nil
}

// HandleTyping relays the indicator to every other member. It never
// reports a failure to the sender.
func (s *relayService) HandleTyping(ctx context.Context, c *hub.Client, req domain.TypingRequest, isTyping bool) error {
	payload := domain.TypingIndicatorPayload{IsTyping: isTyping, IsFromSupport: req.IsFromSupport}
	if _, err := s.hub.Broadcast(req.SessionID, domain.EventTypingIndicator, payload, c.ID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldSessionID, req.SessionID).Msg("failed to relay typing indicator")
	}
	return nil
}

func (s *relayService) HandleEnd(ctx context.Context, c *hub.Client, req domain.EndRequest) error {
	ctx = log.WithFields(ctx, log.FieldSessionID, req.SessionID)

	start := time.Now()
	messages, err := s.repo.ListMessages(ctx, req.SessionID)
	metrics.ObserveDatastore("list_messages", start)
	if err != nil {
		return s.fail(ctx, c, domain.ErrMsgEndSession, err)
	}

	transcript := domain.RenderTranscript(messages)
	endedAt := domain.TruncateToMillis(s.now())

	start = time.Now()
	err = s.repo.EndSession(ctx, req.SessionID, transcript, endedAt)
	metrics.ObserveDatastore("end_session", start)
	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		return s.fail(ctx, c, domain.ErrMsgSessionNotFound, err)
	case errors.Is(err, repository.ErrSessionEnded):
		return s.fail(ctx, c, domain.ErrMsgSessionEnded, err)
	case err != nil:
		return s.fail(ctx, c, domain.ErrMsgEndSession, err)
	}

	if _, err := s.hub.Broadcast(req.SessionID, domain.EventChatEnded, domain.EndedPayload{SessionID: req.SessionID}, ""); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to broadcast chat end")
	}

	s.publish(ctx, pubsub.EventSessionEnded, req.SessionID, pubsub.SessionEndedPayload{
		SessionID:    req.SessionID,
		MessageCount: len(messages),
	})
	if err := s.archiver.Archive(ctx, req.SessionID, endedAt, transcript); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("transcript archive failed")
	}
	audit.LogWithDetail(ctx, audit.ActionSessionEnd, req.SessionID, fmt.Sprintf("%d messages", len(messages)), "chat session ended")
	return nil
}

// HandleDisconnect drops the client from every room. Session records are
// left as they are.
func (s *relayService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	emptied := s.hub.Unregister(c)
	for _, sessionID := range emptied {
		if err := s.registry.Deregister(ctx, sessionID); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldSessionID, sessionID).Msg("failed to deregister session")
		}
	}

	metrics.SetConnections(s.hub.ClientCount())
	metrics.SetRooms(s.hub.RoomCount())
	audit.LogWithDetail(ctx, audit.ActionDisconnect, "", fmt.Sprintf("%d rooms released", len(emptied)), "client disconnected")
	return nil
}

func (s *relayService) Start(ctx context.Context) error {
	if err := s.registry.StartHeartbeat(ctx); err != nil {
		return fmt.Errorf("failed to start registry heartbeat: %w", err)
	}
	l := log.L()
	l.Info().Str("advertise_address", s.advertise).Msg("relay service started")
	return nil
}

func (s *relayService) Stop() error {
	s.registry.StopHeartbeat()
	return nil
}

// joinRoom adds c to the room and claims the session in the registry when
// the room is new on this instance.
func (s *relayService) joinRoom(ctx context.Context, c *hub.Client, sessionID string) error {
	created, err := s.hub.Join(c, sessionID)
	if err != nil {
		return err
	}
	metrics.SetRooms(s.hub.RoomCount())
	if !created {
		return nil
	}

	owner, err := s.registry.Lookup(ctx, sessionID)
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("session owner lookup failed")
		return nil
	}
	if owner != "" && owner != s.advertise {
		l := log.Ctx(ctx)
		l.Warn().Str("owner", owner).Msg("session room is owned by another relay instance; members there will not receive broadcasts from here")
		return nil
	}
	if err := s.registry.Register(ctx, sessionID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to register session owner")
	}
	return nil
}

func (s *relayService) publish(ctx context.Context, eventType, sessionID string, payload interface{}) {
	evt, err := pubsub.NewEvent(eventType, sessionID, payload, s.now())
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str("type", eventType).Msg("failed to build lifecycle event")
		return
	}
	if err := s.publisher.Publish(ctx, pubsub.SessionChannel(sessionID), evt); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("type", eventType).Msg("failed to publish lifecycle event")
	}
}

// fail sends message to the requester only and returns cause.
func (s *relayService) fail(ctx context.Context, c *hub.Client, message string, cause error) error {
	l := log.Ctx(ctx)
	l.Warn().Err(cause).Str(log.FieldClientID, c.ID).Msg(message)

	if err := s.hub.SendTo(c, domain.EventError, domain.ErrorPayload{Message: message}); err != nil {
		l.Debug().Err(err).Str(log.FieldClientID, c.ID).Msg("error reply dropped")
	}
	return cause
}
