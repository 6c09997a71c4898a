package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yourcaryourway/support-chat/internal/config"
	"github.com/yourcaryourway/support-chat/internal/domain"
	"github.com/yourcaryourway/support-chat/internal/hub"
	"github.com/yourcaryourway/support-chat/internal/metrics"
	"github.com/yourcaryourway/support-chat/internal/service"
	"github.com/yourcaryourway/support-chat/pkg/log"
)

// inbound is one unit of work for the dispatcher: a frame or a disconnect.
type inbound struct {
	client     *hub.Client
	frame      []byte
	disconnect bool
	logger     zerolog.Logger
}

// WSHandler upgrades relay connections and runs the single dispatcher that
// handles every inbound event to completion, one at a time.
type WSHandler struct {
	hub      *hub.Hub
	service  service.RelayService
	wsCfg    config.WebSocketConfig
	upgrader websocket.Upgrader
	inbound  chan inbound
	stopped  chan struct{}
}

func NewWSHandler(h *hub.Hub, svc service.RelayService, wsCfg config.WebSocketConfig) *WSHandler {
	queue := wsCfg.DispatchQueue
	if queue <= 0 {
		queue = 1024
	}
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(wsCfg.AllowedOrigins),
		},
		inbound: make(chan inbound, queue),
		stopped: make(chan struct{}),
	}
}

// checkOrigin allows every origin when allowed is empty. Requests without
// an Origin header (non-browser clients) are always accepted.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	_, wildcard := set["*"]
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := log.Ctx(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), conn, h.wsCfg)
	logger := l.With().Str(log.FieldClientID, client.ID).Logger()

	h.hub.Register(client)
	metrics.SetConnections(h.hub.ClientCount())
	logger.Info().Msg("client connected")

	go client.WritePump()
	go client.ReadPump(
		func(c *hub.Client, frame []byte) {
			h.enqueue(inbound{client: c, frame: frame, logger: logger})
		},
		func(c *hub.Client) {
			h.enqueue(inbound{client: c, disconnect: true, logger: logger})
		},
	)
}

func (h *WSHandler) enqueue(in inbound) {
	select {
	case h.inbound <- in:
	case <-h.stopped:
	}
}

// Run dispatches inbound events until ctx is done.
func (h *WSHandler) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case in := <-h.inbound:
			h.dispatch(log.WithLogger(ctx, in.logger), in)
		}
	}
}

// dispatch handles one inbound event, keyed by its event name.
func (h *WSHandler) dispatch(ctx context.Context, in inbound) {
	c := in.client
	if in.disconnect {
		if err := h.service.HandleDisconnect(ctx, c); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("disconnect handling failed")
		}
		l := log.Ctx(ctx)
		l.Info().Msg("client disconnected")
		return
	}

	var env domain.Envelope
	if err := json.Unmarshal(in.frame, &env); err != nil || env.Event == "" {
		h.reject(ctx, c, "invalid", domain.ErrMsgInvalidFormat)
		return
	}
	ctx = log.WithFields(ctx, log.FieldEvent, env.Event)

	var err error
	switch env.Event {
	case domain.EventChatStart:
		var req domain.StartRequest
		if !h.decode(ctx, c, env, &req) {
			return
		}
		err = h.service.HandleStart(ctx, c, req)

	case domain.EventChatJoin:
		var req domain.JoinRequest
		if !h.decode(ctx, c, env, &req) {
			return
		}
		err = h.service.HandleJoin(ctx, c, req)

	case domain.EventMessageSend:
		var req domain.SendRequest
		if !h.decode(ctx, c, env, &req) {
			return
		}
		err = h.service.HandleSend(ctx, c, req)

	case domain.EventTypingStart, domain.EventTypingStop:
		var req domain.TypingRequest
		if !h.decode(ctx, c, env, &req) {
			return
		}
		err = h.service.HandleTyping(ctx, c, req, env.Event == domain.EventTypingStart)

	case domain.EventChatEnd:
		var req domain.EndRequest
		if !h.decode(ctx, c, env, &req) {
			return
		}
		err = h.service.HandleEnd(ctx, c, req)

	default:
		h.reject(ctx, c, "unknown", domain.ErrMsgUnknownEvent)
		return
	}

	if err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Msg("event failed")
		metrics.IncEvent(env.Event, metrics.ResultError)
		return
	}
	metrics.IncEvent(env.Event, metrics.ResultOK)
}

func (h *WSHandler) decode(ctx context.Context, c *hub.Client, env domain.Envelope, v interface{}) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		h.reject(ctx, c, env.Event, domain.ErrMsgInvalidFormat)
		return false
	}
	return true
}

func (h *WSHandler) reject(ctx context.Context, c *hub.Client, event, message string) {
	metrics.IncEvent(event, metrics.ResultError)

	l := log.Ctx(ctx)
	l.Warn().Msg(message)
	if err := h.hub.SendTo(c, domain.EventError, domain.ErrorPayload{Message: message}); err != nil {
		l.Debug().Err(err).Msg("error reply dropped")
	}
}

func (h *WSHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/chat/ws", h.HandleWebSocket)
}
