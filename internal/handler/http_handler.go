package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-rooms/internal/domain"
	"github.com/weiawesome/wes-io-rooms/internal/service"
	"github.com/weiawesome/wes-io-rooms/internal/stream"
	"github.com/weiawesome/wes-io-rooms/pkg/log"
	"github.com/weiawesome/wes-io-rooms/pkg/middleware"
	"github.com/weiawesome/wes-io-rooms/pkg/response"
)

// Services groups the business services exposed over HTTP.
type Services struct {
	Tokens     service.TokenIssuer
	Presence   service.PresenceTracker
	Viewers    service.ViewerCounter
	Reactions  service.ReactionAggregator
	Moderation service.ModerationGate
	Rooms      service.RoomService
}

// StreamOptions configures WebSocket keepalive.
type StreamOptions struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
}

// Handler handles HTTP requests for the coordinator.
type Handler struct {
	svc            Services
	streamer       *stream.Streamer
	authMiddleware *middleware.AuthMiddleware
	limiter        *middleware.RateLimiter
	opts           StreamOptions
	upgrader       websocket.Upgrader

	// streams is the parent of every open live count stream.
	streams      context.Context
	closeStreams context.CancelFunc
}

// NewHandler creates a new HTTP handler. A nil limiter disables rate limiting.
func NewHandler(svc Services, streamer *stream.Streamer, authMiddleware *middleware.AuthMiddleware, limiter *middleware.RateLimiter, opts StreamOptions) *Handler {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.PongWait <= opts.PingInterval {
		opts.PongWait = opts.PingInterval * 2
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 10 * time.Second
	}
	streams, closeStreams := context.WithCancel(context.Background())
	return &Handler{
		streams:        streams,
		closeStreams:   closeStreams,
		svc:            svc,
		streamer:       streamer,
		authMiddleware: authMiddleware,
		limiter:        limiter,
		opts:           opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// CloseStreams ends every open SSE and WebSocket stream, including streams
// opened afterwards. Ordinary requests are unaffected.
func (h *Handler) CloseStreams() {
	h.closeStreams()
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	requireAuth := h.authMiddleware.RequireAuth()
	optionalAuth := h.authMiddleware.OptionalAuth()
	limit := h.limiter.Middleware()

	api := r.Group("/api/v1")
	{
		api.POST("/token", requireAuth, h.IssueToken)
		api.GET("/monitor", requireAuth, h.Monitor)

		rooms := api.Group("/rooms")
		{
			rooms.GET("", optionalAuth, h.ListRooms)
			rooms.POST("", requireAuth, h.CreateRoom)
			rooms.GET("/:name", optionalAuth, h.GetRoom)
			rooms.PUT("/:name/visibility", requireAuth, h.SetVisibility)

			rooms.POST("/:name/presence/heartbeat", requireAuth, limit, h.Heartbeat)
			rooms.POST("/:name/presence/leave", requireAuth, h.Leave)

			rooms.GET("/:name/viewers", h.CountViewers)
			rooms.GET("/:name/viewers/stream", h.StreamViewers)
			rooms.GET("/:name/viewers/ws", h.StreamViewersWS)

			rooms.POST("/:name/reactions", requireAuth, limit, h.SendReaction)
			rooms.GET("/:name/reactions", h.ReactionSummary)

			rooms.GET("/:name/bans", requireAuth, h.ListBans)
			rooms.POST("/:name/bans", requireAuth, h.Ban)
			rooms.DELETE("/:name/bans/:identity", requireAuth, h.Unban)
		}
	}
}

// IssueToken arbitrates the host role and returns a capability token.
func (h *Handler) IssueToken(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind token request")
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.Tokens.IssueToken(ctx, middleware.GetUserID(c), middleware.GetUsername(c), &req)
	if err != nil {
		writeError(c, err, "issue token")
		return
	}

	l.Info().Str(log.FieldRoom, result.Room).Str(log.FieldRole, string(result.Role)).Bool("fresh_session", result.FreshSession).Msg("capability token issued")
	response.Success(c, result)
}

// GetRoom describes a room for the caller.
func (h *Handler) GetRoom(c *gin.Context) {
	ctx := c.Request.Context()

	info, err := h.svc.Rooms.GetRoomInfo(ctx, c.Param("name"), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err, "get room")
		return
	}

	response.Success(c, info)
}

// ListRooms lists rooms with viewer counts.
func (h *Handler) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.ListRoomsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.Rooms.ListRooms(ctx, middleware.GetUserID(c), &req)
	if err != nil {
		writeError(c, err, "list rooms")
		return
	}

	response.Success(c, result)
}

// CreateRoom creates a room hosted by the caller.
func (h *Handler) CreateRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create room request")
		response.BadRequest(c, err.Error())
		return
	}

	room, err := h.svc.Rooms.CreateRoom(ctx, middleware.GetUserID(c), &req)
	if err != nil {
		writeError(c, err, "create room")
		return
	}

	response.Created(c, room)
}

// SetVisibility lets the host toggle public listing.
func (h *Handler) SetVisibility(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.SetVisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	room, err := h.svc.Rooms.SetVisibility(ctx, c.Param("name"), middleware.GetUserID(c), *req.IsPublic)
	if err != nil {
		writeError(c, err, "set visibility")
		return
	}

	response.Success(c, gin.H{"is_public": room.IsPublic})
}

// Heartbeat refreshes the caller's presence.
func (h *Handler) Heartbeat(c *gin.Context) {
	ctx := c.Request.Context()

	// The body is optional.
	var req domain.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.svc.Presence.Heartbeat(ctx, c.Param("name"), middleware.GetUserID(c), middleware.GetUsername(c), &req); err != nil {
		writeError(c, err, "record heartbeat")
		return
	}

	response.Success(c, gin.H{"ok": true})
}

// Leave removes the caller's presence.
func (h *Handler) Leave(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.svc.Presence.Leave(ctx, c.Param("name"), middleware.GetUserID(c)); err != nil {
		writeError(c, err, "leave room")
		return
	}

	response.Success(c, gin.H{"ok": true})
}

// CountViewers is the polling form of the live count.
func (h *Handler) CountViewers(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.ViewerCountRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	room := c.Param("name")
	window := h.svc.Viewers.Window(req.WithinSec)
	n, err := h.svc.Viewers.CountViewers(ctx, room, window)
	if err != nil {
		writeError(c, err, "count viewers")
		return
	}

	response.Success(c, domain.ViewerCount{Room: room, Viewers: n, WindowSec: int(window / time.Second)})
}

// SendReaction records a reaction and returns the room's totals.
func (h *Handler) SendReaction(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	room := c.Param("name")
	summary, err := h.svc.Reactions.SendReaction(ctx, room, middleware.GetUserID(c), req.Kind)
	if err != nil {
		writeError(c, err, "send reaction")
		return
	}

	response.Success(c, domain.ReactionSummaryResponse{Room: room, Summary: summary})
}

// ReactionSummary returns the room's reaction totals.
func (h *Handler) ReactionSummary(c *gin.Context) {
	ctx := c.Request.Context()

	room := c.Param("name")
	summary, err := h.svc.Reactions.Summary(ctx, room)
	if err != nil {
		writeError(c, err, "get reactions")
		return
	}

	response.Success(c, domain.ReactionSummaryResponse{Room: room, Summary: summary})
}

// ListBans returns the room's bans to its host.
func (h *Handler) ListBans(c *gin.Context) {
	ctx := c.Request.Context()

	bans, err := h.svc.Moderation.ListBans(ctx, c.Param("name"), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err, "list bans")
		return
	}

	response.Success(c, gin.H{"bans": bans})
}

// Ban adds an identity to the room's ban list.
func (h *Handler) Ban(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.BanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.svc.Moderation.Ban(ctx, c.Param("name"), middleware.GetUserID(c), req.Identity); err != nil {
		writeError(c, err, "ban identity")
		return
	}

	response.Success(c, gin.H{"ok": true})
}

// Unban removes an identity from the room's ban list.
func (h *Handler) Unban(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.svc.Moderation.Unban(ctx, c.Param("name"), middleware.GetUserID(c), c.Param("identity")); err != nil {
		writeError(c, err, "unban identity")
		return
	}

	response.Success(c, gin.H{"ok": true})
}

// Monitor returns a snapshot of live activity.
func (h *Handler) Monitor(c *gin.Context) {
	ctx := c.Request.Context()

	snapshot, err := h.svc.Rooms.Monitor(ctx)
	if err != nil {
		writeError(c, err, "build monitor snapshot")
		return
	}

	response.Success(c, snapshot)
}
