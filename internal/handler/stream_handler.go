package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-rooms/internal/domain"
	"github.com/weiawesome/wes-io-rooms/pkg/log"
	"github.com/weiawesome/wes-io-rooms/pkg/response"
)

// wsFrame is the JSON text frame used on the WebSocket stream.
type wsFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func (h *Handler) streamParams(c *gin.Context) (room string, window, interval time.Duration, ok bool) {
	var req domain.ViewerCountRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return "", 0, 0, false
	}
	room = c.Param("name")
	if !domain.ValidRoomName(room) {
		response.BadRequest(c, "invalid room name")
		return "", 0, 0, false
	}
	return room, h.svc.Viewers.Window(req.WithinSec), h.streamer.Interval(req.IntervalMs), true
}

// streamContext is cancelled when the client goes away or CloseStreams runs.
func (h *Handler) streamContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(h.streams, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// StreamViewers pushes the live viewer count as Server-Sent Events until the
// client goes away. Frames are unnamed "data:" messages so EventSource
// clients receive them through onmessage; the payload shape tells ready
// and count apart.
func (h *Handler) StreamViewers(c *gin.Context) {
	room, window, interval, ok := h.streamParams(c)
	if !ok {
		return
	}

	ctx, cancel := h.streamContext(c.Request.Context())
	defer cancel()
	l := log.Ctx(ctx)

	c.Header("Content-Type", sse.ContentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	err := h.streamer.Run(ctx, room, window, interval, func(_ string, data interface{}) error {
		if err := sse.Encode(c.Writer, sse.Event{Data: data}); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		l.Debug().Err(err).Str(log.FieldRoom, room).Msg("viewer stream closed by write failure")
	}
}

// StreamViewersWS pushes the live viewer count over a WebSocket. The stream
// ends when the socket closes or stops answering pings.
func (h *Handler) StreamViewersWS(c *gin.Context) {
	room, window, interval, ok := h.streamParams(c)
	if !ok {
		return
	}

	l := log.Ctx(c.Request.Context())

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := h.streamContext(c.Request.Context())
	defer cancel()

	go h.readPump(conn, cancel)
	go h.pingPump(ctx, conn)

	err = h.streamer.Run(ctx, room, window, interval, func(event string, data interface{}) error {
		conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
		return conn.WriteJSON(wsFrame{Event: event, Data: data})
	})
	if err != nil {
		l.Debug().Err(err).Str(log.FieldRoom, room).Msg("viewer socket closed by write failure")
		return
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(h.opts.WriteWait))
}

// readPump drains client frames so control frames are processed, and
// cancels the stream once the connection fails.
func (h *Handler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) pingPump(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteWait)); err != nil {
				return
			}
		}
	}
}
