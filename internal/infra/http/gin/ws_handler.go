package ginserver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"vinci/internal/infra/realtime"
)

// RealtimeHandler attaches a client to its personal channel and any requested
// resource rooms over WebSocket. Delivery is at-most-once best-effort; a
// client that misses pushes re-fetches persisted state instead.
type RealtimeHandler struct {
	Hub    *realtime.Hub
	Logger *slog.Logger
}

// Attach upgrades the connection and streams hub events until the client goes
// away. The caller's personal channel is always included; ?conversation=,
// ?post= and ?feed=1 add broadcast rooms.
func (h RealtimeHandler) Attach(c *gin.Context) {
	p, ok := requireIdentity(c)
	if !ok {
		return
	}
	channels := []string{realtime.UserChannel(p.ID)}
	for _, conversationID := range c.QueryArray("conversation") {
		if conversationID = strings.TrimSpace(conversationID); conversationID != "" {
			channels = append(channels, realtime.ConversationChannel(conversationID))
		}
	}
	for _, postID := range c.QueryArray("post") {
		if postID = strings.TrimSpace(postID); postID != "" {
			channels = append(channels, realtime.PostChannel(postID))
		}
	}
	if c.Query("feed") == "1" {
		channels = append(channels, realtime.Feed)
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logError("websocket accept failed", err, p.ID)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	sub := h.Hub.Subscribe(channels...)
	defer sub.Close()

	ctx := c.Request.Context()
	// Reader only surfaces the close; clients never send payloads here.
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(readCtx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-readCtx.Done():
			return
		case event, open := <-sub.C:
			if !open {
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(readCtx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, event)
			cancelWrite()
			if err != nil {
				h.logError("websocket write failed", err, p.ID)
				return
			}
		}
	}
}

func (h RealtimeHandler) logError(msg string, err error, userID string) {
	if h.Logger != nil {
		h.Logger.Debug(msg, "error", err, "user_id", userID)
	}
}
