package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
)

// handleStream returns the handler for GET /api/stream. It upgrades to a
// WebSocket and forwards engine events as JSON text frames, in delivery
// order, until the client disconnects.
func (g *Gateway) handleStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Error("websocket accept failed", "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()

		events, cancel := g.engine.Subscribe(g.config.StreamBuffer)
		defer cancel()

		g.metrics.StreamConnected()
		defer g.metrics.StreamDisconnected()

		// The client never sends data frames; CloseRead watches for the
		// close handshake and cancels the returned context.
		ctx := conn.CloseRead(r.Context())

		g.logger.Debug("stream client connected", "remote", r.RemoteAddr)

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					_ = conn.Close(websocket.StatusNormalClosure, "engine closed")
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					g.logger.Error("marshal event failed", "type", string(ev.Type), "error", err)
					continue
				}
				if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
					if !errors.Is(err, context.Canceled) {
						g.logger.Debug("stream write failed", "error", err)
					}
					return
				}
			case <-ctx.Done():
				g.logger.Debug("stream client disconnected", "remote", r.RemoteAddr)
				return
			}
		}
	}
}
