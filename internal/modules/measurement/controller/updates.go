package controller

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// handleUpdates streams every measurement accepted after the upgrade as one
// JSON text frame. The listener is released when either side goes away.
func (c *measurementControllerImpl) handleUpdates(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("websocket close", "error", err)
		}
	}()

	listener := c.broadcaster.Subscribe()
	defer listener.Close()
	logger := slog.With("listener_id", listener.ID(), "remote", r.RemoteAddr)
	logger.Info("live listener connected")

	// clients never send data; reading is how a close or a dead peer is noticed
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case m, ok := <-listener.C():
			if !ok {
				logger.Info("live listener closed by broadcaster", "error", listener.Err(), "dropped", listener.Dropped())
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "listener closed"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(m); err != nil {
				logger.Info("live listener write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Info("live listener ping failed", "error", err)
				return
			}
		case <-gone:
			logger.Info("live listener disconnected", "dropped", listener.Dropped())
			return
		case <-r.Context().Done():
			return
		}
	}
}
