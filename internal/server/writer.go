package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"github.com/kstaniek/go-tcan-bench/internal/api"
	"github.com/kstaniek/go-tcan-bench/internal/hub"
	"github.com/kstaniek/go-tcan-bench/internal/metrics"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleFrames upgrades to a websocket and streams every transmitted frame
// as JSON arrays of api.Frame.
func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	if s.Hub == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, api.Status{Status: api.StatusError, Message: "monitor disabled"})
		return
	}
	if s.isClosing() {
		_ = render.Render(w, r, ErrShuttingDown)
		return
	}
	if s.maxMonitors > 0 && s.Hub.Count() >= s.maxMonitors {
		s.logger.Warn("monitor_reject_max", "max_monitors", s.maxMonitors)
		_ = render.Render(w, r, ErrTooManyMonitors)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		s.logger.Warn("monitor_upgrade_failed", "error", err)
		return
	}
	id := s.nextConnID.Add(1)
	logger := s.logger.With("conn_id", id, "remote", r.RemoteAddr)
	cl := s.Hub.Subscribe()
	s.monitorsMu.Lock()
	if s.closing {
		s.monitorsMu.Unlock()
		s.Hub.Remove(cl)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		logger.Info("monitor_reject_shutdown")
		return
	}
	s.monitors[cl] = func() { _ = conn.Close() }
	s.wg.Add(2)
	s.monitorsMu.Unlock()
	s.totalMonitors.Add(1)
	logger.Info("monitor_connected")
	s.startReader(conn, cl)
	s.startWriter(conn, cl, logger)
}

func (s *Server) isClosing() bool {
	s.monitorsMu.Lock()
	defer s.monitorsMu.Unlock()
	return s.closing
}

// startReader drains inbound messages so close and pong frames are processed.
// Any read error ends the client. The caller has already counted it in s.wg.
func (s *Server) startReader(conn *websocket.Conn, cl *hub.Client) {
	go func() {
		defer s.wg.Done()
		defer cl.Close()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// startWriter pushes hub frames to one websocket in batches.
// The caller has already counted it in s.wg.
func (s *Server) startWriter(conn *websocket.Conn, cl *hub.Client, logger *slog.Logger) {
	go func() {
		defer s.wg.Done()
		defer func() {
			_ = conn.Close()
			s.Hub.Remove(cl)
			s.monitorsMu.Lock()
			delete(s.monitors, cl)
			s.monitorsMu.Unlock()
			logger.Info("monitor_disconnected")
		}()
		flushT := time.NewTicker(s.flushInterval)
		defer flushT.Stop()
		pingT := time.NewTicker(s.pingInterval)
		defer pingT.Stop()
		batch := make([]api.Frame, 0, s.batchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteJSON(batch)
			batch = batch[:0]
			if err != nil {
				wrap := fmt.Errorf("%w: %v", ErrMonitorWrite, err)
				metrics.IncError(mapErrToMetric(wrap))
				logger.Debug("monitor_write_error", "error", wrap)
				return wrap
			}
			return nil
		}
		for {
			select {
			case fr := <-cl.Out:
				batch = append(batch, api.FromFrame(fr))
				if len(batch) >= s.batchSize {
					if err := flush(); err != nil {
						return
					}
				}
			case <-flushT.C:
				if err := flush(); err != nil {
					return
				}
			case <-pingT.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-cl.Closed:
				_ = flush()
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
		}
	}()
}
