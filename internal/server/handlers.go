package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/kstaniek/go-tcan-bench/internal/api"
	"github.com/kstaniek/go-tcan-bench/internal/can"
	"github.com/kstaniek/go-tcan-bench/internal/command"
	"github.com/kstaniek/go-tcan-bench/internal/device"
	"github.com/kstaniek/go-tcan-bench/internal/metrics"
)

var okStatus = api.Status{Status: api.StatusOK}

func (s *Server) handleEnterMode(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "mode"))
	if err != nil {
		s.badRequest(w, r, ErrInvalidMode(err), err)
		return
	}
	m, err := device.ModeFromInt(n)
	if err != nil {
		s.badRequest(w, r, ErrInvalidMode(err), err)
		return
	}
	s.State.SetMode(m)
	metrics.SetMode(uint8(m))
	s.logger.Info("mode_set", "mode", m.String())
	render.JSON(w, r, okStatus)
}

func (s *Server) handleSetAxis(w http.ResponseWriter, r *http.Request) {
	var values []int
	if err := render.DecodeJSON(r.Body, &values); err != nil {
		s.badRequest(w, r, ErrInvalidRequest(fmt.Errorf("axis body: %w", err)), err)
		return
	}
	if len(values) > can.MaxLen {
		err := fmt.Errorf("axis has %d bytes, at most %d allowed", len(values), can.MaxLen)
		s.badRequest(w, r, ErrInvalidRequest(err), err)
		return
	}
	payload := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 0xFF {
			err := fmt.Errorf("axis byte %d out of range: %d", i, v)
			s.badRequest(w, r, ErrInvalidRequest(err), err)
			return
		}
		payload[i] = byte(v)
	}
	s.State.SetAxis(payload)
	metrics.IncAxisUpdate()
	s.logger.Debug("axis_set", "axis", fmt.Sprintf("% X", payload))
	render.JSON(w, r, okStatus)
}

func (s *Server) handleAutocal(w http.ResponseWriter, r *http.Request) {
	s.enqueue(command.Autocal)
	render.JSON(w, r, okStatus)
}

// handleCommand accepts any token; unknown ones are reported by the dispatcher.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")
	if tok == "" {
		err := fmt.Errorf("empty command")
		s.badRequest(w, r, ErrInvalidRequest(err), err)
		return
	}
	s.enqueue(command.Token(tok))
	render.JSON(w, r, okStatus)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	m, axis := s.State.Snapshot()
	out := api.State{
		Mode:       uint8(m),
		ModeName:   m.String(),
		Axis:       make([]int, len(axis)),
		QueueDepth: s.Queue.Len(),
	}
	for i, b := range axis {
		out.Axis[i] = int(b)
	}
	render.JSON(w, r, out)
}

func (s *Server) enqueue(tok command.Token) {
	s.Queue.Enqueue(tok)
	metrics.IncEnqueued()
	s.logger.Info("command_enqueued", "command", string(tok))
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, rnd render.Renderer, err error) {
	wrap := fmt.Errorf("%w: %v", ErrBadRequest, err)
	metrics.IncError(mapErrToMetric(wrap))
	s.logger.Warn("http_bad_request", "path", r.URL.Path, "error", err)
	_ = render.Render(w, r, rnd)
}
