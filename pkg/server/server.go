package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sherine-k/rmsim/pkg/simulation"
	"github.com/sirupsen/logrus"
)

// Message types sent over the replay websocket
const (
	MessageTypeEvent = "event"
	MessageTypeStats = "stats"
)

const maxReplayDelay = 5 * time.Second

// ServerMessage is one frame of the websocket replay
type ServerMessage struct {
	Type   string             `json:"type"`
	Event  *simulation.Event  `json:"event,omitempty"`
	Report *simulation.Report `json:"report,omitempty"`
}

// Server serves the results of a finished simulation
type Server struct {
	sim      *simulation.Simulator
	router   *httprouter.Router
	registry *prometheus.Registry
	upgrader websocket.Upgrader
	logger   logrus.FieldLogger
}

// New creates a server for a simulator that has already been run
func New(sim *simulation.Simulator, logger logrus.FieldLogger) (*Server, error) {
	report := sim.GetReport()
	if report == nil {
		return nil, errors.New("simulation has not been run")
	}

	s := &Server{
		sim:      sim,
		router:   httprouter.New(),
		registry: prometheus.NewRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}

	newMetrics(s.registry).update(report)

	s.router.GET("/api/tasks", s.handleTasks)
	s.router.GET("/api/trace", s.handleTrace)
	s.router.GET("/api/segments", s.handleSegments)
	s.router.GET("/api/stats", s.handleStats)
	s.router.GET("/ws", s.handleReplay)
	s.router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return s, nil
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.WithField("addr", addr).Info("serving simulation results")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writeJSON(w, s.sim.Catalog().Tasks())
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writeJSON(w, s.sim.GetEvents())
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writeJSON(w, s.sim.GetSegments())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writeJSON(w, s.sim.GetReport())
}

// handleReplay streams the trace event by event, then the final statistics.
// The optional delay query parameter paces frames in milliseconds.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var delay time.Duration
	if v := r.URL.Query().Get("delay"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			http.Error(w, "delay must be a non-negative number of milliseconds", http.StatusBadRequest)
			return
		}
		delay = min(time.Duration(ms)*time.Millisecond, maxReplayDelay)
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := s.logger.WithField("remote", r.RemoteAddr)
	log.Debug("replay started")

	events := s.sim.GetEvents()
	for i := range events {
		if err := conn.WriteJSON(ServerMessage{Type: MessageTypeEvent, Event: &events[i]}); err != nil {
			log.WithError(err).Debug("replay client went away")
			return
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}

	if err := conn.WriteJSON(ServerMessage{Type: MessageTypeStats, Report: s.sim.GetReport()}); err != nil {
		log.WithError(err).Debug("replay client went away")
		return
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replay complete")
	if err := conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second)); err != nil {
		log.WithError(err).Debug("failed to send close frame")
	}
	log.Debug("replay finished")
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}
