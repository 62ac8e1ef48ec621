// Package report exposes a timer's aggregate over HTTP for a host
// application's debug surface. GET /stats returns the current
// snapshot as JSON; GET /live upgrades to a websocket and pushes a
// fresh snapshot on a fixed interval, skipping pushes whose payload is
// unchanged since the last one.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BerriJ/tictoc"
	"github.com/BerriJ/tictoc/pkg/welford"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Snapshot is the wire form of one aggregate.
type Snapshot struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Tags        map[string]welford.Stats `json:"tags"`
}

// Server serves snapshots of a single Timer. Mount it wherever the
// host's mux lives, or run it standalone via Start.
type Server struct {
	timer    *tictoc.Timer
	log      *zap.Logger
	interval time.Duration
	server   *http.Server
}

// NewServer returns a report server pushing live snapshots every
// interval. A zero interval defaults to one second.
func NewServer(timer *tictoc.Timer, log *zap.Logger, interval time.Duration) *Server {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{timer: timer, log: log, interval: interval}
}

// Start serves the report endpoints on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{Addr: addr, Handler: s}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("report server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the standalone server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/stats":
		s.handleStats(w, r)
	case "/live":
		s.handleLive(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) snapshot() Snapshot {
	return Snapshot{
		GeneratedAt: time.Now().UTC(),
		Tags:        s.timer.Aggregate(),
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot()); err != nil {
		s.log.Error("encode snapshot", zap.Error(err))
	}
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	clientID := uuid.NewString()
	s.log.Info("live client connected",
		zap.String("client", clientID),
		zap.String("remote", conn.RemoteAddr().String()),
	)

	// Reader goroutine: the client sends nothing we care about, but
	// reading is what surfaces close frames and dead peers.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer conn.Close()

	var lastDigest uint64
	for {
		select {
		case <-done:
			s.log.Info("live client disconnected", zap.String("client", clientID))
			return
		case <-ticker.C:
			payload, err := json.Marshal(s.snapshot())
			if err != nil {
				s.log.Error("encode snapshot", zap.Error(err))
				continue
			}
			// GeneratedAt changes every tick, so digest only the tag
			// table when deciding whether anything moved.
			digest := xxhash.Sum64(payload[digestOffset(payload):])
			if digest == lastDigest {
				continue
			}
			lastDigest = digest
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.log.Info("live client write failed",
					zap.String("client", clientID),
					zap.Error(err),
				)
				return
			}
		}
	}
}

// digestOffset locates the start of the "tags" object inside an
// encoded Snapshot so the timestamp prefix is excluded from the
// change digest.
func digestOffset(payload []byte) int {
	if i := bytes.Index(payload, []byte(`"tags":`)); i >= 0 {
		return i
	}
	return 0
}
