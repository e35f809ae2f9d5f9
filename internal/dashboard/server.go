package dashboard

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
)

// Snapshot is the dashboard's view of the assistant.
type Snapshot struct {
	State             string          `json:"state"`
	RMS               float64         `json:"rms"`
	Threshold         float64         `json:"threshold"`
	Intent            string          `json:"intent"`
	LastTranscription string          `json:"last_transcription"`
	LastResponse      string          `json:"last_response"`
	Workers           map[string]bool `json:"workers"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type event struct {
	Type string   `json:"type"`
	Data Snapshot `json:"data"`
}

// Server exposes a loopback status page: GET /status returns the current
// snapshot, GET /events upgrades to a websocket pushing every change. Purely
// advisory; nothing in the pipeline depends on it.
type Server struct {
	mu       sync.RWMutex
	snap     Snapshot
	clients  map[uuid.UUID]*websocket.Conn
	upgrader websocket.Upgrader
	logger   *Logger.Logger
}

func NewServer(logger *Logger.Logger) *Server {
	return &Server{
		snap:    Snapshot{State: "starting", Workers: map[string]bool{}},
		clients: make(map[uuid.UUID]*websocket.Conn),
		upgrader: websocket.Upgrader{
			// Loopback only; no cross-origin surface to defend.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Run serves until the listener fails. Call from a goroutine; bind failures
// are logged by the caller and are non-fatal.
func (s *Server) Run(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/status", s.handleStatus)
	r.GET("/events", s.handleEvents)

	s.logger.Infof("dashboard listening on %s", addr)
	return r.Run(addr)
}

func (s *Server) handleStatus(c *gin.Context) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debugf("websocket upgrade failed: %v", err)
		return
	}
	id := uuid.New()

	s.mu.Lock()
	s.clients[id] = conn
	snap := s.snap
	s.mu.Unlock()

	conn.WriteJSON(event{Type: "snapshot", Data: snap})

	// Reader loop exists only to notice the close.
	go func() {
		defer s.drop(id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) drop(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn, ok := s.clients[id]; ok {
		conn.Close()
		delete(s.clients, id)
	}
}

// publish mutates the snapshot and pushes it to every connected client.
func (s *Server) publish(typ string, mutate func(*Snapshot)) {
	s.mu.Lock()
	mutate(&s.snap)
	s.snap.UpdatedAt = time.Now()
	ev := event{Type: typ, Data: s.snap}
	conns := make(map[uuid.UUID]*websocket.Conn, len(s.clients))
	for id, c := range s.clients {
		conns[id] = c
	}
	s.mu.Unlock()

	for id, conn := range conns {
		if err := conn.WriteJSON(ev); err != nil {
			s.drop(id)
		}
	}
}

// SetState publishes a conversation state change.
func (s *Server) SetState(state string) {
	s.publish("state", func(sn *Snapshot) { sn.State = state })
}

// SetAudio publishes the live RMS level and noise-floor threshold.
func (s *Server) SetAudio(rms, threshold float64) {
	s.publish("audio", func(sn *Snapshot) {
		sn.RMS = rms
		sn.Threshold = threshold
	})
}

// SetExchange publishes the latest transcription/intent/response triple.
func (s *Server) SetExchange(transcription, intent, response string) {
	s.publish("exchange", func(sn *Snapshot) {
		sn.LastTranscription = transcription
		sn.Intent = intent
		sn.LastResponse = response
	})
}

// SetWorkers publishes worker health.
func (s *Server) SetWorkers(health map[string]bool) {
	s.publish("workers", func(sn *Snapshot) { sn.Workers = health })
}
