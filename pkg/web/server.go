// Package web provides the mower's local dashboard and control API.
package web

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/Starsurfer78/sunray-mower-sub001/internal/log"
	"github.com/Starsurfer78/sunray-mower-sub001/pkg/button"
	"github.com/Starsurfer78/sunray-mower-sub001/pkg/drive"
	"github.com/Starsurfer78/sunray-mower-sub001/pkg/hub"
	"github.com/Starsurfer78/sunray-mower-sub001/pkg/link"
)

// maxEvents bounds the in-memory safety event buffer.
const maxEvents = 100

// Status is the merged view the dashboard polls and the status socket
// streams.
type Status struct {
	Motor    drive.MotorStatus  `json:"motor"`
	Loop     drive.RunnerStatus `json:"loop"`
	Button   button.Status      `json:"button"`
	Sensors  link.Snapshot      `json:"sensors"`
	LinkOK   bool               `json:"link_ok"`
	UpdateAt time.Time          `json:"updated_at"`
}

// StatusSource yields the live pieces of Status. The server never reaches
// into the control loop itself; the owning process wires these in.
type StatusSource struct {
	Motor  func() drive.MotorStatus
	Loop   func() drive.RunnerStatus
	Button func() button.Status
}

// Server is the dashboard HTTP/websocket server.
type Server struct {
	app  *fiber.App
	port string

	source StatusSource

	snapMu   sync.RWMutex
	snapshot link.Snapshot
	snapAt   time.Time

	eventsMu sync.RWMutex
	events   []drive.SafetyEvent

	statusHub *hub.Hub

	// OnCommand executes a named dashboard command (stop, clear,
	// start-mow, stop-mow, go-home). Required for the command endpoint.
	OnCommand func(name string, args map[string]interface{}) error

	// OnButtonPress simulates a physical press of the given duration.
	OnButtonPress func(d time.Duration) string
}

// NewServer creates the dashboard server on the given port.
func NewServer(port string, source StatusSource) *Server {
	s := &Server{
		port:      port,
		source:    source,
		events:    make([]drive.SafetyEvent, 0, maxEvents),
		statusHub: hub.New("status"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Mower Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for a dashboard served from a dev host
	app.Use(cors.New())

	app.Static("/", "./web")

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/events", s.handleEvents)
	api.Post("/command/:name", s.handleCommand)
	api.Post("/speed", s.handleSpeed)
	api.Post("/button/press", s.handleButtonPress)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Start runs the hub and blocks serving HTTP.
func (s *Server) Start() error {
	log.Info("dashboard listening", "port", s.port)
	go s.statusHub.Run()
	return s.app.Listen(":" + s.port)
}

// StartAsync serves in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("dashboard server stopped", "err", err)
		}
	}()
}

// Shutdown stops the server and disconnects websocket clients.
func (s *Server) Shutdown() error {
	s.statusHub.Stop()
	return s.app.Shutdown()
}

// PublishSnapshot records the latest hardware snapshot and streams the
// merged status to websocket clients. Called from the control loop's tick
// hook.
func (s *Server) PublishSnapshot(snap link.Snapshot) {
	s.snapMu.Lock()
	s.snapshot = snap
	s.snapAt = time.Now()
	s.snapMu.Unlock()

	if s.statusHub.ClientCount() > 0 {
		if err := s.statusHub.BroadcastEnvelope(hub.KindStatus, s.currentStatus()); err != nil {
			log.Warn("status broadcast failed", "err", err)
		}
	}
}

// PublishEvent records a safety event and streams it to clients.
func (s *Server) PublishEvent(ev drive.SafetyEvent) {
	s.eventsMu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > maxEvents {
		s.events = s.events[1:]
	}
	s.eventsMu.Unlock()

	if err := s.statusHub.BroadcastEnvelope(hub.KindEvent, ev); err != nil {
		log.Warn("event broadcast failed", "err", err)
	}
}

func (s *Server) currentStatus() Status {
	s.snapMu.RLock()
	snap := s.snapshot
	at := s.snapAt
	s.snapMu.RUnlock()

	st := Status{
		Sensors:  snap,
		UpdateAt: at,
		LinkOK:   !at.IsZero() && time.Since(at) < time.Second,
	}
	if s.source.Motor != nil {
		st.Motor = s.source.Motor()
	}
	if s.source.Loop != nil {
		st.Loop = s.source.Loop()
	}
	if s.source.Button != nil {
		st.Button = s.source.Button()
	}
	return st
}
