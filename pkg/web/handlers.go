package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/Starsurfer78/sunray-mower-sub001/pkg/hub"
)

// commandNames lists the commands the dashboard may issue. Anything else
// is rejected before reaching the callback.
var commandNames = map[string]bool{
	"stop":      true,
	"clear":     true,
	"start-mow": true,
	"stop-mow":  true,
	"go-home":   true,
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.currentStatus())
}

func (s *Server) handleEvents(c *fiber.Ctx) error {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	return c.JSON(s.events)
}

// CommandRequest is the optional body for a dashboard command.
type CommandRequest struct {
	Args map[string]interface{} `json:"args"`
}

func (s *Server) handleCommand(c *fiber.Ctx) error {
	name := c.Params("name")
	if !commandNames[name] {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown command: " + name,
		})
	}

	var req CommandRequest
	if err := c.BodyParser(&req); err != nil {
		req.Args = make(map[string]interface{})
	}

	if s.OnCommand == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "command dispatch not configured",
		})
	}
	if err := s.OnCommand(name, req.Args); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"command": name, "ok": true})
}

// SpeedRequest sets the drive targets directly, bypassing the planner.
type SpeedRequest struct {
	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`
}

func (s *Server) handleSpeed(c *fiber.Ctx) error {
	var req SpeedRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body: " + err.Error(),
		})
	}
	if s.OnCommand == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "command dispatch not configured",
		})
	}
	err := s.OnCommand("set-speed", map[string]interface{}{
		"linear":  req.Linear,
		"angular": req.Angular,
	})
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"linear": req.Linear, "angular": req.Angular})
}

// ButtonPressRequest simulates holding the physical button.
type ButtonPressRequest struct {
	DurationMS int `json:"duration_ms"`
}

func (s *Server) handleButtonPress(c *fiber.Ctx) error {
	var req ButtonPressRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body: " + err.Error(),
		})
	}
	if req.DurationMS <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "duration_ms must be positive",
		})
	}
	if s.OnButtonPress == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "button simulation not configured",
		})
	}
	action := s.OnButtonPress(time.Duration(req.DurationMS) * time.Millisecond)
	return c.JSON(fiber.Map{"duration_ms": req.DurationMS, "action": action})
}

// handleStatusWS upgrades to websocket, sends the current merged status and
// then hands the connection to the hub pumps.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if env, err := hub.NewEnvelope(hub.KindStatus, s.currentStatus()); err == nil {
		if frame, err := env.Encode(); err == nil {
			c.WriteMessage(websocket.TextMessage, frame)
		}
	}
	hub.NewClient(s.statusHub, c).Run()
}
