// Package transport exposes a running controller over HTTP: target pose and
// twist producers, the current pose publisher, and runtime tuning.
package transport

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/utils"
	"golang.org/x/time/rate"

	"github.com/lkotsoni/cartesian-controllers/internal/controller"
	"github.com/lkotsoni/cartesian-controllers/internal/dynamo"
	"github.com/lkotsoni/cartesian-controllers/internal/scheduler"
)

const DefaultStreamHz = 30.0

// Controller is the part of the motion controller the server drives.
type Controller interface {
	Config() controller.Config
	SetTargetFrame(frameID string, pose spatialmath.Pose) error
	SetTargetTwist(tw controller.Twist) error
	CurrentPose() *controller.PoseStamped
	Status() controller.Status
	GetParams() map[string]float64
	SetParam(name string, value float64) error
	Pause()
	Resume()
}

type Option func(*Server)

// WithLoopStats adds scheduler timing to the status endpoint.
func WithLoopStats(fn func() scheduler.Stats) Option {
	return func(s *Server) { s.loopStats = fn }
}

// WithStreamRate caps how often current poses are pushed to websocket
// subscribers.
func WithStreamRate(hz float64) Option {
	return func(s *Server) {
		if hz > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(hz), 1)
		}
	}
}

type Server struct {
	logger    logging.Logger
	ctrl      Controller
	app       *fiber.App
	hub       *Hub
	limiter   *rate.Limiter
	loopStats func() scheduler.Stats

	cancelCtx               context.Context
	cancel                  context.CancelFunc
	activeBackgroundWorkers sync.WaitGroup
}

func NewServer(logger logging.Logger, ctrl Controller, opts ...Option) *Server {
	cancelCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		logger:    logger,
		ctrl:      ctrl,
		hub:       NewHub(logger, "current_pose"),
		limiter:   rate.NewLimiter(rate.Limit(DefaultStreamHz), 1),
		cancelCtx: cancelCtx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		AppName:               "cartesian-controllers",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	cfg := ctrl.Config()
	app.Post(route(cfg.TargetFrameTopic), s.handleTargetFrame)
	app.Post(route(cfg.TargetTwistTopic), s.handleTargetTwist)
	app.Get(route(cfg.CurrentPoseTopic), s.handleCurrentPose)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/params", s.handleGetParams)
	api.Put("/params/:name", s.handleSetParam)
	api.Post("/pause", s.handlePause)
	api.Post("/resume", s.handleResume)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws"+route(cfg.CurrentPoseTopic), websocket.New(s.handlePoseWS))

	s.app = app

	s.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() { s.hub.Run(s.cancelCtx) }, s.activeBackgroundWorkers.Done)
	return s
}

// route turns a topic name such as "/spacenav/twist" into a fiber path.
func route(topic string) string {
	return "/" + strings.TrimPrefix(topic, "/")
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Stream forwards samples from feed to websocket subscribers at the stream
// rate until the server shuts down.
func (s *Server) Stream(feed <-chan controller.Sample) {
	s.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		for {
			select {
			case <-s.cancelCtx.Done():
				return
			case sample := <-feed:
				if !s.limiter.Allow() {
					continue
				}
				s.PublishPose(sample.CurrentPose())
			}
		}
	}, s.activeBackgroundWorkers.Done)
}

// PublishPose pushes one current pose to every websocket subscriber.
func (s *Server) PublishPose(ps controller.PoseStamped) {
	if err := s.hub.BroadcastJSON(FromPoseStamped(ps)); err != nil {
		s.logger.Warnf("cannot encode current pose: %v", err)
	}
}

func (s *Server) Listen(addr string) error {
	s.logger.Infof("listening on %s", addr)
	return s.app.Listen(addr)
}

func (s *Server) Listener(ln net.Listener) error {
	s.logger.Infof("listening on %s", ln.Addr())
	return s.app.Listener(ln)
}

// Shutdown stops accepting requests and closes all subscribers.
func (s *Server) Shutdown() error {
	s.cancel()
	err := s.app.Shutdown()
	s.activeBackgroundWorkers.Wait()
	return err
}

// statusFor maps controller errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, controller.ErrFrameMismatch):
		return fiber.StatusConflict
	case errors.Is(err, controller.ErrInvalidPose),
		errors.Is(err, controller.ErrInvalidTwist),
		errors.Is(err, dynamo.ErrParameterBounds):
		return fiber.StatusBadRequest
	case errors.Is(err, dynamo.ErrUnknownParameter):
		return fiber.StatusNotFound
	case errors.Is(err, controller.ErrNotRunning),
		errors.Is(err, controller.ErrNoCurrentPose),
		errors.Is(err, controller.ErrNotInitialized):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) handleTargetFrame(c *fiber.Ctx) error {
	var msg PoseStamped
	if err := c.BodyParser(&msg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := s.ctrl.SetTargetFrame(msg.Header.FrameID, msg.ToPose()); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) handleTargetTwist(c *fiber.Ctx) error {
	var msg Twist
	if err := c.BodyParser(&msg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := s.ctrl.SetTargetTwist(msg.ToTwist()); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) handleCurrentPose(c *fiber.Ctx) error {
	ps := s.ctrl.CurrentPose()
	if ps == nil {
		return fail(c, controller.ErrNoCurrentPose)
	}
	return c.JSON(FromPoseStamped(*ps))
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	resp := newStatusResponse(s.ctrl.Status())
	if s.loopStats != nil {
		resp.Loop = s.loopStats()
	}
	return c.JSON(resp)
}

func (s *Server) handleGetParams(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.GetParams())
}

func (s *Server) handleSetParam(c *fiber.Ctx) error {
	var req struct {
		Value *float64 `json:"value"`
	}
	if err := c.BodyParser(&req); err != nil || req.Value == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "body must be {\"value\": <number>}"})
	}
	name := c.Params("name")
	if err := s.ctrl.SetParam(name, *req.Value); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{name: *req.Value})
}

func (s *Server) handlePause(c *fiber.Ctx) error {
	s.ctrl.Pause()
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleResume(c *fiber.Ctx) error {
	s.ctrl.Resume()
	return c.SendStatus(fiber.StatusNoContent)
}

// handlePoseWS sends the latest pose on connect and then every streamed one.
func (s *Server) handlePoseWS(conn *websocket.Conn) {
	var initial [][]byte
	if ps := s.ctrl.CurrentPose(); ps != nil {
		if data, err := json.Marshal(FromPoseStamped(*ps)); err == nil {
			initial = append(initial, data)
		}
	}
	client, ok := NewClient(s.cancelCtx, s.hub, conn, initial...)
	if !ok {
		return
	}
	client.Run(s.cancelCtx)
}
