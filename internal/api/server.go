package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spool/internal/config"
	"spool/internal/logging"
	"spool/internal/services"
)

const shutdownTimeout = 5 * time.Second

// Server is the fiber application serving QueueService.
type Server struct {
	bind   string
	svc    *QueueService
	logger *slog.Logger
	app    *fiber.App

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewServer builds the routes. Requests beyond rate_limit_per_minute per
// client address get 429.
func NewServer(cfg *config.Config, svc *QueueService, logger *slog.Logger) *Server {
	s := &Server{
		bind:   cfg.API.Bind,
		svc:    svc,
		logger: logging.NewComponentLogger(logger, "api"),
	}
	app := fiber.New(fiber.Config{
		AppName:               "spool",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           60 * time.Second,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(s.requestContext)

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	limited := app.Group("/")
	if cfg.API.RateLimitPerMinute > 0 {
		limited.Use(limiter.New(limiter.Config{
			Max:        cfg.API.RateLimitPerMinute,
			Expiration: time.Minute,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{Error: "rate limit exceeded"})
			},
		}))
	}
	limited.Post("/enqueue", s.handleEnqueue)
	limited.Get("/status/:id", s.handleStatus)
	limited.Post("/check-channel", s.handleCheckChannel)

	s.app = app
	return s
}

// App exposes the fiber application for tests.
func (s *Server) App() *fiber.App { return s.app }

// Start listens on the configured bind and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	go func() {
		if err := s.app.Listener(listener); err != nil {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Shutdown stops the server, waiting briefly for open requests. Later calls
// return the first result.
func (s *Server) Shutdown() error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.app.ShutdownWithTimeout(shutdownTimeout)
	})
	return s.shutdownErr
}

func (s *Server) requestContext(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if rid := c.GetRespHeader(fiber.HeaderXRequestID); rid != "" {
		ctx = services.WithRequestID(ctx, rid)
	}
	c.SetUserContext(ctx)
	started := time.Now()
	err := c.Next()
	logging.WithContext(ctx, s.logger).Debug("http request",
		logging.String("method", c.Method()),
		logging.String("path", c.Path()),
		logging.Int("status", c.Response().StatusCode()),
		logging.Duration("elapsed", time.Since(started)),
	)
	return err
}

func (s *Server) handleEnqueue(c *fiber.Ctx) error {
	var req EnqueueRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	resp, err := s.svc.Enqueue(c.UserContext(), req, "api")
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	fields, err := s.svc.Status(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fields)
}

func (s *Server) handleCheckChannel(c *fiber.Ctx) error {
	var req CheckChannelRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	resp, err := s.svc.CheckChannel(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := s.svc.Health(c.UserContext())
	status := fiber.StatusOK
	if !resp.OK {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(resp)
}

// handleError maps error markers to status codes.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message})
	}
	switch {
	case errors.Is(err, services.ErrValidation):
		return badRequest(c, err.Error())
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "job not found"})
	case errors.Is(err, services.ErrStore):
		logging.WarnWithContext(s.logger, "job store unavailable", "api_store_error",
			logging.String("path", c.Path()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check store connectivity"),
		)
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "job store unavailable"})
	case errors.Is(err, services.ErrConfiguration):
		return c.Status(fiber.StatusNotImplemented).JSON(ErrorResponse{Error: err.Error()})
	default:
		logging.ErrorWithContext(s.logger, "request failed", "api_error",
			logging.String("path", c.Path()),
			logging.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}
