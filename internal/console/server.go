package console

import (
	"encoding/json"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/kubejit/internal/health"
	"github.com/p-blackswan/kubejit/internal/metrics"
	"github.com/p-blackswan/kubejit/internal/requestid"
)

// Server exposes the console's metrics and probes on a local address.
type Server struct {
	app    *fiber.App
	addr   string
	ln     net.Listener
	logger zerolog.Logger
}

// NewServer builds the probe server. m may be nil.
func NewServer(addr string, checker *health.Checker, m *metrics.Metrics, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app:    app,
		addr:   addr,
		logger: logger.With().Str("component", "console_server").Logger(),
	}

	app.Use(recover.New())
	app.Use(func(c *fiber.Ctx) error {
		_, reqID := requestid.New(c.Context())
		c.Set(requestid.Header, reqID)
		return c.Next()
	})

	app.Get("/healthz", health.Liveness)
	app.Get("/readyz", checker.Readiness)
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	} else {
		app.Get("/metrics", func(c *fiber.Ctx) error {
			return c.SendString("# No metrics collector configured\n")
		})
	}
	return s
}

// Start binds the address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("metrics server listening")
	go func() {
		if err := s.app.Listener(ln); err != nil {
			s.logger.Debug().Err(err).Msg("metrics server stopped")
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}
