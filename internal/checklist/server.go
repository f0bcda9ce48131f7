package checklist

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// Server serves the checklist page and its state document over HTTP. POST
// /state replaces the whole document; reviewer edits flow back into the
// tracker through the exporter.
type Server struct {
	exporter *Exporter
	logger   *zap.Logger
	app      *fiber.App
}

func NewServer(exporter *Exporter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		exporter: exporter,
		logger:   logger,
		app:      fiber.New(fiber.Config{}),
	}

	s.app.Get("/", s.handlePage)
	s.app.Get("/state", s.handleGetState)
	s.app.Post("/state", s.handlePostState)

	return s
}

func (s *Server) handlePage(c fiber.Ctx) error {
	return c.SendFile(s.exporter.PagePath())
}

func (s *Server) handleGetState(c fiber.Ctx) error {
	return c.JSON(s.exporter.BuildDocument())
}

func (s *Server) handlePostState(c fiber.Ctx) error {
	var doc StateDocument
	if err := c.Bind().Body(&doc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "body must be a state document"})
	}
	if doc.Jobs == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "state document has no jobs"})
	}

	changed, err := s.exporter.SyncEdits(doc)
	if err != nil {
		s.logger.Error("applying checklist edits failed", zap.Error(err))
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"jobs_applied": changed,
		"state":        s.exporter.BuildDocument(),
	})
}

// ListenAddr normalizes a configured port into a listen address.
func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}

// Listen blocks serving HTTP on addr.
func (s *Server) Listen(addr string) error {
	s.logger.Info("checklist server listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
