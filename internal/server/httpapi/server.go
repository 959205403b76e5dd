// Package httpapi is the HTTP front door: a fiber app with the access gate,
// the auth and file endpoints, and graceful shutdown.
package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"

	"github.com/dmitrijs2005/dumpvault/internal/logging"
	"github.com/dmitrijs2005/dumpvault/internal/server/ratelimit"
	"github.com/dmitrijs2005/dumpvault/internal/server/services"
)

// MaxUploadSize caps request bodies, and with them uploaded dumps.
const MaxUploadSize = 50 << 20

const shutdownTimeout = 5 * time.Second

// AuthService is what the handlers and the gate need from services.AuthService.
type AuthService interface {
	Signup(ctx context.Context, email, password string) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Logout(ctx context.Context, accountID string)
	ChangePassword(ctx context.Context, accountID, current, next string) error
	VerifySession(token string) (services.Identity, bool)
}

type FileService interface {
	Upload(ctx context.Context, accountID string, in services.FileUpload) (*services.FileView, error)
	List(ctx context.Context, accountID string) ([]services.FileView, error)
	Delete(ctx context.Context, accountID, fileID string) error
}

type RateLimiter interface {
	Allow(ctx context.Context, scope, ip string) (ratelimit.Decision, error)
}

// Options tune the front door.
type Options struct {
	Address string
	// SecureCookie marks the session cookie Secure; on in production.
	SecureCookie bool
	// Limiter throttles signup and login; nil disables throttling.
	Limiter RateLimiter
}

type Server struct {
	app          *fiber.App
	address      string
	secureCookie bool
	auth         AuthService
	files        FileService
	limiter      RateLimiter
	logger       logging.Logger
}

func NewServer(opts Options, auth AuthService, files FileService, l logging.Logger) *Server {
	s := &Server{
		address:      opts.Address,
		secureCookie: opts.SecureCookie,
		auth:         auth,
		files:        files,
		limiter:      opts.Limiter,
		logger:       l.With("module", "http_server"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:      "dumpvault",
		BodyLimit:    MaxUploadSize,
		ErrorHandler: s.handleError,
	})

	s.app.Use(recoverer.New())
	s.app.Use(requestid.New())
	s.app.Use(logger.New(logger.Config{
		Format:     "${time}|${requestid}|${status}|${latency}|${ip}|${method}|${path}|${error}\n",
		TimeFormat: "2006/01/02 15:04:05",
	}))
	s.app.Use(s.accessGate)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.handleHealth)

	api := s.app.Group("/api")

	authAPI := api.Group("/auth")
	authAPI.Post("/signup", s.throttle("signup"), s.handleSignup)
	authAPI.Post("/login", s.throttle("login"), s.handleLogin)
	authAPI.Post("/logout", s.handleLogout)
	authAPI.Post("/change-password", s.handleChangePassword)

	api.Get("/session", s.handleSession)

	api.Get("/files", s.handleListFiles)
	api.Post("/files/upload", s.handleUploadFile)
	api.Delete("/files/:id", s.handleDeleteFile)
}

// App exposes the fiber app, e.g. for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	return s.app.Listen(s.address, fiber.ListenConfig{DisableStartupMessage: true})
}

// handleError turns errors that reach fiber into JSON. Framework errors keep
// their status; anything else is an internal error and only its detail is logged.
func (s *Server) handleError(c fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorResponse{Error: fe.Message})
	}

	s.logger.Error(c.Context(), "request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "internal server error"})
}
