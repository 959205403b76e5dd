package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/dmitrijs2005/dumpvault/internal/common"
	"github.com/dmitrijs2005/dumpvault/internal/server/auth"
	"github.com/dmitrijs2005/dumpvault/internal/server/services"
)

func (s *Server) handleSignup(c fiber.Ctx) error {
	var req credentialsRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}

	sess, err := s.auth.Signup(c.Context(), req.Email, req.Password)
	if err != nil {
		var ve *services.ValidationError
		switch {
		case errors.As(err, &ve):
			return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "Validation failed", Details: ve.Violations})
		case errors.Is(err, services.ErrAccountExists):
			return c.Status(fiber.StatusConflict).JSON(errorResponse{Error: "User already exists"})
		}
		return err
	}

	s.setSessionCookie(c, sess.Token)
	return c.JSON(authResponse{
		Message: "User created successfully",
		User:    userResponse{ID: sess.AccountID, Email: sess.Email},
	})
}

func (s *Server) handleLogin(c fiber.Ctx) error {
	var req credentialsRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "Email and password are required"})
	}

	sess, err := s.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		var (
			le *services.LockedError
			ip *services.InvalidPasswordError
		)
		switch {
		case errors.Is(err, services.ErrAccountNotFound):
			return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "User not found"})
		case errors.Is(err, services.ErrIncompleteAccount):
			return c.Status(fiber.StatusForbidden).JSON(errorResponse{Error: "Account setup incomplete"})
		case errors.As(err, &le):
			return c.Status(fiber.StatusLocked).JSON(lockedResponse{
				Error:            "Account is locked due to too many failed login attempts",
				RemainingMinutes: le.RemainingMinutes(),
			})
		case errors.As(err, &ip):
			return c.Status(fiber.StatusUnauthorized).JSON(invalidPasswordResponse{
				Error:             "Invalid password",
				AttemptsRemaining: ip.AttemptsRemaining,
			})
		}
		return err
	}

	s.setSessionCookie(c, sess.Token)
	return c.JSON(authResponse{
		Message: "Login successful",
		User:    userResponse{ID: sess.AccountID, Email: sess.Email},
	})
}

// handleLogout is public: it clears the cookie whether or not the session is valid.
func (s *Server) handleLogout(c fiber.Ctx) error {
	var accountID string
	if token := extractToken(c); token != "" {
		if id, ok := s.auth.VerifySession(token); ok {
			accountID = id.AccountID
		}
	}
	s.auth.Logout(c.Context(), accountID)

	s.clearSessionCookie(c)
	return c.JSON(messageResponse{Message: "Logged out successfully"})
}

func (s *Server) handleChangePassword(c fiber.Ctx) error {
	id, ok := identityFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: common.ErrorUnauthorized.Error()})
	}

	var req changePasswordRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "Current and new password are required"})
	}

	err := s.auth.ChangePassword(c.Context(), id.AccountID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		var we *services.WeakPasswordError
		switch {
		case errors.Is(err, services.ErrAccountNotFound):
			return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "User not found"})
		case errors.Is(err, services.ErrWrongCurrentPassword):
			return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: "Current password is incorrect"})
		case errors.As(err, &we):
			return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "Password does not meet requirements", Details: we.Violations})
		case errors.Is(err, services.ErrSamePassword):
			return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "New password must be different from current password"})
		}
		return err
	}

	return c.JSON(messageResponse{Message: "Password changed successfully"})
}

func (s *Server) handleSession(c fiber.Ctx) error {
	id, ok := identityFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: common.ErrorUnauthorized.Error()})
	}
	return c.JSON(sessionResponse{User: userResponse{ID: id.AccountID, Email: id.Email}})
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// throttle counts signup and login hits per client IP. A Redis outage lets
// the request through.
func (s *Server) throttle(scope string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if s.limiter == nil {
			return c.Next()
		}

		d, err := s.limiter.Allow(c.Context(), scope, c.IP())
		if err != nil {
			s.logger.Warn(c.Context(), "rate limiter unavailable", "scope", scope, "error", err)
			return c.Next()
		}
		if !d.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int((d.RetryAfter+time.Second-1)/time.Second)))
			return c.Status(fiber.StatusTooManyRequests).JSON(errorResponse{Error: "Too many requests"})
		}
		return c.Next()
	}
}

func (s *Server) setSessionCookie(c fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     common.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.DefaultValidity / time.Second),
		HTTPOnly: true,
		Secure:   s.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
