package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/dmitrijs2005/dumpvault/internal/common"
	"github.com/dmitrijs2005/dumpvault/internal/server/services"
)

type localsKey string

const identityKey localsKey = "identity"

var publicPaths = map[string]struct{}{
	"/api/auth/signup": {},
	"/api/auth/login":  {},
	"/api/auth/logout": {},
	"/login":           {},
	"/signup":          {},
	"/landing":         {},
	"/healthz":         {},
}

var publicPrefixes = []string{"/static/", "/favicon"}

// IsPublicPath reports whether path is reachable without a session.
// Anything not listed is protected.
func IsPublicPath(path string) bool {
	path = normalizePath(path)
	if _, ok := publicPaths[path]; ok {
		return true
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func isAPIPath(path string) bool {
	path = normalizePath(path)
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

func normalizePath(path string) string {
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}

// accessGate lets public paths through and requires a valid session token
// everywhere else. It never touches the database.
func (s *Server) accessGate(c fiber.Ctx) error {
	if IsPublicPath(c.Path()) {
		return c.Next()
	}

	token := extractToken(c)
	if token == "" {
		return deny(c)
	}

	id, ok := s.auth.VerifySession(token)
	if !ok {
		return deny(c)
	}

	c.Locals(identityKey, id)
	return c.Next()
}

func deny(c fiber.Ctx) error {
	if isAPIPath(c.Path()) {
		return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: common.ErrorUnauthorized.Error()})
	}
	return c.Redirect().Status(fiber.StatusFound).To("/login")
}

// extractToken reads the session cookie, falling back to a bearer header.
func extractToken(c fiber.Ctx) string {
	if token := c.Cookies(common.SessionCookieName); token != "" {
		return token
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}

func identityFrom(c fiber.Ctx) (services.Identity, bool) {
	id, ok := c.Locals(identityKey).(services.Identity)
	return id, ok
}
