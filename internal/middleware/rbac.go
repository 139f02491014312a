package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/avatair-api/internal/utils"
)

// AdminPasswordHeader carries the administrator password for callers that
// do not hold an admin token.
const AdminPasswordHeader = "X-Admin-Password"

// RequireRole ensures that the authenticated user possesses one of the allowed roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := allowed[UserRole(c)]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// AdminPolicy decides who may reach administrative routes. It is built once
// from configuration and passed to the router.
type AdminPolicy struct {
	enabled bool
	hash    []byte
}

// NewAdminPolicy validates the configured bcrypt hash. A disabled policy
// needs no hash.
func NewAdminPolicy(enabled bool, passwordHash string) (AdminPolicy, error) {
	if !enabled {
		return AdminPolicy{}, nil
	}

	hash := []byte(strings.TrimSpace(passwordHash))
	if _, err := bcrypt.Cost(hash); err != nil {
		return AdminPolicy{}, fmt.Errorf("invalid admin password hash: %w", err)
	}

	return AdminPolicy{enabled: true, hash: hash}, nil
}

// Enabled reports whether administrative access is switched on.
func (p AdminPolicy) Enabled() bool {
	return p.enabled
}

// Allows reports whether a caller with the given role and password is an
// administrator.
func (p AdminPolicy) Allows(role, password string) bool {
	if !p.enabled {
		return false
	}
	if strings.EqualFold(role, "admin") {
		return true
	}
	if password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(p.hash, []byte(password)) == nil
}

// RequireAdmin guards a route with the admin policy.
func RequireAdmin(policy AdminPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !policy.Enabled() {
			return utils.SendError(c, fiber.StatusForbidden, "administrative access is disabled")
		}
		if !policy.Allows(UserRole(c), c.Get(AdminPasswordHeader)) {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		c.Locals("user_role", "admin")
		return c.Next()
	}
}

// MarkPrivileged flags callers the admin policy accepts so participant routes
// can reach closed surveys. It never rejects a request.
func MarkPrivileged(policy AdminPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if policy.Allows(UserRole(c), c.Get(AdminPasswordHeader)) {
			c.Locals("privileged", true)
		}
		return c.Next()
	}
}

// Privileged reports whether MarkPrivileged accepted the caller.
func Privileged(c *fiber.Ctx) bool {
	privileged, _ := c.Locals("privileged").(bool)
	return privileged
}
