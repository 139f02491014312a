package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/avatair-api/internal/utils"
)

var (
	errMissingToken = errors.New("authorization header missing")
	errInvalidToken = errors.New("invalid token")
)

// JWTProtected returns a middleware that requires a valid bearer token.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := authenticate(c, secret); err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}
		return c.Next()
	}
}

// OptionalJWT identifies the caller when a bearer token is supplied and lets
// anonymous requests through. A malformed or expired token is still rejected.
func OptionalJWT(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := authenticate(c, secret)
		switch {
		case err == nil, errors.Is(err, errMissingToken):
			return c.Next()
		default:
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}
	}
}

func authenticate(c *fiber.Ctx, secret string) error {
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authorization == "" {
		return errMissingToken
	}

	const bearer = "bearer "
	if len(authorization) <= len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return fmt.Errorf("invalid authorization header")
	}

	tokenString := strings.TrimSpace(authorization[len(bearer):])
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("invalid token claims")
	}

	userID := extractUserID(claims)
	if userID == "" {
		return fmt.Errorf("token carries no subject")
	}
	c.Locals("user_id", userID)
	if role := extractUserRole(claims); role != "" {
		c.Locals("user_role", role)
	}

	return nil
}

func extractUserID(claims jwt.MapClaims) string {
	for _, key := range []string{"sub", "user_id", "id", "_id"} {
		switch v := claims[key].(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			if v >= 0 {
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
	}
	return ""
}

func extractUserRole(claims jwt.MapClaims) string {
	for _, key := range []string{"role", "roles"} {
		if role := normalizeRole(claims[key]); role != "" {
			return role
		}
	}
	return ""
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				if role := strings.ToLower(strings.TrimSpace(str)); role != "" {
					return role
				}
			}
		}
	}
	return ""
}

// UserID returns the authenticated subject, or "" for anonymous requests.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// UserRole returns the authenticated role, or "".
func UserRole(c *fiber.Ctx) string {
	role, _ := c.Locals("user_role").(string)
	return role
}
