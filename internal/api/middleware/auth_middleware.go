package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/socialpilot/pkg/utils"
	"github.com/rs/zerolog"
)

const ClaimsKey = "claims"

type AuthMiddleware struct {
	secretKey  string
	cookieName string
	cronSecret string
	log        zerolog.Logger
}

func NewAuthMiddleware(secretKey, cookieName, cronSecret string, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secretKey:  secretKey,
		cookieName: cookieName,
		cronSecret: cronSecret,
		log:        logger.With().Str("component", "auth").Logger(),
	}
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// CronAuth admits requests carrying the shared cron secret as a bearer token.
// Everything is rejected while no secret is configured.
func (m *AuthMiddleware) CronAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if m.cronSecret == "" || token == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(m.cronSecret)) != 1 {
			m.log.Warn().Str("ip", c.IP()).Msg("rejected trigger request")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}

// AuthMiddleware validates the dashboard JWT from the session cookie or the
// Authorization header and stores its claims in the request locals.
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(m.cookieName)
		if tokenString == "" {
			tokenString = bearerToken(c)
		}
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token or cookie",
			})
		}

		claims, err := utils.ValidateToken(m.secretKey, tokenString)
		if err != nil {
			c.Cookie(&fiber.Cookie{
				Name:   m.cookieName,
				Value:  "",
				Path:   "/",
				MaxAge: -1,
			})

			m.log.Debug().Err(err).Msg("token validation failed")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(ClaimsKey, claims)
		return c.Next()
	}
}

// GetClaims returns the claims stored by AuthMiddleware, or nil.
func GetClaims(c *fiber.Ctx) *utils.Claims {
	claims, _ := c.Locals(ClaimsKey).(*utils.Claims)
	return claims
}
