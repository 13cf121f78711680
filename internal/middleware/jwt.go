package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-chat-api/internal/utils"
)

const bearerPrefix = "Bearer "

var (
	errMissingToken   = errors.New("authorization header missing")
	errMalformedToken = errors.New("invalid authorization header")
)

// JWTProtected returns a middleware that validates JWT bearer tokens and
// stores the token subject under the "user_id" local.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := authenticate(c, secret)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}

// JWTOptional validates a token when one is presented, either as a bearer
// header or a "token" query parameter, and lets anonymous requests through.
// Browsers cannot set headers on websocket upgrades, hence the query form.
func JWTOptional(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := authenticate(c, secret)
		switch {
		case errors.Is(err, errMissingToken):
			return c.Next()
		case err != nil:
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}

func authenticate(c *fiber.Ctx, secret string) (string, error) {
	tokenString, err := tokenFromRequest(c)
	if err != nil {
		return "", err
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	userID := extractUserIDFromClaims(claims)
	if userID == "" {
		return "", errors.New("token subject missing")
	}
	return userID, nil
}

func tokenFromRequest(c *fiber.Ctx) (string, error) {
	authorization := c.Get("Authorization")
	if authorization == "" {
		if query := strings.TrimSpace(c.Query("token")); query != "" {
			return query, nil
		}
		return "", errMissingToken
	}

	if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearerPrefix)) {
		return "", errMalformedToken
	}

	tokenString := strings.TrimSpace(authorization[len(bearerPrefix):])
	if tokenString == "" {
		return "", errors.New("invalid token")
	}
	return tokenString, nil
}

func extractUserIDFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"sub", "user_id", "id"} {
		if value, ok := claims[key]; ok {
			if normalized := normalizeUserID(value); normalized != "" {
				return normalized
			}
		}
	}
	return ""
}

func normalizeUserID(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v < 0 {
			return ""
		}
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}
