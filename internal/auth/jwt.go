package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates HS256 bearer tokens issued by the marketplace auth
// service and extracts the subject user id.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret required")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify returns the subject (user id) on success.
func (v *Verifier) Verify(token string) (string, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	tok, err := parser.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return "", errors.New("invalid token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("sub missing")
	}
	return sub, nil
}

// Middleware authenticates the request and stores the caller id in
// c.Locals("user_id").
func Middleware(v *Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get("Authorization")
		if h == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "missing auth"})
		}
		token := strings.TrimPrefix(h, "Bearer ")
		if token == h {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "invalid auth"})
		}
		sub, err := v.Verify(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "invalid token"})
		}
		c.Locals("user_id", sub)
		return c.Next()
	}
}

// CallerID returns the authenticated user id set by Middleware.
func CallerID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
