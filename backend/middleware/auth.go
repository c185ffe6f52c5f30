package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/nanopets/giftbot/backend/handlers"
	"github.com/nanopets/giftbot/backend/models"
	"github.com/nanopets/giftbot/backend/utils"
	"github.com/nanopets/giftbot/internal/domain/errs"
)

const (
	HeaderInitData = "X-Init-Data"
	authScheme     = "tma "
)

// AuthRequired verifies the session token and stores the resolved user in
// the request locals.
func AuthRequired(webApp *handlers.WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractToken(c)

		identity, err := webApp.Authenticator.Authenticate(token)
		if err != nil {
			slog.Debug("Auth required: token rejected",
				slog.String("type", "http"),
				slog.String("path", c.Path()),
				slog.String("reason", errs.MessageOf(err)))
			return utils.SendDomainError(c, err)
		}

		user, err := webApp.Gifts.ResolvePrincipal(c.UserContext(), identity)
		if err != nil {
			return utils.SendDomainError(c, err)
		}

		utils.SetPrincipal(c, user)
		slog.Debug("Auth middleware: user authenticated",
			slog.String("type", "http"),
			slog.String("user_id", user.ID),
			slog.Int64("platform_id", user.PlatformID))

		return c.Next()
	}
}

// extractToken looks in the Authorization header, the X-Init-Data header,
// the initData query parameter and finally the JSON body.
func extractToken(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); len(h) > len(authScheme) && strings.EqualFold(h[:len(authScheme)], authScheme) {
		return strings.TrimSpace(h[len(authScheme):])
	}
	if h := c.Get(HeaderInitData); h != "" {
		return h
	}
	if q := c.Query("initData"); q != "" {
		return q
	}

	if len(c.Body()) > 0 && strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		var req models.AuthRequest
		if err := c.BodyParser(&req); err == nil {
			return req.InitData
		}
	}
	return ""
}
