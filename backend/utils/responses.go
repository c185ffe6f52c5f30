package utils

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/nanopets/giftbot/backend/models"
	"github.com/nanopets/giftbot/internal/domain/errs"
	"github.com/nanopets/giftbot/internal/domain/gifts"
)

const principalKey = "user"

// SendJSON sends a JSON response using Fiber
func SendJSON(c *fiber.Ctx, statusCode int, data any) error {
	return c.Status(statusCode).JSON(data)
}

// SendSuccess sends a successful JSON response
func SendSuccess(c *fiber.Ctx, data any, message string) error {
	return SendJSON(c, http.StatusOK, models.NewSuccessResponse(data, message))
}

// SendCreated sends a created resource JSON response
func SendCreated(c *fiber.Ctx, data any, message string) error {
	return SendJSON(c, http.StatusCreated, models.NewSuccessResponse(data, message))
}

// SendError sends an error JSON response
func SendError(c *fiber.Ctx, statusCode int, code, message string, details map[string]string) error {
	return SendJSON(c, statusCode, models.NewErrorResponse(code, message, details))
}

// SendBadRequest sends a bad request error response
func SendBadRequest(c *fiber.Ctx, message string) error {
	return SendError(c, http.StatusBadRequest, "BAD_REQUEST", message, nil)
}

type errorStatus struct {
	status int
	code   string
}

var kindStatus = map[errs.Kind]errorStatus{
	errs.KindAuthFailure:     {http.StatusUnauthorized, "UNAUTHORIZED"},
	errs.KindForbidden:       {http.StatusForbidden, "FORBIDDEN"},
	errs.KindNotFound:        {http.StatusNotFound, "NOT_FOUND"},
	errs.KindInvalidInput:    {http.StatusBadRequest, "BAD_REQUEST"},
	errs.KindInvalidState:    {http.StatusConflict, "CONFLICT"},
	errs.KindExpired:         {http.StatusGone, "EXPIRED"},
	errs.KindRateLimited:     {http.StatusTooManyRequests, "RATE_LIMITED"},
	errs.KindUpstreamFailure: {http.StatusBadGateway, "UPSTREAM_FAILURE"},
	errs.KindInternal:        {http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
}

// StatusOf maps an error kind onto its HTTP status.
func StatusOf(kind errs.Kind) int {
	if s, ok := kindStatus[kind]; ok {
		return s.status
	}
	return http.StatusInternalServerError
}

// SendDomainError renders a workflow error. Rate limited responses carry a
// Retry-After header in whole seconds; retryable failures are flagged in the
// error details.
func SendDomainError(c *fiber.Ctx, err error) error {
	kind := errs.KindOf(err)
	s, ok := kindStatus[kind]
	if !ok {
		s = kindStatus[errs.KindInternal]
	}

	if kind == errs.KindRateLimited {
		if wait := errs.RetryAfterOf(err); wait > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
	}

	var details map[string]string
	if kind.Retryable() {
		details = map[string]string{"retryable": "true"}
	}
	return SendError(c, s.status, s.code, errs.MessageOf(err), details)
}

// SetPrincipal stores the authenticated user on the request.
func SetPrincipal(c *fiber.Ctx, user *gifts.User) {
	c.Locals(principalKey, user)
}

// ExtractPrincipal returns the user stored by the auth middleware.
func ExtractPrincipal(c *fiber.Ctx) (*gifts.User, bool) {
	user, ok := c.Locals(principalKey).(*gifts.User)
	return user, ok && user != nil
}

// GetIPAddress extracts the client IP address
func GetIPAddress(c *fiber.Ctx) string {
	if xff := c.Get(fiber.HeaderXForwardedFor); xff != "" {
		return xff
	}
	if xri := c.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return c.IP()
}
