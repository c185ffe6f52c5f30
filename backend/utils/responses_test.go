package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanopets/giftbot/backend/models"
	"github.com/nanopets/giftbot/internal/domain/errs"
)

func TestSendDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		code       string
		retryable  bool
		retryAfter string
	}{
		{"upstream", errs.Upstream(errors.New("dial tcp"), "generation service unavailable"), http.StatusBadGateway, "UPSTREAM_FAILURE", true, ""},
		{"not found", errs.NotFound("gift not found"), http.StatusNotFound, "NOT_FOUND", false, ""},
		{"invalid state", errs.InvalidState("fusion job is completed"), http.StatusConflict, "CONFLICT", false, ""},
		{"rate limited", errs.RateLimited(90*time.Minute+time.Second, "come back later"), http.StatusTooManyRequests, "RATE_LIMITED", false, "5401"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return SendDomainError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.retryAfter, resp.Header.Get(fiber.HeaderRetryAfter))

			var body models.APIResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.NotNil(t, body.Error)
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Error.Code)
			if tt.retryable {
				assert.Equal(t, "true", body.Error.Details["retryable"])
			} else {
				assert.NotContains(t, body.Error.Details, "retryable")
			}
		})
	}
}
