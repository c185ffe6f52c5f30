package errs

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "plain error", err: base, want: KindInternal},
		{name: "not found", err: NotFound("gift not found"), want: KindNotFound},
		{name: "wrapped by fmt", err: fmt.Errorf("choose: %w", Expired("draft expired")), want: KindExpired},
		{name: "upstream", err: Upstream(base, "generator failed"), want: KindUpstreamFailure},
		{name: "nil", err: nil, want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestUpstreamUnwraps(t *testing.T) {
	base := errors.New("timeout")
	err := Upstream(base, "generator failed")

	assert.ErrorIs(t, err, base)
	assert.True(t, KindUpstreamFailure.Retryable())
	assert.False(t, KindNotFound.Retryable())
}

func TestRateLimitedCarriesWait(t *testing.T) {
	err := fmt.Errorf("start: %w", RateLimited(3*time.Hour, "daily box available in %d hours", 3))

	assert.True(t, Is(err, KindRateLimited))
	assert.Equal(t, 3*time.Hour, RetryAfterOf(err))
	assert.Equal(t, "daily box available in 3 hours", MessageOf(err))
}

func TestMessageOfHidesInternalDetail(t *testing.T) {
	assert.Equal(t, "internal error", MessageOf(errors.New("pq: relation does not exist")))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "invalid_state", KindInvalidState.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}
