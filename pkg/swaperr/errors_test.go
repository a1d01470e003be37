package swaperr

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOfUnwrapsChains(t *testing.T) {
	base := New(KindRateLimit, "too many requests")
	wrapped := errors.Wrap(base, "fetching routes")

	assert.Equal(t, KindRateLimit, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindRateLimit))
	assert.False(t, IsKind(wrapped, KindNetwork))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestRateLimitErrorCarriesItsKind(t *testing.T) {
	var err error = &RateLimitError{RetryAfter: time.Minute}

	assert.Equal(t, KindRateLimit, KindOf(err))
	assert.True(t, IsKind(errors.Wrap(err, "fetching routes"), KindRateLimit))
}

func TestClassifyExecution(t *testing.T) {
	cases := map[string]Kind{
		"user denied transaction signature":        KindExecution,
		"insufficient funds for gas * price":       KindExecution,
		"execution reverted: TRANSFER_FROM_FAILED": KindExecution,
		"nonce too low":                            KindExecution,
		"connection refused":                       KindNetwork,
	}
	for msg, kind := range cases {
		err := ClassifyExecution(errors.New(msg))
		assert.Equal(t, kind, KindOf(err), "message %q", msg)
	}

	// The remedy text is surfaced to the user.
	err := ClassifyExecution(errors.New("insufficient funds for gas * price + value"))
	assert.Contains(t, err.Error(), "top up")
}
