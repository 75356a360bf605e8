package llm

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithStatus(t *testing.T) {
	base := errors.New("upstream")
	require.Same(t, base, WithStatus(0, base))

	err := WithStatus(http.StatusTooManyRequests, base)
	require.ErrorIs(t, err, ErrRateLimited)
	require.ErrorIs(t, err, base)

	err = WithStatus(http.StatusBadGateway, base)
	require.NotErrorIs(t, err, ErrRateLimited)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.StatusCode())
	require.Equal(t, "upstream", err.Error())
}
