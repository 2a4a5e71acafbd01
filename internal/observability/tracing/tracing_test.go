package tracing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsPII(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/users/:user_id/payouts"),
		attribute.String("mobile_number", "9999999999"),
	)
	require.Len(t, attrs, 1)
	require.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorFlattensChain(t *testing.T) {
	base := errors.New("boom")
	err := SafeError(fmt.Errorf("wrap: %w", base))
	require.EqualError(t, err, "wrap: boom")
	require.False(t, errors.Is(err, base))
	require.Nil(t, SafeError(nil))
}
