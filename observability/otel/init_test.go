package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" api-key = secret ,broken, =x,tenant=a=b,")
	require.Equal(t, map[string]string{"api-key": "secret", "tenant": "a=b"}, got)
	require.Empty(t, ParseHeaders(""))
}

func TestInitDisabled(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)

	shutdown, err := Init(context.Background(), Config{ServiceName: "auctiond"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
