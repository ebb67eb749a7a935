package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, Ping(context.Background(), client))
}

func TestPingReportsOutage(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	mr.Close()
	err = Ping(context.Background(), client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "platform/cache: ping")
}
