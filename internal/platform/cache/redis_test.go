package cache

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	mr.CheckGet(t, "k", "v")
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client, err := New(context.Background(), Options{Addr: addr})
	require.Error(t, err)
	require.Nil(t, client)

	_, err = New(context.Background(), Options{})
	require.Error(t, err)
}

func TestAsynqOptsSharesServer(t *testing.T) {
	opts := AsynqOpts(Options{Addr: "redis:6379", DB: 2})
	require.Equal(t, "redis:6379", opts.Addr)
	require.Equal(t, 2, opts.DB)
}
