package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/socialapp/config"
	"github.com/user/socialapp/store/memstore"
)

type closeRecorder struct {
	*memstore.Store
	closed      bool
	hadDeadline bool
	err         error
}

func (c *closeRecorder) Close(ctx context.Context) error {
	c.closed = true
	_, c.hadDeadline = ctx.Deadline()
	return c.err
}

func TestCloseStore(t *testing.T) {
	s := &closeRecorder{Store: memstore.New(), err: errors.New("disconnect failed")}
	closeStore(s)

	assert.True(t, s.closed)
	assert.True(t, s.hadDeadline, "close is bounded by the shutdown timeout")
}

func TestOpenStore(t *testing.T) {
	s, err := openStore(context.Background(), &config.AppConfig{Store: &config.StoreConfig{Driver: config.DriverMemory}})
	require.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))

	_, err = openStore(context.Background(), &config.AppConfig{Store: &config.StoreConfig{Driver: "sqlite"}})
	assert.ErrorContains(t, err, "unknown store driver")
}
