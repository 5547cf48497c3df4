package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	purged int
	err    error
	calls  int
}

func (f *fakePurger) PurgeExpired(context.Context) (int, error) {
	f.calls++
	return f.purged, f.err
}

func TestHandleTrashSweep(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	purger := &fakePurger{purged: 3}
	handler := HandleTrashSweep(purger, logger)
	require.NoError(t, handler(context.Background(), NewTrashSweepTask()))
	require.Equal(t, 1, purger.calls)

	failing := &fakePurger{err: errors.New("redis down")}
	handler = HandleTrashSweep(failing, logger)
	require.Error(t, handler(context.Background(), NewTrashSweepTask()))
}
