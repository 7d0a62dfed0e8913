package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medflow/medpredict-backend/pkg/logger"
	"github.com/medflow/medpredict-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
)

type countingReloader struct {
	calls atomic.Int32
	err   error
}

func (r *countingReloader) Reload(context.Context) (ReloadStatus, error) {
	n := r.calls.Add(1)
	return ReloadStatus{Version: uint64(n)}, r.err
}

func TestReloadScheduler_Ticks(t *testing.T) {
	reloader := &countingReloader{}
	s := NewReloadScheduler(reloader, 10*time.Millisecond, logger.Nop())

	s.Start(context.Background())
	testutil.RequireEventually(t, func() bool { return reloader.calls.Load() >= 3 },
		2*time.Second, 5*time.Millisecond, "scheduler did not reload")
	s.Stop()

	after := reloader.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, reloader.calls.Load(), "no reloads after Stop")
}

func TestReloadScheduler_KeepsRunningAfterFailure(t *testing.T) {
	reloader := &countingReloader{err: errors.New("database down")}
	s := NewReloadScheduler(reloader, 10*time.Millisecond, logger.Nop())

	s.Start(context.Background())
	defer s.Stop()

	testutil.RequireEventually(t, func() bool { return reloader.calls.Load() >= 2 },
		2*time.Second, 5*time.Millisecond, "scheduler stopped after a failed reload")
}

func TestReloadScheduler_Disabled(t *testing.T) {
	reloader := &countingReloader{}
	s := NewReloadScheduler(reloader, 0, logger.Nop())

	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	assert.Zero(t, reloader.calls.Load())
}

func TestReloadScheduler_StopsWithContext(t *testing.T) {
	reloader := &countingReloader{}
	s := NewReloadScheduler(reloader, time.Hour, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	select {
	case <-s.done:
	case <-time.After(time.Second):
		t.Fatal("scheduler goroutine did not exit")
	}
}
