package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"chat-room/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSupervisor_RestartsPanickingWorker(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	worker := mocks.NewMockWorker(ctrl)

	var calls atomic.Int32
	// Given a worker that panics on its first run and finishes cleanly after restart
	worker.EXPECT().Run(gomock.Any()).DoAndReturn(
		func(context.Context) error {
			if calls.Add(1) == 1 {
				panic("boom")
			}
			return nil
		}).Times(2)

	sup := NewSupervisor(log).Add(worker)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("Supervisor did not settle after restart")
	}
	req.Equal(int32(2), calls.Load())
}

func TestSupervisor_StopCancelsWorkers(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	worker := mocks.NewMockWorker(ctrl)
	started := make(chan struct{})
	worker.EXPECT().Run(gomock.Any()).DoAndReturn(
		func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return nil
		}).Times(1)

	sup := NewSupervisor(log).Add(worker)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(context.Background())
	}()

	<-started
	sup.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("Supervisor did not stop")
	}
}

func TestSupervisor_ParentContextCancelStopsCrashLoop(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	worker := mocks.NewMockWorker(ctrl)
	var calls atomic.Int32
	// Given a worker that always panics
	worker.EXPECT().Run(gomock.Any()).DoAndReturn(
		func(context.Context) error {
			calls.Add(1)
			panic("always")
		}).MinTimes(1)

	ctx, cancel := context.WithCancel(context.Background())
	sup := NewSupervisor(log).Add(worker)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()

	// Let it crash and restart at least once, then cancel the parent
	time.Sleep(3 * waitTimeBeforeRestart)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("Supervisor kept restarting after cancellation")
	}
	req.GreaterOrEqual(calls.Load(), int32(1))
}
