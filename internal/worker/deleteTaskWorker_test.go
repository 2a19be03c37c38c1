package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/atinyakov/tinylink/internal/storage"
	"github.com/atinyakov/tinylink/internal/worker"
)

type MockRepo struct {
	mu     sync.Mutex
	Calls  [][]storage.DeleteTask
	FailOn int
	CallNo int
}

func (m *MockRepo) SoftDeleteBatch(_ context.Context, tasks []storage.DeleteTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := make([]storage.DeleteTask, len(tasks))
	copy(batch, tasks)
	m.Calls = append(m.Calls, batch)
	m.CallNo++
	if m.CallNo == m.FailOn {
		return errors.New("forced failure")
	}
	return nil
}

func (m *MockRepo) calls() [][]storage.DeleteTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]storage.DeleteTask(nil), m.Calls...)
}

func TestRun_BatchTrigger(t *testing.T) {
	repo := &MockRepo{}
	w := worker.NewDeleteTaskWorker(zap.NewNop(), repo, worker.WithFlushInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	in := w.GetInChannel()
	for i := 0; i < 26; i++ {
		in <- storage.DeleteTask{Code: "ABCDEF1", OwnerID: "user"}
	}

	require.Eventually(t, func() bool { return len(repo.calls()) == 1 }, time.Second, 10*time.Millisecond)
	require.Len(t, repo.calls()[0], 26)
}

func TestRun_TimerTrigger(t *testing.T) {
	repo := &MockRepo{}
	w := worker.NewDeleteTaskWorker(zap.NewNop(), repo, worker.WithFlushInterval(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	in := w.GetInChannel()
	in <- storage.DeleteTask{Code: "ABCDEF1", OwnerID: "user"}
	in <- storage.DeleteTask{Code: "ABCDEF2", OwnerID: "user"}

	require.Eventually(t, func() bool { return len(repo.calls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Len(t, repo.calls()[0], 2)
}

func TestRun_FlushOnShutdown(t *testing.T) {
	repo := &MockRepo{}
	w := worker.NewDeleteTaskWorker(zap.NewNop(), repo, worker.WithFlushInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	w.GetInChannel() <- storage.DeleteTask{Code: "ABCDEF1", OwnerID: "user"}
	cancel()

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	calls := repo.calls()
	require.Len(t, calls, 1)
	require.Equal(t, "ABCDEF1", calls[0][0].Code)
}

func TestRun_ErrorClearsBuffer(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	repo := &MockRepo{FailOn: 1}
	w := worker.NewDeleteTaskWorker(zap.New(core), repo, worker.WithBatchSize(2), worker.WithFlushInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	in := w.GetInChannel()
	for i := 0; i < 6; i++ {
		in <- storage.DeleteTask{Code: "ABCDEF1", OwnerID: "user"}
	}

	require.Eventually(t, func() bool { return len(repo.calls()) == 2 }, time.Second, 10*time.Millisecond)
	for _, batch := range repo.calls() {
		require.Len(t, batch, 3)
	}
	require.Equal(t, 1, logs.FilterMessage("Cannot delete links").Len())
}
