package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/tinylink/internal/storage"
)

const (
	defaultBatchSize     = 25
	defaultFlushInterval = 10 * time.Second
	defaultQueueSize     = 256
	flushTimeout         = 3 * time.Second
)

type Repo interface {
	SoftDeleteBatch(context.Context, []storage.DeleteTask) error
}

// DeleteTaskWorker buffers soft-delete requests and hands them to the store
// in batches.
type DeleteTaskWorker struct {
	in        chan storage.DeleteTask
	done      chan struct{}
	logger    *zap.Logger
	repo      Repo
	batchSize int
	interval  time.Duration
}

type Option func(*DeleteTaskWorker)

// WithBatchSize flushes as soon as more than n tasks are pending.
func WithBatchSize(n int) Option {
	return func(w *DeleteTaskWorker) { w.batchSize = n }
}

// WithFlushInterval sets how often pending tasks are flushed.
func WithFlushInterval(d time.Duration) Option {
	return func(w *DeleteTaskWorker) { w.interval = d }
}

func NewDeleteTaskWorker(logger *zap.Logger, repo Repo, opts ...Option) *DeleteTaskWorker {
	w := &DeleteTaskWorker{
		in:        make(chan storage.DeleteTask, defaultQueueSize),
		done:      make(chan struct{}),
		logger:    logger,
		repo:      repo,
		batchSize: defaultBatchSize,
		interval:  defaultFlushInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *DeleteTaskWorker) GetInChannel() chan<- storage.DeleteTask {
	return w.in
}

// Done is closed once Run has flushed the remaining tasks and returned.
func (w *DeleteTaskWorker) Done() <-chan struct{} {
	return w.done
}

// Run consumes tasks until ctx is cancelled, then drains what is queued.
func (w *DeleteTaskWorker) Run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var tasks []storage.DeleteTask

	flush := func() {
		if len(tasks) == 0 {
			return
		}
		w.logger.Info("Flushing delete tasks", zap.Int("count", len(tasks)))

		fctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()

		if err := w.repo.SoftDeleteBatch(fctx, tasks); err != nil {
			w.logger.Error("Cannot delete links", zap.Int("count", len(tasks)), zap.Error(err))
		}
		tasks = tasks[:0]
	}

	for {
		select {
		case task := <-w.in:
			tasks = append(tasks, task)
			if len(tasks) > w.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case task := <-w.in:
					tasks = append(tasks, task)
				default:
					flush()
					return
				}
			}
		}
	}
}
