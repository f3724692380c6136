package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/freightquote-backend/internal/data/repos"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
	"github.com/yungbote/freightquote-backend/internal/temporalx"
	"github.com/yungbote/freightquote-backend/internal/temporalx/settlement"
)

// Runner hosts the settlement workflow worker.
type Runner struct {
	log    *logger.Logger
	tc     temporalsdkclient.Client
	cfg    temporalx.Config
	quotes repos.QuoteRepo
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config, quotes repos.QuoteRepo) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if quotes == nil {
		return nil, fmt.Errorf("temporal worker missing quote repo")
	}
	return &Runner{log: log.With("component", "TemporalWorker"), tc: tc, cfg: cfg, quotes: quotes}, nil
}

// Run starts the worker, retrying until cfg.WorkerStartMaxWait elapses, and
// blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	w, err := r.start(ctx)
	if err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	r.log.Info("Temporal worker stopped")
	return nil
}

func (r *Runner) start(ctx context.Context) (worker.Worker, error) {
	cfg := r.cfg
	r.log.Info("Starting Temporal worker", "address", cfg.Address, "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)

	if cfg.AutoRegisterNamespace {
		if err := temporalx.EnsureNamespace(ctx, r.log, cfg); err != nil {
			r.log.Warn("Temporal namespace ensure failed; worker will retry on start", "namespace", cfg.Namespace, "error", err)
		}
	}

	deadline := time.Now().Add(cfg.WorkerStartMaxWait)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			r.log.Info("Temporal worker started", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue, "attempts", attempt)
			return w, nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		missing := errors.As(startErr, &nfe)
		if missing && cfg.AutoRegisterNamespace {
			_ = temporalx.EnsureNamespace(ctx, r.log, cfg)
		}
		if cfg.WorkerStartMaxWait <= 0 || time.Now().After(deadline) {
			if missing {
				return nil, fmt.Errorf("temporal namespace not found (namespace=%s): %w", cfg.Namespace, startErr)
			}
			return nil, startErr
		}

		r.log.Warn("Temporal worker failed to start; retrying", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue, "attempt", attempt, "error", startErr)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(temporalx.Backoff(cfg.DialBackoff, cfg.DialBackoffMax, attempt)):
		}
	}
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.cfg.WorkerConcurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.cfg.WorkerConcurrency,
	})
	acts := &settlement.Activities{Log: r.log, Quotes: r.quotes}
	w.RegisterWorkflowWithOptions(settlement.Workflow, workflow.RegisterOptions{Name: settlement.WorkflowName})
	w.RegisterActivityWithOptions(acts.Reconcile, activity.RegisterOptions{Name: settlement.ActivityReconcile})
	return w
}
