package settlement

import (
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

func Workflow(ctx workflow.Context, in Input) (Result, error) {
	if strings.TrimSpace(in.EventID) == "" || strings.TrimSpace(in.QuoteID) == "" {
		return Result{}, temporal.NewNonRetryableApplicationError("settlement: missing event or quote id", ErrTypeInvalidInput, nil)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        10,
			NonRetryableErrorTypes: []string{ErrTypeInvalidInput, ErrTypeMismatch},
		},
	})

	var out Result
	if err := workflow.ExecuteActivity(ctx, ActivityReconcile, in).Get(ctx, &out); err != nil {
		return Result{}, err
	}
	workflow.GetLogger(ctx).Info("Settlement reconciled",
		"event_id", out.EventID,
		"quote_id", out.QuoteID,
		"outcome", out.Outcome,
		"quote_status", out.QuoteStatus,
	)
	return out, nil
}
