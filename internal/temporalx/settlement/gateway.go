package settlement

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	types "github.com/yungbote/freightquote-backend/internal/domain"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

// Gateway hands settlement events to Temporal. It satisfies
// services.SettlementGateway.
type Gateway struct {
	log       *logger.Logger
	tc        temporalsdkclient.Client
	taskQueue string
}

func NewGateway(log *logger.Logger, tc temporalsdkclient.Client, taskQueue string) *Gateway {
	return &Gateway{log: log.With("gateway", "TemporalSettlementGateway"), tc: tc, taskQueue: taskQueue}
}

func WorkflowID(eventID string) string { return "settlement:" + eventID }

func InputFor(ev *types.SettlementEvent) Input {
	in := Input{
		EventID:    ev.ID,
		QuoteID:    ev.QuoteID.String(),
		Outcome:    ev.Outcome,
		FinalValue: ev.FinalValue.StringFixed(2),
	}
	if ev.ThreadID != nil {
		in.ThreadID = ev.ThreadID.String()
	}
	return in
}

func (g *Gateway) Deliver(ctx context.Context, ev *types.SettlementEvent) error {
	if g == nil || g.tc == nil {
		return fmt.Errorf("temporal settlement gateway not configured")
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                                       WorkflowID(ev.ID),
		TaskQueue:                                g.taskQueue,
		WorkflowIDReusePolicy:                    enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	run, err := g.tc.ExecuteWorkflow(ctx, opts, WorkflowName, InputFor(ev))
	if err != nil {
		if isAlreadyStarted(err) {
			g.log.Debug("Settlement workflow already started", "event_id", ev.ID)
			return nil
		}
		return fmt.Errorf("start settlement workflow: %w", err)
	}
	g.log.Info("Settlement workflow started", "event_id", ev.ID, "quote_id", ev.QuoteID, "run_id", run.GetRunID())
	return nil
}

func isAlreadyStarted(err error) bool {
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	return errors.As(err, &started)
}
