package settlement

const (
	WorkflowName      = "settlement_reconcile"
	ActivityReconcile = "settlement_reconcile_quote"
)

// Input is the payload of one settlement workflow. The workflow ID is the
// settlement event ID, so a redelivered event never starts a second run.
type Input struct {
	EventID    string `json:"event_id"`
	QuoteID    string `json:"quote_id"`
	ThreadID   string `json:"thread_id,omitempty"`
	Outcome    string `json:"outcome"`
	FinalValue string `json:"final_value"`
}

type Result struct {
	EventID     string `json:"event_id"`
	QuoteID     string `json:"quote_id"`
	Outcome     string `json:"outcome"`
	QuoteStatus string `json:"quote_status"`
	FinalValue  string `json:"final_value"`
}
