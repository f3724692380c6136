package negotiation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

func money(v decimal.Decimal) string { return v.StringFixed(2) }

func initialProposalText(bid, declared decimal.Decimal, reason string) string {
	return fmt.Sprintf("Carrier declared %s on the freight document, above the accepted bid of %s. Reason: %s",
		money(declared), money(bid), reason)
}

func clientApprovedText(v decimal.Decimal) string {
	return fmt.Sprintf("Client approved the value of %s.", money(v))
}

func rejectionText(v decimal.Decimal, reason string, attemptsLeft int) string {
	return fmt.Sprintf("Client rejected the value of %s. Reason: %s. Carrier has %d counter-proposal(s) left.",
		money(v), reason, attemptsLeft)
}

func finalRejectionText(v, original decimal.Decimal, reason string) string {
	return fmt.Sprintf("Client rejected the value of %s. Reason: %s. No counter-proposals left; freight returned at %s.",
		money(v), reason, money(original))
}

func counterProposalText(v decimal.Decimal, reason string, attempt, limit int) string {
	return fmt.Sprintf("Carrier counter-proposal %d/%d: %s. Reason: %s", attempt, limit, money(v), reason)
}

func acceptOriginalText(original decimal.Decimal) string {
	return fmt.Sprintf("Carrier accepted the original value of %s.", money(original))
}

func giveUpText(original decimal.Decimal, reason string) string {
	if reason == "" {
		return fmt.Sprintf("Carrier gave up the negotiation; freight returned at %s.", money(original))
	}
	return fmt.Sprintf("Carrier gave up the negotiation; freight returned at %s. Reason: %s", money(original), reason)
}
