package interfaces

import (
	"context"
)

// BudgetGate is the hook into the AI-budget collaborator. The orchestrator
// consults it before incurring any model cost; a blocked company fails fast
// with ErrExtractionBlocked.
type BudgetGate interface {
	// ExtractionAllowed returns nil when the company may incur model
	// cost, or ErrExtractionBlocked (possibly wrapped) when pre-emptively
	// blocked.
	ExtractionAllowed(ctx context.Context, companyID string) error
}

// AllowAllBudget is the default gate for deployments without the budget
// collaborator wired in.
type AllowAllBudget struct{}

func (AllowAllBudget) ExtractionAllowed(ctx context.Context, companyID string) error {
	return nil
}
