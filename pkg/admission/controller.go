package admission

import (
	"context"
	"log/slog"
	"time"

	"hookly/helios/pkg/costs"
	"hookly/helios/pkg/health"
	"hookly/helios/pkg/ledger"
)

// Request describes a generation about to be dispatched.
type Request struct {
	// ProviderID is the provider the orchestrator wants to use.
	ProviderID string

	// Model is the model to price the request against.
	Model string

	// UserID attributes the generation to a user, if known.
	UserID string

	// InputTokens is the expected prompt token count.
	InputTokens int

	// OutputTokens is the expected completion token count.
	OutputTokens int
}

// Decision is the result of a pre-flight admission check.
type Decision struct {
	// Allowed reports whether the generation may proceed.
	Allowed bool `json:"allowed"`

	// Reason explains a rejection; empty when allowed.
	Reason string `json:"reason,omitempty"`

	// EstimatedCost is the projected cost in USD used for the budget
	// check. Zero when no pricing was found.
	EstimatedCost float64 `json:"estimated_cost"`
}

// Outcome reports a completed (or failed) generation back to the gate.
type Outcome struct {
	// ProviderID is the provider that served the request.
	ProviderID string

	// Model is the model used.
	Model string

	// UserID attributes the generation to a user, if known.
	UserID string

	// Success reports whether the upstream call succeeded.
	Success bool

	// Err is the failure cause when Success is false.
	Err error

	// ResponseTime is the upstream latency of a successful call.
	ResponseTime time.Duration

	// InputTokens is the actual prompt token count.
	InputTokens int

	// OutputTokens is the actual completion token count.
	OutputTokens int

	// Cost is the actual cost in USD. If zero on success, the cost is
	// computed from the actual token counts and the pricing table.
	Cost float64
}

// Controller is the admission gate composing the health monitor, the cost
// ledger, and the pricing calculator.
type Controller struct {
	monitor    *health.Monitor
	tracker    *ledger.Tracker
	calculator *costs.Calculator
	logger     *slog.Logger
}

// NewController creates an admission controller.
func NewController(monitor *health.Monitor, tracker *ledger.Tracker, calculator *costs.Calculator) *Controller {
	return &Controller{
		monitor:    monitor,
		tracker:    tracker,
		calculator: calculator,
		logger:     slog.Default().With("component", "admission"),
	}
}

// Check runs the pre-flight admission checks for a generation.
//
// Availability is checked first so an open breaker never consumes a budget
// check, and a budget rejection releases any half-open probe claim the
// availability check took. A request without pricing information passes the
// budget check with a zero estimate; missing pricing must not block traffic.
func (c *Controller) Check(ctx context.Context, req Request) Decision {
	if !c.monitor.IsProviderAvailable(req.ProviderID) {
		return Decision{
			Allowed: false,
			Reason:  "provider unavailable: circuit breaker open",
		}
	}

	var estimated float64
	est, err := c.calculator.EstimateGenerationCost(req.ProviderID, req.Model, req.InputTokens, req.OutputTokens)
	if err != nil {
		c.logger.Warn("no pricing for generation, admitting with zero estimate",
			"provider", req.ProviderID,
			"model", req.Model,
			"error", err,
		)
	} else {
		estimated = est.TotalCost
	}

	if exceeded, reason := c.tracker.WouldExceedBudget(estimated); exceeded {
		// The availability check may have claimed the half-open probe for
		// this request. Nothing will be dispatched, so no outcome will be
		// recorded; release the claim for the next caller.
		c.monitor.ReleaseProbe(req.ProviderID)
		return Decision{
			Allowed:       false,
			Reason:        reason,
			EstimatedCost: estimated,
		}
	}

	return Decision{
		Allowed:       true,
		EstimatedCost: estimated,
	}
}

// RecordOutcome reports a completed generation. Successful calls update the
// breaker and append to the cost ledger; failures trip the breaker only.
// Failed generations are assumed not billed.
func (c *Controller) RecordOutcome(ctx context.Context, outcome Outcome) {
	if !outcome.Success {
		c.monitor.RecordFailure(ctx, outcome.ProviderID, outcome.Err)
		return
	}

	c.monitor.RecordSuccess(ctx, outcome.ProviderID, outcome.ResponseTime)

	cost := outcome.Cost
	if cost == 0 {
		est, err := c.calculator.EstimateGenerationCost(outcome.ProviderID, outcome.Model, outcome.InputTokens, outcome.OutputTokens)
		if err != nil {
			c.logger.Warn("no pricing for completed generation, recording zero cost",
				"provider", outcome.ProviderID,
				"model", outcome.Model,
				"error", err,
			)
		} else {
			cost = est.TotalCost
		}
	}

	c.tracker.RecordGenerationCost(ctx, ledger.Generation{
		ProviderID:   outcome.ProviderID,
		Model:        outcome.Model,
		UserID:       outcome.UserID,
		InputTokens:  outcome.InputTokens,
		OutputTokens: outcome.OutputTokens,
		Cost:         cost,
	})
}
