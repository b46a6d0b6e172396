// Package admission combines provider health, pricing, and the budget into
// a single pre-flight gate for generation requests.
//
// The Controller answers one question before a generation is dispatched:
// may this request go to this provider right now. It checks, in order,
// circuit breaker availability, then the estimated cost against the budget
// ceilings. After the generation completes the caller reports the outcome
// so the breaker and the cost ledger stay current.
//
//	ctrl := admission.NewController(monitor, tracker, calculator)
//
//	decision := ctrl.Check(ctx, admission.Request{
//	    ProviderID:   "openai",
//	    Model:        "gpt-4o",
//	    InputTokens:  1200,
//	    OutputTokens: 800,
//	})
//	if !decision.Allowed {
//	    // try the next provider in the health ranking
//	}
//
//	// after the upstream call
//	ctrl.RecordOutcome(ctx, admission.Outcome{ ... })
//
// Enforcement is soft: concurrent admissions validated against the same
// spend may together overshoot a ceiling by at most the sum of their
// estimates. The overshoot is bounded by the per-generation maximum.
package admission
