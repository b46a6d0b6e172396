// Package costs provides cost estimation for AI generation requests based on
// per-provider pricing tables.
//
// # Pricing Resolution
//
// Pricing is configured per provider and model in USD per 1000 tokens, with
// separate prompt (input) and completion (output) rates. Lookup order:
//
//  1. Exact provider and model match
//  2. Model prefix match (e.g., "gpt-4" matches "gpt-4-0613")
//  3. The "default"/"default" fallback entry
//
// # Hot Reload
//
// The Calculator supports swapping the pricing table at runtime via
// UpdatePricing; estimation is a pure function of the current table and has
// no side effects.
package costs
