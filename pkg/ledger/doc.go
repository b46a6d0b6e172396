// Package ledger tracks generation spend and enforces the global budget.
//
// The Tracker is the central component. It keeps in-memory spend aggregates
// per UTC calendar day and calendar month, globally and per provider, and
// rebuilds them from the storage backend on startup. Every completed
// generation is appended to the immutable cost record trail.
//
// # Budget Enforcement
//
// WouldExceedBudget answers the pre-flight question: would admitting a
// generation with the given estimated cost push spend strictly past any
// configured ceiling. Ceilings are calendar-aligned, not rolling: daily
// spend resets at UTC midnight and monthly spend at the first of the month.
// A zero ceiling disables that axis.
//
// # Alerts
//
// Crossing an alert threshold raises a persisted alert. At most one open
// alert exists per (type, provider, period) combination; a new alert for
// the same combination is raised only after the previous one is
// acknowledged. Alerts are never deleted.
//
// Recording paths never fail the caller: storage errors are logged and the
// in-memory aggregates stay authoritative for the running process.
package ledger
