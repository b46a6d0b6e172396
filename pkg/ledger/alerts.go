package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hookly/helios/pkg/ledger/storage"
)

// alertKey builds the open-alert dedupe key.
func alertKey(alertType, providerID, period string) string {
	return alertType + "|" + providerID + "|" + period
}

// evaluateAlertsLocked checks the post-update spend against the alert
// thresholds and registers any newly fired alerts in the dedupe set. The
// caller must hold the write lock and is responsible for persisting the
// returned alerts.
func (t *Tracker) evaluateAlertsLocked(gen Generation, at time.Time) []*storage.Alert {
	var fired []*storage.Alert

	day := at.Format(dayKeyLayout)
	month := at.Format(monthKeyLayout)

	if t.budget.Daily > 0 && t.budget.DailyAlertThreshold > 0 {
		threshold := t.budget.Daily * t.budget.DailyAlertThreshold
		if spend := t.days[day].cost; spend >= threshold {
			if a := t.raiseLocked(AlertDailyBudget, "", day, spend, threshold, at,
				fmt.Sprintf("daily spend $%.2f reached %.0f%% of the $%.2f budget",
					spend, t.budget.DailyAlertThreshold*100, t.budget.Daily)); a != nil {
				fired = append(fired, a)
			}
		}
	}

	if t.budget.Monthly > 0 && t.budget.MonthlyAlertThreshold > 0 {
		threshold := t.budget.Monthly * t.budget.MonthlyAlertThreshold
		if spend := t.months[month].cost; spend >= threshold {
			if a := t.raiseLocked(AlertMonthlyBudget, "", month, spend, threshold, at,
				fmt.Sprintf("monthly spend $%.2f reached %.0f%% of the $%.2f budget",
					spend, t.budget.MonthlyAlertThreshold*100, t.budget.Monthly)); a != nil {
				fired = append(fired, a)
			}
		}
	}

	if t.budget.PerGenerationMax > 0 && gen.Cost > t.budget.PerGenerationMax {
		if a := t.raiseLocked(AlertPerGenerationMax, gen.ProviderID, day, gen.Cost, t.budget.PerGenerationMax, at,
			fmt.Sprintf("generation on %s cost $%.4f, above the $%.4f per-generation maximum",
				gen.ProviderID, gen.Cost, t.budget.PerGenerationMax)); a != nil {
			fired = append(fired, a)
		}
	}

	return fired
}

// raiseLocked creates an alert unless an unacknowledged one is already open
// for the same (type, provider, period) combination.
func (t *Tracker) raiseLocked(alertType, providerID, period string, current, threshold float64, at time.Time, message string) *storage.Alert {
	key := alertKey(alertType, providerID, period)
	if _, open := t.openAlerts[key]; open {
		return nil
	}

	alert := &storage.Alert{
		ID:          uuid.NewString(),
		Type:        alertType,
		ProviderID:  providerID,
		Message:     message,
		CurrentCost: current,
		Threshold:   threshold,
		Period:      period,
		Timestamp:   at,
	}
	t.openAlerts[key] = alert.ID
	return alert
}

// GetCostAlerts returns alerts ordered newest first. A nil acknowledged
// filter returns all alerts.
func (t *Tracker) GetCostAlerts(ctx context.Context, acknowledged *bool) ([]*storage.Alert, error) {
	if t.store == nil {
		return []*storage.Alert{}, nil
	}
	return t.store.ListAlerts(ctx, acknowledged)
}

// AcknowledgeCostAlert marks an alert as acknowledged, which re-arms the
// alert for its (type, provider, period) combination. Acknowledging an
// already acknowledged alert is a no-op.
func (t *Tracker) AcknowledgeCostAlert(ctx context.Context, id string) error {
	if t.store == nil {
		return ErrAlertNotFound
	}

	alert, err := t.store.GetAlert(ctx, id)
	if err != nil {
		return fmt.Errorf("looking up alert: %w", err)
	}
	if alert == nil {
		return ErrAlertNotFound
	}
	if alert.Acknowledged {
		return nil
	}

	alert.Acknowledged = true
	if err := t.store.UpdateAlert(ctx, alert); err != nil {
		return fmt.Errorf("acknowledging alert: %w", err)
	}

	t.mu.Lock()
	key := alertKey(alert.Type, alert.ProviderID, alert.Period)
	if t.openAlerts[key] == alert.ID {
		delete(t.openAlerts, key)
	}
	t.mu.Unlock()

	t.logger.Info("cost alert acknowledged", "id", id, "type", alert.Type)
	return nil
}
