package health

import (
	"sort"
)

// ProviderRanking orders all known providers by composite health score,
// best first. The score is a weighted combination of error rate, uptime,
// and normalized response time:
//
//	score = wErr*(1 - errorRate) + wUp*uptime + wLat*(ref / (ref + avgRT))
//
// Ties are broken by provider ID ascending so the ranking is deterministic.
func (m *Monitor) ProviderRanking() []*Score {
	metrics := m.GetAllHealthMetrics()

	scores := make([]*Score, 0, len(metrics))
	for _, hm := range metrics {
		scores = append(scores, &Score{
			ProviderID: hm.ProviderID,
			Value:      m.score(hm),
			Metrics:    hm,
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Value != scores[j].Value {
			return scores[i].Value > scores[j].Value
		}
		return scores[i].ProviderID < scores[j].ProviderID
	})

	return scores
}

// score computes the composite health score for one provider.
func (m *Monitor) score(hm *Metrics) float64 {
	w := m.cfg.Ranking

	// A provider at the reference latency scores 0.5 on the latency axis.
	ref := float64(m.cfg.LatencyReference)
	latencyScore := 1.0
	if hm.AvgResponseTime > 0 {
		latencyScore = ref / (ref + float64(hm.AvgResponseTime))
	}

	return w.ErrorRate*(1-hm.ErrorRate) + w.Uptime*hm.Uptime + w.Latency*latencyScore
}

// sortStatesByID orders provider state entries by ID ascending.
func sortStatesByID(states []*providerState) {
	sort.Slice(states, func(i, j int) bool {
		return states[i].id < states[j].id
	})
}
