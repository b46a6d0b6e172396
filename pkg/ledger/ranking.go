package ledger

import "sort"

// ProviderCostRanking ranks providers by cost efficiency over the current
// month. Lower is better.
//
// With no quality weights the score is the average cost per generation.
// A quality weight above zero divides the average cost, so a provider
// that costs twice as much but is twice as good ranks the same. Providers
// missing from the quality map use a weight of 1. Ties break by provider
// ID so the ordering is deterministic.
func (t *Tracker) ProviderCostRanking(quality map[string]float64) []*CostRank {
	t.mu.RLock()
	defer t.mu.RUnlock()

	monthKey := t.now().UTC().Format(monthKeyLayout)

	ranks := make([]*CostRank, 0, len(t.providers))
	for id, ps := range t.providers {
		a := ps.months[monthKey]
		if a == nil || a.generations == 0 {
			continue
		}
		avg := a.cost / float64(a.generations)

		q := 1.0
		if w, ok := quality[id]; ok && w > 0 {
			q = w
		}

		ranks = append(ranks, &CostRank{
			ProviderID: id,
			AvgCost:    avg,
			Quality:    q,
			Value:      avg / q,
		})
	}

	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Value != ranks[j].Value {
			return ranks[i].Value < ranks[j].Value
		}
		return ranks[i].ProviderID < ranks[j].ProviderID
	})

	return ranks
}
