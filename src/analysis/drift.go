package analysis

import (
	"sort"

	"rank-observer/src/analysis/core"
	"rank-observer/src/models"
)

// -----------------------------------------------------------------------------

// RankDrift summarizes each row's known ranks, in table order.
func RankDrift(table *models.MEnrichedTable) []models.MRankDrift {
	if table == nil {
		return nil
	}

	out := make([]models.MRankDrift, 0, len(table.Rows))
	for _, row := range table.Rows {
		out = append(out, driftOf(row))
	}
	return out
}

// -----------------------------------------------------------------------------

func driftOf(row models.MRankedQuote) models.MRankDrift {
	ticks := make([]int, 0, len(row.Ranks))
	for t := range row.Ranks {
		ticks = append(ticks, t)
	}
	sort.Ints(ticks)

	d := models.MRankDrift{Symbol: row.Symbol, Observations: len(ticks)}
	if len(ticks) == 0 {
		return d
	}

	xs := make([]float64, len(ticks))
	ranks := make([]float64, len(ticks))
	for i, t := range ticks {
		r := row.Ranks[t]
		xs[i] = float64(t)
		ranks[i] = float64(r)
		if i == 0 || r < d.BestRank {
			d.BestRank = r
		}
		if r > d.WorstRank {
			d.WorstRank = r
		}
	}

	d.FirstRank = row.Ranks[ticks[0]]
	d.LatestRank = row.Ranks[ticks[len(ticks)-1]]
	d.MeanRank, d.StdRank = core.MeanStd(ranks)
	d.Trend = core.Correlation(xs, ranks)

	// Change against the immediately preceding tick only
	latest := ticks[len(ticks)-1]
	if prev, ok := row.Ranks[latest-1]; ok {
		change := prev - d.LatestRank
		d.LatestChange = &change
	}
	return d
}
