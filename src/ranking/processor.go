package ranking

import (
	"sort"
	"strings"

	"rank-observer/src/helpers"
	"rank-observer/src/logger"
	"rank-observer/src/models"
)

// RequiredColumns must all be present for a snapshot to be ranked.
var RequiredColumns = []string{
	models.ColSymbol,
	models.ColOpen,
	models.ColDayHigh,
	models.ColDayLow,
	models.ColYearHigh,
	models.ColYearLow,
	models.ColPChange,
}

type rankEntry struct {
	tick int
	rank int
}

// -----------------------------------------------------------------------------

// Processor ranks successive snapshots of one universe and remembers the
// ranks held by the symbols of the latest snapshot. It is not safe for concurrent use; callers feed it
// one snapshot at a time.
type Processor struct {
	uploadCount int
	history     map[string][]rankEntry
	logger      *logger.Logger
}

// -----------------------------------------------------------------------------

func NewProcessor(log *logger.Logger) *Processor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Processor{
		history: make(map[string][]rankEntry),
		logger:  log,
	}
}

// -----------------------------------------------------------------------------

// Tick returns the number of snapshots processed successfully so far.
func (p *Processor) Tick() int {
	return p.uploadCount
}

// -----------------------------------------------------------------------------

// Process validates the snapshot, ranks it by pChange, merges the rank
// history and derives the status columns. A rejected snapshot leaves the
// processor untouched. The caller's snapshot is never modified.
func (p *Processor) Process(snapshot *models.MSnapshot) (*models.MEnrichedTable, error) {
	if snapshot == nil {
		snapshot = &models.MSnapshot{}
	}

	// 1. Normalize labels
	columns, records := normalize(snapshot)

	// 2. Validate
	if missing := missingColumns(columns); len(missing) > 0 {
		p.logger.Warning("[%s] Snapshot rejected, missing columns: %s", snapshot.Source, strings.Join(missing, ", "))
		return nil, helpers.NewSchemaError(missing)
	}

	// 3. New tick
	p.uploadCount++
	tick := p.uploadCount

	// 4. Stable sort, invalid pChange last
	quotes := make([]models.MQuote, len(records))
	for i, rec := range records {
		quotes[i] = NewQuote(rec)
	}
	sort.SliceStable(quotes, func(i, j int) bool {
		a, b := quotes[i].PChange, quotes[j].PChange
		if !a.Valid {
			return false
		}
		if !b.Valid {
			return true
		}
		return a.Decimal.GreaterThan(b.Decimal)
	})

	// 5-6. Rank by position and attach what each symbol held before
	rows := make([]models.MRankedQuote, len(quotes))
	for i, q := range quotes {
		past := p.history[q.Symbol]
		ranks := make(map[int]int, len(past)+1)
		for _, e := range past {
			ranks[e.tick] = e.rank
		}
		ranks[tick] = i + 1

		rows[i] = models.MRankedQuote{
			MQuote:           q,
			Ranks:            ranks,
			Action:           DeriveAction(q),
			WeekHigh52Status: WeekHighStatus(q),
			WeekLow52Status:  WeekLowStatus(q),
		}
	}

	// 7. Replace the history with the symbols of this snapshot, first occurrence wins.
	// A symbol missing from this tick forgets its past ranks.
	next := make(map[string][]rankEntry, len(rows))
	for i, r := range rows {
		if _, dup := next[r.Symbol]; dup {
			p.logger.Warning("[%s] Duplicate symbol %q on tick %d, keeping first rank in history", snapshot.Source, r.Symbol, tick)
			continue
		}
		past := p.history[r.Symbol]
		entries := make([]rankEntry, len(past), len(past)+1)
		copy(entries, past)
		next[r.Symbol] = append(entries, rankEntry{tick: tick, rank: i + 1})
	}
	p.history = next

	table := &models.MEnrichedTable{
		Source:    snapshot.Source,
		Tick:      tick,
		FetchedAt: snapshot.FetchedAt,
		Columns:   outputColumns(columns, tick),
		Rows:      rows,
	}

	p.logger.Debug("[%s] Ranked %d rows on tick %d", snapshot.Source, len(rows), tick)
	return table, nil
}

// -----------------------------------------------------------------------------

// normalize trims column labels and copies every record under the trimmed keys.
// Input columns that clash with derived names are dropped.
func normalize(snapshot *models.MSnapshot) ([]string, []map[string]interface{}) {
	records := make([]map[string]interface{}, len(snapshot.Records))
	for i, rec := range snapshot.Records {
		out := make(map[string]interface{}, len(rec))
		for k, v := range rec {
			key := strings.TrimSpace(k)
			if isDerived(key) {
				continue
			}
			out[key] = v
		}
		records[i] = out
	}

	source := snapshot.Columns
	if len(source) == 0 {
		source = models.CollectColumns(snapshot.Records)
	}

	seen := make(map[string]struct{}, len(source))
	columns := make([]string, 0, len(source))
	for _, c := range source {
		c = strings.TrimSpace(c)
		if c == "" || isDerived(c) {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		columns = append(columns, c)
	}

	return columns, records
}

// -----------------------------------------------------------------------------

func isDerived(column string) bool {
	switch column {
	case models.ColAction, models.ColWeekHigh52, models.ColWeekLow52:
		return true
	}
	_, ok := models.ParseRankColumn(column)
	return ok
}

// -----------------------------------------------------------------------------

func missingColumns(columns []string) []string {
	present := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		present[c] = struct{}{}
	}

	var missing []string
	for _, req := range RequiredColumns {
		if _, ok := present[req]; !ok {
			missing = append(missing, req)
		}
	}
	return missing
}

// -----------------------------------------------------------------------------

// outputColumns lays out inputs, then Rank tick..1, then the status columns.
func outputColumns(inputs []string, tick int) []string {
	cols := make([]string, 0, len(inputs)+tick+3)
	cols = append(cols, inputs...)
	for k := tick; k >= 1; k-- {
		cols = append(cols, models.RankColumn(k))
	}
	return append(cols, models.ColAction, models.ColWeekHigh52, models.ColWeekLow52)
}
