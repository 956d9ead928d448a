// Package fixtures holds the mobile time-series dataset: five phones reporting their data plan
// and connectivity, written at two points in time, plus a set of example filters over it with
// the reports a scan is expected to print.
package fixtures

import (
	"github.com/litetable/litetable-filter/internal/litetable"
	"github.com/litetable/litetable-filter/internal/mutation"
	"time"
)

const (
	CellPlan     = "cell_plan"
	StatsSummary = "stats_summary"
)

// Families returns the column families the dataset writes to.
func Families() []string {
	return []string{CellPlan, StatsSummary}
}

// Clock holds the two timestamps the dataset is written at, in microseconds.
type Clock struct {
	Now     int64
	HourAgo int64
}

// NewClock derives the dataset timestamps from now, truncated to the second.
func NewClock(now time.Time) Clock {
	now = now.Truncate(time.Second)
	return Clock{
		Now:     litetable.Micros(now),
		HourAgo: litetable.Micros(now.Add(-time.Hour)),
	}
}

// Batch returns the mutations that write the dataset.
func Batch(c Clock) mutation.Batch {
	b := mutation.NewBuilder()

	phone(b, "phone#4c410523#20190501", c, "PQ2A.190405.003", 1, 1).
		UpsertBool("phone#4c410523#20190501", CellPlan, "data_plan_01gb", true, c.HourAgo).
		UpsertBool("phone#4c410523#20190501", CellPlan, "data_plan_01gb", false, c.Now).
		UpsertBool("phone#4c410523#20190501", CellPlan, "data_plan_05gb", true, c.Now)

	phone(b, "phone#4c410523#20190502", c, "PQ2A.190405.004", 1, 1).
		UpsertBool("phone#4c410523#20190502", CellPlan, "data_plan_05gb", true, c.Now)

	phone(b, "phone#4c410523#20190505", c, "PQ2A.190406.000", 0, 1).
		UpsertBool("phone#4c410523#20190505", CellPlan, "data_plan_05gb", true, c.Now)

	phone(b, "phone#5c10102#20190501", c, "PQ2A.190401.002", 1, 1).
		UpsertBool("phone#5c10102#20190501", CellPlan, "data_plan_10gb", true, c.Now)

	phone(b, "phone#5c10102#20190502", c, "PQ2A.190406.000", 1, 0).
		UpsertBool("phone#5c10102#20190502", CellPlan, "data_plan_10gb", true, c.Now)

	return b.Batch()
}

func phone(b *mutation.Builder, key string, c Clock, build string, cell, wifi int64) *mutation.Builder {
	return b.
		UpsertInt(key, StatsSummary, "connected_cell", cell, c.Now).
		UpsertInt(key, StatsSummary, "connected_wifi", wifi, c.Now).
		UpsertString(key, StatsSummary, "os_build", build, c.Now)
}

// Rows returns the dataset as it reads back from a table: sorted by key, cells in row order.
func Rows(c Clock) []litetable.Row {
	return Batch(c).Rows()
}
