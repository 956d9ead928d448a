package fixtures

import (
	"fmt"
	"github.com/litetable/litetable-filter/internal/filter"
	"github.com/litetable/litetable-filter/internal/litetable"
)

// Example is a named filter over the dataset together with the report a scan must produce.
type Example struct {
	Name        string
	Description string
	Filter      filter.Filter

	// Sampled examples are not deterministic and have no expected report.
	Sampled bool

	// report is a format string taking the two dataset timestamps.
	report string
	clock  Clock
}

// Report returns the expected scan report of the example.
func (e Example) Report() string {
	if e.report == "" {
		return ""
	}
	return fmt.Sprintf(e.report, e.clock.Now, e.clock.HourAgo) + "\n"
}

// Lookup returns the example with the given name.
func Lookup(c Clock, name string) (Example, bool) {
	for _, e := range Examples(c) {
		if e.Name == name {
			return e, true
		}
	}
	return Example{}, false
}

// Examples returns the canonical filters over the dataset written at c.
func Examples(c Clock) []Example {
	return []Example{
		{
			Name:        "row_sample",
			Description: "Keeps each row with a probability of 0.75.",
			Filter:      filter.RowSample(0.75),
			Sampled:     true,
			clock:       c,
		},
		{
			Name:        "row_regex",
			Description: "Rows whose key ends in #20190501.",
			Filter:      filter.RowKeyRegex(".*#20190501$"),
			clock:       c,
			report:      `Reading data for row phone#4c410523#20190501
Column Family cell_plan
	data_plan_01gb:  @%[1]d
	data_plan_01gb: 1 @%[2]d
	data_plan_05gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190405.003 @%[1]d

Reading data for row phone#5c10102#20190501
Column Family cell_plan
	data_plan_10gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190401.002 @%[1]d`,
		},
		{
			Name:        "cells_per_column",
			Description: "The two newest cells of every column.",
			Filter:      filter.CellsPerColumn(2),
			clock:       c,
			report:      `Reading data for row phone#4c410523#20190501
Column Family cell_plan
	data_plan_01gb:  @%[1]d
	data_plan_01gb: 1 @%[2]d
	data_plan_05gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190405.003 @%[1]d

Reading data for row phone#4c410523#20190502
Column Family cell_plan
	data_plan_05gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190405.004 @%[1]d

Reading data for row phone#4c410523#20190505
Column Family cell_plan
	data_plan_05gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 0 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190406.000 @%[1]d

Reading data for row phone#5c10102#20190501
Column Family cell_plan
	data_plan_10gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190401.002 @%[1]d

Reading data for row phone#5c10102#20190502
Column Family cell_plan
	data_plan_10gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 0 @%[1]d
	os_build: PQ2A.190406.000 @%[1]d`,
		},
		{
			Name:        "cells_per_row",
			Description: "The first two cells of every row.",
			Filter:      filter.CellsPerRow(2),
			clock:       c,
			report:      `Reading data for row phone#4c410523#20190501
Column Family cell_plan
	data_plan_01gb:  @%[1]d
	data_plan_01gb: 1 @%[2]d

Reading data for row phone#4c410523#20190502
Column Family cell_plan
	data_plan_05gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d

Reading data for row phone#4c410523#20190505
Column Family cell_plan
	data_plan_05gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 0 @%[1]d

Reading data for row phone#5c10102#20190501
Column Family cell_plan
	data_plan_10gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d

Reading data for row phone#5c10102#20190502
Column Family cell_plan
	data_plan_10gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d`,
		},
		{
			Name:        "cells_per_row_offset",
			Description: "Everything but the first two cells of every row.",
			Filter:      filter.CellsPerRowOffset(2),
			clock:       c,
			report:      `Reading data for row phone#4c410523#20190501
Column Family cell_plan
	data_plan_05gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190405.003 @%[1]d

Reading data for row phone#4c410523#20190502
Column Family stats_summary
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190405.004 @%[1]d

Reading data for row phone#4c410523#20190505
Column Family stats_summary
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190406.000 @%[1]d

Reading data for row phone#5c10102#20190501
Column Family stats_summary
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190401.002 @%[1]d

Reading data for row phone#5c10102#20190502
Column Family stats_summary
	connected_wifi: 0 @%[1]d
	os_build: PQ2A.190406.000 @%[1]d`,
		},
		{
			Name:        "family_regex",
			Description: "Cells of the stats families.",
			Filter:      filter.FamilyRegex("stats_.*$"),
			clock:       c,
			report:      `Reading data for row phone#4c410523#20190501
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190405.003 @%[1]d

Reading data for row phone#4c410523#20190502
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190405.004 @%[1]d

Reading data for row phone#4c410523#20190505
Column Family stats_summary
	connected_cell: 0 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190406.000 @%[1]d

Reading data for row phone#5c10102#20190501
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190401.002 @%[1]d

Reading data for row phone#5c10102#20190502
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 0 @%[1]d
	os_build: PQ2A.190406.000 @%[1]d`,
		},
		{
			Name:        "qualifier_regex",
			Description: "The connectivity columns.",
			Filter:      filter.QualifierRegex("connected_.*$"),
			clock:       c,
			report:      `Reading data for row phone#4c410523#20190501
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d

Reading data for row phone#4c410523#20190502
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d

Reading data for row phone#4c410523#20190505
Column Family stats_summary
	connected_cell: 0 @%[1]d
	connected_wifi: 1 @%[1]d

Reading data for row phone#5c10102#20190501
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d

Reading data for row phone#5c10102#20190502
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 0 @%[1]d`,
		},
		{
			Name:        "column_range",
			Description: "Data plans from 1gb up to, but excluding, 10gb.",
			Filter:      filter.ColumnRange(CellPlan, []byte("data_plan_01gb"), []byte("data_plan_10gb")),
			clock:       c,
			report:      `Reading data for row phone#4c410523#20190501
Column Family cell_plan
	data_plan_01gb:  @%[1]d
	data_plan_01gb: 1 @%[2]d
	data_plan_05gb: 1 @%[1]d

Reading data for row phone#4c410523#20190502
Column Family cell_plan
	data_plan_05gb: 1 @%[1]d

Reading data for row phone#4c410523#20190505
Column Family cell_plan
	data_plan_05gb: 1 @%[1]d`,
		},
		{
			Name:        "value_range",
			Description: "OS builds from PQ2A.190405 up to PQ2A.190406.",
			Filter:      filter.ValueRange([]byte("PQ2A.190405"), []byte("PQ2A.190406")),
			clock:       c,
			report:      `Reading data for row phone#4c410523#20190501
Column Family stats_summary
	os_build: PQ2A.190405.003 @%[1]d

Reading data for row phone#4c410523#20190502
Column Family stats_summary
	os_build: PQ2A.190405.004 @%[1]d`,
		},
		{
			Name:        "value_regex",
			Description: "Values that look like an OS build.",
			Filter:      filter.ValueRegex("PQ2A.*$"),
			clock:       c,
			report:      `Reading data for row phone#4c410523#20190501
Column Family stats_summary
	os_build: PQ2A.190405.003 @%[1]d

Reading data for row phone#4c410523#20190502
Column Family stats_summary
	os_build: PQ2A.190405.004 @%[1]d

Reading data for row phone#4c410523#20190505
Column Family stats_summary
	os_build: PQ2A.190406.000 @%[1]d

Reading data for row phone#5c10102#20190501
Column Family stats_summary
	os_build: PQ2A.190401.002 @%[1]d

Reading data for row phone#5c10102#20190502
Column Family stats_summary
	os_build: PQ2A.190406.000 @%[1]d`,
		},
		{
			Name:        "timestamp_range",
			Description: "Cells written an hour ago. The end bound is one tick above the cell.",
			Filter:      filter.TimestampRange(0, c.HourAgo+litetable.Granularity),
			clock:       c,
			report:      `Reading data for row phone#4c410523#20190501
Column Family cell_plan
	data_plan_01gb: 1 @%[2]d`,
		},
		{
			Name:        "block_all",
			Description: "Nothing.",
			Filter:      filter.BlockAll(),
			clock:       c,
		},
		{
			Name:        "pass_all",
			Description: "Everything.",
			Filter:      filter.PassAll(),
			clock:       c,
			report:      `Reading data for row phone#4c410523#20190501
Column Family cell_plan
	data_plan_01gb:  @%[1]d
	data_plan_01gb: 1 @%[2]d
	data_plan_05gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190405.003 @%[1]d

Reading data for row phone#4c410523#20190502
Column Family cell_plan
	data_plan_05gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190405.004 @%[1]d

Reading data for row phone#4c410523#20190505
Column Family cell_plan
	data_plan_05gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 0 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190406.000 @%[1]d

Reading data for row phone#5c10102#20190501
Column Family cell_plan
	data_plan_10gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190401.002 @%[1]d

Reading data for row phone#5c10102#20190502
Column Family cell_plan
	data_plan_10gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 0 @%[1]d
	os_build: PQ2A.190406.000 @%[1]d`,
		},
		{
			Name:        "strip_value",
			Description: "Every cell with its value removed.",
			Filter:      filter.StripValue(),
			clock:       c,
			report:      `Reading data for row phone#4c410523#20190501
Column Family cell_plan
	data_plan_01gb:  @%[1]d
	data_plan_01gb:  @%[2]d
	data_plan_05gb:  @%[1]d
Column Family stats_summary
	connected_cell:  @%[1]d
	connected_wifi:  @%[1]d
	os_build:  @%[1]d

Reading data for row phone#4c410523#20190502
Column Family cell_plan
	data_plan_05gb:  @%[1]d
Column Family stats_summary
	connected_cell:  @%[1]d
	connected_wifi:  @%[1]d
	os_build:  @%[1]d

Reading data for row phone#4c410523#20190505
Column Family cell_plan
	data_plan_05gb:  @%[1]d
Column Family stats_summary
	connected_cell:  @%[1]d
	connected_wifi:  @%[1]d
	os_build:  @%[1]d

Reading data for row phone#5c10102#20190501
Column Family cell_plan
	data_plan_10gb:  @%[1]d
Column Family stats_summary
	connected_cell:  @%[1]d
	connected_wifi:  @%[1]d
	os_build:  @%[1]d

Reading data for row phone#5c10102#20190502
Column Family cell_plan
	data_plan_10gb:  @%[1]d
Column Family stats_summary
	connected_cell:  @%[1]d
	connected_wifi:  @%[1]d
	os_build:  @%[1]d`,
		},
		{
			Name:        "apply_label",
			Description: "Every cell labelled.",
			Filter:      filter.Label("labelled"),
			clock:       c,
			report:      `Reading data for row phone#4c410523#20190501
Column Family cell_plan
	data_plan_01gb:  @%[1]d [labelled]
	data_plan_01gb: 1 @%[2]d [labelled]
	data_plan_05gb: 1 @%[1]d [labelled]
Column Family stats_summary
	connected_cell: 1 @%[1]d [labelled]
	connected_wifi: 1 @%[1]d [labelled]
	os_build: PQ2A.190405.003 @%[1]d [labelled]

Reading data for row phone#4c410523#20190502
Column Family cell_plan
	data_plan_05gb: 1 @%[1]d [labelled]
Column Family stats_summary
	connected_cell: 1 @%[1]d [labelled]
	connected_wifi: 1 @%[1]d [labelled]
	os_build: PQ2A.190405.004 @%[1]d [labelled]

Reading data for row phone#4c410523#20190505
Column Family cell_plan
	data_plan_05gb: 1 @%[1]d [labelled]
Column Family stats_summary
	connected_cell: 0 @%[1]d [labelled]
	connected_wifi: 1 @%[1]d [labelled]
	os_build: PQ2A.190406.000 @%[1]d [labelled]

Reading data for row phone#5c10102#20190501
Column Family cell_plan
	data_plan_10gb: 1 @%[1]d [labelled]
Column Family stats_summary
	connected_cell: 1 @%[1]d [labelled]
	connected_wifi: 1 @%[1]d [labelled]
	os_build: PQ2A.190401.002 @%[1]d [labelled]

Reading data for row phone#5c10102#20190502
Column Family cell_plan
	data_plan_10gb: 1 @%[1]d [labelled]
Column Family stats_summary
	connected_cell: 1 @%[1]d [labelled]
	connected_wifi: 0 @%[1]d [labelled]
	os_build: PQ2A.190406.000 @%[1]d [labelled]`,
		},
		{
			Name:        "chain",
			Description: "The newest cell of every cell_plan column.",
			Filter:      filter.Chain(filter.CellsPerColumn(1), filter.FamilyRegex(CellPlan)),
			clock:       c,
			report:      `Reading data for row phone#4c410523#20190501
Column Family cell_plan
	data_plan_01gb:  @%[1]d
	data_plan_05gb: 1 @%[1]d

Reading data for row phone#4c410523#20190502
Column Family cell_plan
	data_plan_05gb: 1 @%[1]d

Reading data for row phone#4c410523#20190505
Column Family cell_plan
	data_plan_05gb: 1 @%[1]d

Reading data for row phone#5c10102#20190501
Column Family cell_plan
	data_plan_10gb: 1 @%[1]d

Reading data for row phone#5c10102#20190502
Column Family cell_plan
	data_plan_10gb: 1 @%[1]d`,
		},
		{
			Name:        "interleave",
			Description: "Cells with value 1 together with the os_build column.",
			Filter:      filter.Interleave(filter.ValueRegex("1"), filter.QualifierRegex("os_build")),
			clock:       c,
			report:      `Reading data for row phone#4c410523#20190501
Column Family cell_plan
	data_plan_01gb: 1 @%[2]d
	data_plan_05gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190405.003 @%[1]d

Reading data for row phone#4c410523#20190502
Column Family cell_plan
	data_plan_05gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190405.004 @%[1]d

Reading data for row phone#4c410523#20190505
Column Family cell_plan
	data_plan_05gb: 1 @%[1]d
Column Family stats_summary
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190406.000 @%[1]d

Reading data for row phone#5c10102#20190501
Column Family cell_plan
	data_plan_10gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d
	connected_wifi: 1 @%[1]d
	os_build: PQ2A.190401.002 @%[1]d

Reading data for row phone#5c10102#20190502
Column Family cell_plan
	data_plan_10gb: 1 @%[1]d
Column Family stats_summary
	connected_cell: 1 @%[1]d
	os_build: PQ2A.190406.000 @%[1]d`,
		},
		{
			Name:        "condition",
			Description: "Rows on the 10gb plan are labelled passed-filter, all others filtered-out.",
			Filter:      filter.Condition(
				filter.Chain(filter.QualifierRegex("data_plan_10gb"), filter.ValueRegex("1")),
				filter.Label("passed-filter"),
				filter.Label("filtered-out"),
			),
			clock:       c,
			report:      `Reading data for row phone#4c410523#20190501
Column Family cell_plan
	data_plan_01gb:  @%[1]d [filtered-out]
	data_plan_01gb: 1 @%[2]d [filtered-out]
	data_plan_05gb: 1 @%[1]d [filtered-out]
Column Family stats_summary
	connected_cell: 1 @%[1]d [filtered-out]
	connected_wifi: 1 @%[1]d [filtered-out]
	os_build: PQ2A.190405.003 @%[1]d [filtered-out]

Reading data for row phone#4c410523#20190502
Column Family cell_plan
	data_plan_05gb: 1 @%[1]d [filtered-out]
Column Family stats_summary
	connected_cell: 1 @%[1]d [filtered-out]
	connected_wifi: 1 @%[1]d [filtered-out]
	os_build: PQ2A.190405.004 @%[1]d [filtered-out]

Reading data for row phone#4c410523#20190505
Column Family cell_plan
	data_plan_05gb: 1 @%[1]d [filtered-out]
Column Family stats_summary
	connected_cell: 0 @%[1]d [filtered-out]
	connected_wifi: 1 @%[1]d [filtered-out]
	os_build: PQ2A.190406.000 @%[1]d [filtered-out]

Reading data for row phone#5c10102#20190501
Column Family cell_plan
	data_plan_10gb: 1 @%[1]d [passed-filter]
Column Family stats_summary
	connected_cell: 1 @%[1]d [passed-filter]
	connected_wifi: 1 @%[1]d [passed-filter]
	os_build: PQ2A.190401.002 @%[1]d [passed-filter]

Reading data for row phone#5c10102#20190502
Column Family cell_plan
	data_plan_10gb: 1 @%[1]d [passed-filter]
Column Family stats_summary
	connected_cell: 1 @%[1]d [passed-filter]
	connected_wifi: 0 @%[1]d [passed-filter]
	os_build: PQ2A.190406.000 @%[1]d [passed-filter]`,
		},
	}
}
