// Package filter implements the LiteTable row filter language: a closed set of primitive
// filters (limits, regexes, ranges, value transforms) and three combinators (chain, interleave,
// condition) that compose them into a tree.
//
// A Filter is a plain value. It is validated and prepared for evaluation by Compile, which
// returns a Program that can be applied to any number of rows:
//
//	prog, err := filter.Compile(filter.Chain(
//		filter.CellsPerColumn(1),
//		filter.FamilyRegex("cell_plan"),
//	))
//	if err != nil {
//		return err // errors.Is(err, filter.ErrInvalidFilter)
//	}
//	out, err := prog.Evaluate(row)
//
// Regular expressions match the whole input, never a substring.
package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Filter.
type Kind int

const (
	// KindNone is the zero Filter. It is only meaningful as a missing Condition branch.
	KindNone Kind = iota
	KindPassAll
	KindBlockAll
	KindRowSample
	KindRowKeyRegex
	KindCellsPerColumn
	KindCellsPerRow
	KindCellsPerRowOffset
	KindFamilyRegex
	KindQualifierRegex
	KindColumnRange
	KindValueRange
	KindValueRegex
	KindTimestampRange
	KindStripValue
	KindLabel
	KindCellExpression
	KindChain
	KindInterleave
	KindCondition
)

var kindNames = map[Kind]string{
	KindNone:              "none",
	KindPassAll:           "pass_all",
	KindBlockAll:          "block_all",
	KindRowSample:         "row_sample",
	KindRowKeyRegex:       "row_key_regex",
	KindCellsPerColumn:    "cells_per_column",
	KindCellsPerRow:       "cells_per_row",
	KindCellsPerRowOffset: "cells_per_row_offset",
	KindFamilyRegex:       "family_regex",
	KindQualifierRegex:    "qualifier_regex",
	KindColumnRange:       "column_range",
	KindValueRange:        "value_range",
	KindValueRegex:        "value_regex",
	KindTimestampRange:    "timestamp_range",
	KindStripValue:        "strip_value",
	KindLabel:             "label",
	KindCellExpression:    "expression",
	KindChain:             "chain",
	KindInterleave:        "interleave",
	KindCondition:         "condition",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Filter is a node of a filter tree. Only the fields relevant to Kind are set; use the
// constructors below rather than building the struct by hand.
type Filter struct {
	Kind Kind

	// Pattern holds the regular expression of the regex kinds and the CEL source of
	// KindCellExpression.
	Pattern string
	// Limit is the count of the cells-per-column, cells-per-row and offset kinds.
	Limit int
	// Probability is the row sampling probability.
	Probability float64

	// Family, Start and End describe ColumnRange and ValueRange. An empty End is unbounded.
	Family string
	Start  []byte
	End    []byte

	// StartTimestamp is inclusive, EndTimestamp exclusive. An EndTimestamp of 0 is unbounded.
	StartTimestamp int64
	EndTimestamp   int64

	Label string

	// Filters are the children of Chain and Interleave.
	Filters []Filter

	Predicate *Filter
	Then      *Filter
	Else      *Filter
}

// PassAll keeps every cell of every row.
func PassAll() Filter { return Filter{Kind: KindPassAll} }

// BlockAll drops every cell of every row.
func BlockAll() Filter { return Filter{Kind: KindBlockAll} }

// RowSample keeps a whole row with probability p.
func RowSample(p float64) Filter { return Filter{Kind: KindRowSample, Probability: p} }

// RowKeyRegex keeps rows whose key matches pattern.
func RowKeyRegex(pattern string) Filter { return Filter{Kind: KindRowKeyRegex, Pattern: pattern} }

// CellsPerColumn keeps the n newest cells of each column.
func CellsPerColumn(n int) Filter { return Filter{Kind: KindCellsPerColumn, Limit: n} }

// CellsPerRow keeps the first n cells of the row.
func CellsPerRow(n int) Filter { return Filter{Kind: KindCellsPerRow, Limit: n} }

// CellsPerRowOffset drops the first n cells of the row.
func CellsPerRowOffset(n int) Filter { return Filter{Kind: KindCellsPerRowOffset, Limit: n} }

// FamilyRegex keeps cells whose column family matches pattern.
func FamilyRegex(pattern string) Filter { return Filter{Kind: KindFamilyRegex, Pattern: pattern} }

// QualifierRegex keeps cells whose qualifier matches pattern.
func QualifierRegex(pattern string) Filter {
	return Filter{Kind: KindQualifierRegex, Pattern: pattern}
}

// ColumnRange keeps cells of family whose qualifier is in [start, end). A nil end is unbounded.
func ColumnRange(family string, start, end []byte) Filter {
	return Filter{Kind: KindColumnRange, Family: family, Start: start, End: end}
}

// ValueRange keeps cells whose value is in [start, end). A nil end is unbounded.
func ValueRange(start, end []byte) Filter {
	return Filter{Kind: KindValueRange, Start: start, End: end}
}

// ValueRegex keeps cells whose value matches pattern.
func ValueRegex(pattern string) Filter { return Filter{Kind: KindValueRegex, Pattern: pattern} }

// TimestampRange keeps cells with start <= timestamp < end, in microseconds. An end of 0 is
// unbounded.
func TimestampRange(start, end int64) Filter {
	return Filter{Kind: KindTimestampRange, StartTimestamp: start, EndTimestamp: end}
}

// StripValue keeps every cell but replaces its value with an empty one.
func StripValue() Filter { return Filter{Kind: KindStripValue} }

// Label attaches label to every cell.
func Label(label string) Filter { return Filter{Kind: KindLabel, Label: label} }

// CellExpression keeps cells for which the CEL expression evaluates to true. The expression
// sees the variables family, qualifier and value (strings) and timestamp (int).
func CellExpression(expr string) Filter {
	return Filter{Kind: KindCellExpression, Pattern: expr}
}

// Chain applies filters in sequence, each to the output of the previous one.
func Chain(filters ...Filter) Filter { return Filter{Kind: KindChain, Filters: filters} }

// Interleave applies every filter to the input row and merges their output.
func Interleave(filters ...Filter) Filter {
	return Filter{Kind: KindInterleave, Filters: filters}
}

// Condition applies then when predicate yields any cell for the row and otherwise applies
// otherwise. A zero Filter for either branch yields an empty row.
func Condition(predicate, then, otherwise Filter) Filter {
	f := Filter{Kind: KindCondition, Predicate: &predicate}
	if then.Kind != KindNone {
		f.Then = &then
	}
	if otherwise.Kind != KindNone {
		f.Else = &otherwise
	}
	return f
}

// String renders the filter as a compact expression, used in logs and error messages.
func (f Filter) String() string {
	var sb strings.Builder
	f.write(&sb)
	return sb.String()
}

func (f Filter) write(sb *strings.Builder) {
	sb.WriteString(f.Kind.String())
	switch f.Kind {
	case KindRowSample:
		fmt.Fprintf(sb, "(%g)", f.Probability)
	case KindRowKeyRegex, KindFamilyRegex, KindQualifierRegex, KindValueRegex,
		KindCellExpression:
		fmt.Fprintf(sb, "(%q)", f.Pattern)
	case KindCellsPerColumn, KindCellsPerRow, KindCellsPerRowOffset:
		fmt.Fprintf(sb, "(%d)", f.Limit)
	case KindColumnRange:
		fmt.Fprintf(sb, "(%q, %q, %s)", f.Family, f.Start, boundString(f.End))
	case KindValueRange:
		fmt.Fprintf(sb, "(%q, %s)", f.Start, boundString(f.End))
	case KindTimestampRange:
		end := "inf"
		if f.EndTimestamp != 0 {
			end = strconv.FormatInt(f.EndTimestamp, 10)
		}
		fmt.Fprintf(sb, "(%d, %s)", f.StartTimestamp, end)
	case KindLabel:
		fmt.Fprintf(sb, "(%q)", f.Label)
	case KindChain, KindInterleave:
		sb.WriteByte('(')
		for i, child := range f.Filters {
			if i > 0 {
				sb.WriteString(", ")
			}
			child.write(sb)
		}
		sb.WriteByte(')')
	case KindCondition:
		sb.WriteByte('(')
		writeBranch(sb, f.Predicate)
		sb.WriteString(", ")
		writeBranch(sb, f.Then)
		sb.WriteString(", ")
		writeBranch(sb, f.Else)
		sb.WriteByte(')')
	}
}

func writeBranch(sb *strings.Builder, f *Filter) {
	if f == nil {
		sb.WriteString(KindNone.String())
		return
	}
	f.write(sb)
}

func boundString(b []byte) string {
	if len(b) == 0 {
		return "inf"
	}
	return strconv.Quote(string(b))
}
