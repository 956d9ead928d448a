package filter

import (
	"fmt"
	"github.com/goccy/go-yaml"
)

// Definition is the document form of a Filter, used by filter files, the HTTP API and the gRPC
// API. Exactly one field must be set. YAML and JSON share the same field names:
//
//	chain:
//	  - cells_per_column: 1
//	  - family_regex: cell_plan
//
//	{"condition": {"if": {"value_regex": "1"}, "then": {"label": "passed-filter"}}}
type Definition struct {
	PassAll           bool                 `yaml:"pass_all,omitempty" json:"pass_all,omitempty"`
	BlockAll          bool                 `yaml:"block_all,omitempty" json:"block_all,omitempty"`
	StripValue        bool                 `yaml:"strip_value,omitempty" json:"strip_value,omitempty"`
	RowSample         *float64             `yaml:"row_sample,omitempty" json:"row_sample,omitempty"`
	RowKeyRegex       *string              `yaml:"row_key_regex,omitempty" json:"row_key_regex,omitempty"`
	CellsPerColumn    *int                 `yaml:"cells_per_column,omitempty" json:"cells_per_column,omitempty"`
	CellsPerRow       *int                 `yaml:"cells_per_row,omitempty" json:"cells_per_row,omitempty"`
	CellsPerRowOffset *int                 `yaml:"cells_per_row_offset,omitempty" json:"cells_per_row_offset,omitempty"`
	FamilyRegex       *string              `yaml:"family_regex,omitempty" json:"family_regex,omitempty"`
	QualifierRegex    *string              `yaml:"qualifier_regex,omitempty" json:"qualifier_regex,omitempty"`
	ColumnRange       *RangeDefinition     `yaml:"column_range,omitempty" json:"column_range,omitempty"`
	ValueRange        *RangeDefinition     `yaml:"value_range,omitempty" json:"value_range,omitempty"`
	ValueRegex        *string              `yaml:"value_regex,omitempty" json:"value_regex,omitempty"`
	TimestampRange    *TimestampDefinition `yaml:"timestamp_range,omitempty" json:"timestamp_range,omitempty"`
	Label             *string              `yaml:"label,omitempty" json:"label,omitempty"`
	Expression        *string              `yaml:"expression,omitempty" json:"expression,omitempty"`
	Chain             []Definition         `yaml:"chain,omitempty" json:"chain,omitempty"`
	Interleave        []Definition         `yaml:"interleave,omitempty" json:"interleave,omitempty"`
	Condition         *ConditionDefinition `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// RangeDefinition describes a column or value range. A missing or empty end is unbounded.
type RangeDefinition struct {
	Family string  `yaml:"family,omitempty" json:"family,omitempty"`
	Start  string  `yaml:"start,omitempty" json:"start,omitempty"`
	End    *string `yaml:"end,omitempty" json:"end,omitempty"`
}

// TimestampDefinition describes a timestamp range in microseconds. An end of 0 is unbounded.
type TimestampDefinition struct {
	Start int64 `yaml:"start,omitempty" json:"start,omitempty"`
	End   int64 `yaml:"end,omitempty" json:"end,omitempty"`
}

// ConditionDefinition describes a Condition. Missing branches yield empty rows.
type ConditionDefinition struct {
	If   *Definition `yaml:"if" json:"if"`
	Then *Definition `yaml:"then,omitempty" json:"then,omitempty"`
	Else *Definition `yaml:"else,omitempty" json:"else,omitempty"`
}

// ParseDefinition decodes a YAML or JSON filter document into a Filter. Structural problems are
// reported as *InvalidFilterError; parameter problems are left to Compile.
func ParseDefinition(data []byte) (Filter, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Filter{}, newInvalidFilterError("", "cannot decode definition: %v", err)
	}
	return def.Filter()
}

// MarshalDefinition encodes a Filter as a YAML document.
func MarshalDefinition(f Filter) ([]byte, error) {
	return yaml.Marshal(f.Definition())
}

// Filter converts the definition into a Filter.
func (d Definition) Filter() (Filter, error) {
	return d.toFilter("")
}

func (d Definition) toFilter(path string) (Filter, error) {
	var set []string
	var f Filter

	if d.PassAll {
		set, f = append(set, "pass_all"), PassAll()
	}
	if d.BlockAll {
		set, f = append(set, "block_all"), BlockAll()
	}
	if d.StripValue {
		set, f = append(set, "strip_value"), StripValue()
	}
	if d.RowSample != nil {
		set, f = append(set, "row_sample"), RowSample(*d.RowSample)
	}
	if d.RowKeyRegex != nil {
		set, f = append(set, "row_key_regex"), RowKeyRegex(*d.RowKeyRegex)
	}
	if d.CellsPerColumn != nil {
		set, f = append(set, "cells_per_column"), CellsPerColumn(*d.CellsPerColumn)
	}
	if d.CellsPerRow != nil {
		set, f = append(set, "cells_per_row"), CellsPerRow(*d.CellsPerRow)
	}
	if d.CellsPerRowOffset != nil {
		set, f = append(set, "cells_per_row_offset"), CellsPerRowOffset(*d.CellsPerRowOffset)
	}
	if d.FamilyRegex != nil {
		set, f = append(set, "family_regex"), FamilyRegex(*d.FamilyRegex)
	}
	if d.QualifierRegex != nil {
		set, f = append(set, "qualifier_regex"), QualifierRegex(*d.QualifierRegex)
	}
	if d.ColumnRange != nil {
		set = append(set, "column_range")
		f = ColumnRange(d.ColumnRange.Family, []byte(d.ColumnRange.Start),
			optionalBytes(d.ColumnRange.End))
	}
	if d.ValueRange != nil {
		set = append(set, "value_range")
		f = ValueRange([]byte(d.ValueRange.Start), optionalBytes(d.ValueRange.End))
	}
	if d.ValueRegex != nil {
		set, f = append(set, "value_regex"), ValueRegex(*d.ValueRegex)
	}
	if d.TimestampRange != nil {
		set = append(set, "timestamp_range")
		f = TimestampRange(d.TimestampRange.Start, d.TimestampRange.End)
	}
	if d.Label != nil {
		set, f = append(set, "label"), Label(*d.Label)
	}
	if d.Expression != nil {
		set, f = append(set, "expression"), CellExpression(*d.Expression)
	}
	if d.Chain != nil {
		children, err := childFilters(d.Chain, join(path, "chain"))
		if err != nil {
			return Filter{}, err
		}
		set, f = append(set, "chain"), Chain(children...)
	}
	if d.Interleave != nil {
		children, err := childFilters(d.Interleave, join(path, "interleave"))
		if err != nil {
			return Filter{}, err
		}
		set, f = append(set, "interleave"), Interleave(children...)
	}
	if d.Condition != nil {
		cond, err := d.Condition.toFilter(join(path, "condition"))
		if err != nil {
			return Filter{}, err
		}
		set, f = append(set, "condition"), cond
	}

	switch len(set) {
	case 0:
		return Filter{}, newInvalidFilterError(path, "empty filter definition")
	case 1:
		return f, nil
	default:
		return Filter{}, newInvalidFilterError(path,
			"exactly one filter per definition, got %v", set)
	}
}

func (c *ConditionDefinition) toFilter(path string) (Filter, error) {
	if c.If == nil {
		return Filter{}, newInvalidFilterError(path, "condition requires if")
	}
	predicate, err := c.If.toFilter(path + ".if")
	if err != nil {
		return Filter{}, err
	}

	var then, otherwise Filter
	if c.Then != nil {
		if then, err = c.Then.toFilter(path + ".then"); err != nil {
			return Filter{}, err
		}
	}
	if c.Else != nil {
		if otherwise, err = c.Else.toFilter(path + ".else"); err != nil {
			return Filter{}, err
		}
	}
	return Condition(predicate, then, otherwise), nil
}

func childFilters(defs []Definition, path string) ([]Filter, error) {
	out := make([]Filter, 0, len(defs))
	for i, d := range defs {
		f, err := d.toFilter(fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Definition converts the filter into its document form.
func (f Filter) Definition() Definition {
	var d Definition
	switch f.Kind {
	case KindPassAll:
		d.PassAll = true
	case KindBlockAll:
		d.BlockAll = true
	case KindStripValue:
		d.StripValue = true
	case KindRowSample:
		d.RowSample = &f.Probability
	case KindRowKeyRegex:
		d.RowKeyRegex = &f.Pattern
	case KindCellsPerColumn:
		d.CellsPerColumn = &f.Limit
	case KindCellsPerRow:
		d.CellsPerRow = &f.Limit
	case KindCellsPerRowOffset:
		d.CellsPerRowOffset = &f.Limit
	case KindFamilyRegex:
		d.FamilyRegex = &f.Pattern
	case KindQualifierRegex:
		d.QualifierRegex = &f.Pattern
	case KindColumnRange:
		d.ColumnRange = newRangeDefinition(f.Family, f.Start, f.End)
	case KindValueRange:
		d.ValueRange = newRangeDefinition("", f.Start, f.End)
	case KindValueRegex:
		d.ValueRegex = &f.Pattern
	case KindTimestampRange:
		d.TimestampRange = &TimestampDefinition{Start: f.StartTimestamp, End: f.EndTimestamp}
	case KindLabel:
		d.Label = &f.Label
	case KindCellExpression:
		d.Expression = &f.Pattern
	case KindChain:
		d.Chain = newDefinitions(f.Filters)
	case KindInterleave:
		d.Interleave = newDefinitions(f.Filters)
	case KindCondition:
		d.Condition = &ConditionDefinition{
			If:   optionalDefinition(f.Predicate),
			Then: optionalDefinition(f.Then),
			Else: optionalDefinition(f.Else),
		}
	}
	return d
}

func newDefinitions(filters []Filter) []Definition {
	out := make([]Definition, 0, len(filters))
	for _, f := range filters {
		out = append(out, f.Definition())
	}
	return out
}

func optionalDefinition(f *Filter) *Definition {
	if f == nil || f.Kind == KindNone {
		return nil
	}
	d := f.Definition()
	return &d
}

func newRangeDefinition(family string, start, end []byte) *RangeDefinition {
	r := &RangeDefinition{Family: family, Start: string(start)}
	if len(end) > 0 {
		e := string(end)
		r.End = &e
	}
	return r
}

func optionalBytes(s *string) []byte {
	if s == nil {
		return nil
	}
	return []byte(*s)
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
