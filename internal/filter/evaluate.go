package filter

import (
	"bytes"
	"fmt"
	"github.com/litetable/litetable-filter/internal/litetable"
	"slices"
)

// Evaluate applies the program to a row and returns the surviving, possibly transformed
// cells. The input row is never modified; the result is an independent copy. An empty result
// means the filter removed the whole row.
func (p *Program) Evaluate(row litetable.Row) (litetable.Row, error) {
	in := row.Clone()
	in.Sort()

	out, err := p.root.apply(p, in)
	if err != nil {
		return litetable.Row{Key: in.Key}, err
	}
	return out, nil
}

// Matches reports whether the program keeps at least one cell of the row.
func (p *Program) Matches(row litetable.Row) (bool, error) {
	out, err := p.Evaluate(row)
	if err != nil {
		return false, err
	}
	return !out.IsEmpty(), nil
}

// apply evaluates a single node. Cells of the input are treated as read-only: transforms build
// new cells and combinators build new slices.
func (n *node) apply(p *Program, row litetable.Row) (litetable.Row, error) {
	switch n.Kind {
	case KindPassAll:
		return row, nil
	case KindBlockAll:
		return empty(row), nil
	case KindRowSample:
		if row.IsEmpty() || p.random() >= n.Probability {
			return empty(row), nil
		}
		return row, nil
	case KindRowKeyRegex:
		if n.re.Match(row.Key) {
			return row, nil
		}
		return empty(row), nil
	case KindCellsPerColumn:
		return cellsPerColumn(row, n.Limit), nil
	case KindCellsPerRow:
		return row.WithCells(row.Cells[:min(n.Limit, len(row.Cells))]), nil
	case KindCellsPerRowOffset:
		return row.WithCells(row.Cells[min(n.Limit, len(row.Cells)):]), nil
	case KindFamilyRegex:
		return keep(row, func(c litetable.Cell) bool {
			return n.re.MatchString(c.Family)
		}), nil
	case KindQualifierRegex:
		return keep(row, func(c litetable.Cell) bool {
			return n.re.Match(c.Qualifier)
		}), nil
	case KindColumnRange:
		return keep(row, func(c litetable.Cell) bool {
			return c.Family == n.Family && inRange(c.Qualifier, n.Start, n.End)
		}), nil
	case KindValueRange:
		return keep(row, func(c litetable.Cell) bool {
			return inRange(c.Value, n.Start, n.End)
		}), nil
	case KindValueRegex:
		return keep(row, func(c litetable.Cell) bool {
			return n.re.Match(c.Value)
		}), nil
	case KindTimestampRange:
		return keep(row, func(c litetable.Cell) bool {
			return c.Timestamp >= n.StartTimestamp &&
				(n.EndTimestamp == 0 || c.Timestamp < n.EndTimestamp)
		}), nil
	case KindStripValue:
		return transform(row, func(c litetable.Cell) litetable.Cell {
			c.Value = []byte{}
			return c
		}), nil
	case KindLabel:
		return transform(row, func(c litetable.Cell) litetable.Cell {
			c.Labels = append(slices.Clone(c.Labels), n.Label)
			return c
		}), nil
	case KindCellExpression:
		return n.evaluateExpression(row)
	case KindChain:
		return n.chain(p, row)
	case KindInterleave:
		return n.interleave(p, row)
	case KindCondition:
		return n.condition(p, row)
	default:
		return empty(row), fmt.Errorf("cannot evaluate filter kind %s", n.Kind)
	}
}

// chain feeds the output of each filter into the next. Every filter maps an empty row to an
// empty row, so evaluation stops at the first empty result.
func (n *node) chain(p *Program, row litetable.Row) (litetable.Row, error) {
	var err error
	for _, child := range n.children {
		if row, err = child.apply(p, row); err != nil {
			return empty(row), err
		}
		if row.IsEmpty() {
			return row, nil
		}
	}
	return row, nil
}

// interleave runs every filter against the input row and merges the results back into row
// order. Cells with the same identity (including labels) are emitted once.
func (n *node) interleave(p *Program, row litetable.Row) (litetable.Row, error) {
	seen := make(map[litetable.Identity]struct{})
	var merged []litetable.Cell

	for _, child := range n.children {
		out, err := child.apply(p, row)
		if err != nil {
			return empty(row), err
		}
		for _, c := range out.Cells {
			id := c.Identity()
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			merged = append(merged, c)
		}
	}

	result := row.WithCells(merged)
	result.Sort()
	return result, nil
}

// condition only looks at whether the predicate kept anything; its transforms are discarded.
func (n *node) condition(p *Program, row litetable.Row) (litetable.Row, error) {
	matched, err := n.predicate.apply(p, row)
	if err != nil {
		return empty(row), err
	}

	branch := n.otherwise
	if !matched.IsEmpty() {
		branch = n.then
	}
	if branch == nil {
		return empty(row), nil
	}
	return branch.apply(p, row)
}

func (n *node) evaluateExpression(row litetable.Row) (litetable.Row, error) {
	cells := make([]litetable.Cell, 0, len(row.Cells))
	for _, c := range row.Cells {
		out, _, err := n.program.Eval(map[string]any{
			"family":    c.Family,
			"qualifier": string(c.Qualifier),
			"value":     string(c.Value),
			"timestamp": c.Timestamp,
		})
		if err != nil {
			return empty(row), fmt.Errorf("expression %q: %w", n.Pattern, err)
		}
		ok, isBool := out.Value().(bool)
		if !isBool {
			return empty(row), fmt.Errorf("expression %q returned %v, want bool", n.Pattern,
				out.Type())
		}
		if ok {
			cells = append(cells, c)
		}
	}
	return row.WithCells(cells), nil
}

// cellsPerColumn relies on row order: the cells of a column are adjacent and newest first.
func cellsPerColumn(row litetable.Row, limit int) litetable.Row {
	cells := make([]litetable.Cell, 0, len(row.Cells))
	count := 0
	for i, c := range row.Cells {
		if i == 0 || c.Family != row.Cells[i-1].Family ||
			!bytes.Equal(c.Qualifier, row.Cells[i-1].Qualifier) {
			count = 0
		}
		if count < limit {
			cells = append(cells, c)
		}
		count++
	}
	return row.WithCells(cells)
}

func keep(row litetable.Row, fn func(litetable.Cell) bool) litetable.Row {
	cells := make([]litetable.Cell, 0, len(row.Cells))
	for _, c := range row.Cells {
		if fn(c) {
			cells = append(cells, c)
		}
	}
	return row.WithCells(cells)
}

func transform(row litetable.Row, fn func(litetable.Cell) litetable.Cell) litetable.Row {
	cells := make([]litetable.Cell, len(row.Cells))
	for i, c := range row.Cells {
		cells[i] = fn(c)
	}
	return row.WithCells(cells)
}

// inRange checks start <= b < end with an empty end treated as unbounded.
func inRange(b, start, end []byte) bool {
	if bytes.Compare(b, start) < 0 {
		return false
	}
	return len(end) == 0 || bytes.Compare(b, end) < 0
}

func empty(row litetable.Row) litetable.Row {
	return litetable.Row{Key: row.Key}
}
