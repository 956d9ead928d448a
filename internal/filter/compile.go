package filter

import (
	"fmt"
	"github.com/google/cel-go/cel"
	"math/rand/v2"
	"regexp"
	"sync"
)

// Program is a validated filter tree ready for evaluation. A Program is immutable and safe for
// concurrent use as long as its random source is.
type Program struct {
	root   *node
	filter Filter
	random func() float64
}

// Option configures a Program.
type Option func(*Program)

// WithRand replaces the random source used by RowSample. The function must return values in
// [0, 1) and be safe for concurrent use when the Program is shared between goroutines.
func WithRand(random func() float64) Option {
	return func(p *Program) {
		p.random = random
	}
}

// node is the compiled form of a Filter: regexes and expressions are compiled once, children
// are resolved to nodes.
type node struct {
	Filter
	re        *regexp.Regexp
	program   cel.Program
	children  []*node
	predicate *node
	then      *node
	otherwise *node
}

// Compile validates f and prepares it for evaluation. Any malformed node (bad regex, negative
// limit, out of range probability, empty label, invalid expression, empty combinator) returns an
// *InvalidFilterError.
func Compile(f Filter, opts ...Option) (*Program, error) {
	root, err := compileNode(f, "")
	if err != nil {
		return nil, err
	}

	p := &Program{
		root:   root,
		filter: f,
		random: rand.Float64,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// MustCompile is Compile for filters known to be valid at build time.
func MustCompile(f Filter, opts ...Option) *Program {
	p, err := Compile(f, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Filter returns the filter the program was compiled from.
func (p *Program) Filter() Filter {
	return p.filter
}

func compileNode(f Filter, prefix string) (*node, error) {
	path := f.Kind.String()
	if prefix != "" {
		path = prefix + "." + path
	}

	n := &node{Filter: f}

	switch f.Kind {
	case KindPassAll, KindBlockAll, KindStripValue:
	case KindRowSample:
		if f.Probability <= 0 || f.Probability > 1 {
			return nil, newInvalidFilterError(path,
				"probability must be in (0, 1], got %g", f.Probability)
		}
	case KindRowKeyRegex, KindFamilyRegex, KindQualifierRegex, KindValueRegex:
		re, err := compileRegex(f.Pattern)
		if err != nil {
			return nil, newInvalidFilterError(path, "bad pattern %q: %v", f.Pattern, err)
		}
		n.re = re
	case KindCellsPerColumn, KindCellsPerRow, KindCellsPerRowOffset:
		if f.Limit < 0 {
			return nil, newInvalidFilterError(path, "limit must not be negative, got %d",
				f.Limit)
		}
	case KindColumnRange:
		if f.Family == "" {
			return nil, newInvalidFilterError(path, "family required")
		}
		if len(f.End) > 0 && string(f.End) < string(f.Start) {
			return nil, newInvalidFilterError(path, "end %q sorts before start %q", f.End,
				f.Start)
		}
	case KindValueRange:
		if len(f.End) > 0 && string(f.End) < string(f.Start) {
			return nil, newInvalidFilterError(path, "end %q sorts before start %q", f.End,
				f.Start)
		}
	case KindTimestampRange:
		if f.StartTimestamp < 0 || f.EndTimestamp < 0 {
			return nil, newInvalidFilterError(path, "timestamps must not be negative")
		}
		if f.EndTimestamp != 0 && f.EndTimestamp < f.StartTimestamp {
			return nil, newInvalidFilterError(path, "end %d is before start %d",
				f.EndTimestamp, f.StartTimestamp)
		}
	case KindLabel:
		if f.Label == "" {
			return nil, newInvalidFilterError(path, "label must not be empty")
		}
	case KindCellExpression:
		prg, err := compileExpression(f.Pattern)
		if err != nil {
			return nil, newInvalidFilterError(path, "bad expression %q: %v", f.Pattern, err)
		}
		n.program = prg
	case KindChain, KindInterleave:
		if len(f.Filters) == 0 {
			return nil, newInvalidFilterError(path, "at least one filter required")
		}
		n.children = make([]*node, 0, len(f.Filters))
		for i, child := range f.Filters {
			c, err := compileNode(child, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, c)
		}
	case KindCondition:
		if f.Predicate == nil || f.Predicate.Kind == KindNone {
			return nil, newInvalidFilterError(path, "predicate required")
		}
		var err error
		if n.predicate, err = compileNode(*f.Predicate, path+".predicate"); err != nil {
			return nil, err
		}
		if f.Then != nil && f.Then.Kind != KindNone {
			if n.then, err = compileNode(*f.Then, path+".then"); err != nil {
				return nil, err
			}
		}
		if f.Else != nil && f.Else.Kind != KindNone {
			if n.otherwise, err = compileNode(*f.Else, path+".else"); err != nil {
				return nil, err
			}
		}
	case KindNone:
		return nil, newInvalidFilterError(path, "filter kind not set")
	default:
		return nil, newInvalidFilterError(path, "unknown filter kind %d", int(f.Kind))
	}

	return n, nil
}

// compileRegex anchors the pattern so that it has to match the whole input.
func compileRegex(pattern string) (*regexp.Regexp, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, err
	}
	return regexp.Compile(`^(?:` + pattern + `)$`)
}

var celEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("family", cel.StringType),
		cel.Variable("qualifier", cel.StringType),
		cel.Variable("value", cel.StringType),
		cel.Variable("timestamp", cel.IntType),
	)
})

func compileExpression(expr string) (cel.Program, error) {
	env, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel compile: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel program: %w", err)
	}
	return prg, nil
}
