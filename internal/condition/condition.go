// Package condition evaluates the small boolean expressions embedded in
// sprite-pack descriptors against a flat runtime-state mapping.
//
// The grammar is deliberately tiny: an optional #{...} wrapper, clauses
// joined by &&, and each clause either a numeric comparison like
// "mascot.y > 100" or one of a closed set of contact predicates like
// "mascot.environment.floor.isOn(mascot.anchor)". Anything the parser does
// not understand evaluates to true with a warning, never an error.
package condition

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/auziqni/learn-shimeji-sub000/internal/logging"
)

// State is the flat key/value mapping fed back from the host runtime.
// Boolean facts are stored as 0 or 1 under their predicate key.
type State map[string]float64

// Well-known state keys written by host collaborators.
const (
	KeyX = "mascot.x"
	KeyY = "mascot.y"

	KeyFloorContact   = "mascot.environment.floor.isOn"
	KeyWallContact    = "mascot.environment.wall.isOn"
	KeyCeilingContact = "mascot.environment.ceiling.isOn"

	KeySystemCPU = "system.cpu"
	KeySystemMem = "system.mem"
)

// SetBool stores a boolean fact as 0/1.
func (s State) SetBool(key string, v bool) {
	if v {
		s[key] = 1
	} else {
		s[key] = 0
	}
}

// Bool reads a stored boolean fact. Missing keys are false.
func (s State) Bool(key string) bool { return s[key] != 0 }

// Clone returns an independent copy of the state.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Op is a comparison operator.
type Op string

const (
	OpGT Op = ">"
	OpLT Op = "<"
	OpGE Op = ">="
	OpLE Op = "<="
	OpEQ Op = "=="
	OpNE Op = "!="
)

// ops is ordered so that two-character operators match before their
// one-character prefixes.
var ops = []Op{OpGE, OpLE, OpEQ, OpNE, OpGT, OpLT}

// clauseKind discriminates the clause variants.
type clauseKind int

const (
	kindCompare clauseKind = iota
	kindPredicate
)

// clause is one &&-joined term of an expression.
type clause struct {
	kind clauseKind

	// comparison
	field string
	op    Op
	value float64

	// predicate: the state key holding the boolean fact
	key string
}

// Expr is a parsed condition expression.
type Expr struct {
	raw     string
	clauses []clause
}

// predicates maps the closed set of callable predicates to the state key
// each one reads. The argument inside the parentheses is fixed by the
// source format and carries no information.
var predicates = map[string]string{
	"mascot.environment.floor.isOn":   KeyFloorContact,
	"mascot.environment.wall.isOn":    KeyWallContact,
	"mascot.environment.ceiling.isOn": KeyCeilingContact,
}

// Strip removes the #{...} wrapper the source format puts around
// expressions, returning the bare expression text.
func Strip(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#{") && strings.HasSuffix(s, "}") {
		s = strings.TrimSpace(s[2 : len(s)-1])
	}
	return s
}

// Join combines two raw condition strings so that both must hold. Either
// side may be empty.
func Join(a, b string) string {
	a, b = Strip(a), Strip(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " && " + b
}

// Parse compiles an expression string. An empty string parses to an
// expression that is always true.
func Parse(s string) (*Expr, error) {
	raw := s
	s = Strip(s)
	expr := &Expr{raw: raw}
	if s == "" {
		return expr, nil
	}

	for _, part := range strings.Split(s, "&&") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("condition: empty clause in %q", raw)
		}
		c, err := parseClause(part)
		if err != nil {
			return nil, err
		}
		expr.clauses = append(expr.clauses, c)
	}
	return expr, nil
}

func parseClause(s string) (clause, error) {
	// Predicate call form: name(arg).
	if open := strings.IndexByte(s, '('); open >= 0 && strings.HasSuffix(s, ")") {
		name := strings.TrimSpace(s[:open])
		key, ok := predicates[name]
		if !ok {
			return clause{}, fmt.Errorf("condition: unknown predicate %q", name)
		}
		return clause{kind: kindPredicate, key: key}, nil
	}

	for _, op := range ops {
		idx := strings.Index(s, string(op))
		if idx < 0 {
			continue
		}
		field := strings.TrimSpace(s[:idx])
		rhs := strings.TrimSpace(s[idx+len(op):])
		if field == "" || rhs == "" {
			return clause{}, fmt.Errorf("condition: malformed comparison %q", s)
		}
		value, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return clause{}, fmt.Errorf("condition: non-numeric operand %q in %q", rhs, s)
		}
		return clause{kind: kindCompare, field: field, op: op, value: value}, nil
	}

	return clause{}, fmt.Errorf("condition: unrecognised clause %q", s)
}

// Eval evaluates the expression against st. Missing fields read as zero.
func (e *Expr) Eval(st State) bool {
	for _, c := range e.clauses {
		if !c.eval(st) {
			return false
		}
	}
	return true
}

func (c clause) eval(st State) bool {
	if c.kind == kindPredicate {
		return st.Bool(c.key)
	}
	v := st[c.field]
	switch c.op {
	case OpGT:
		return v > c.value
	case OpLT:
		return v < c.value
	case OpGE:
		return v >= c.value
	case OpLE:
		return v <= c.value
	case OpEQ:
		return v == c.value
	case OpNE:
		return v != c.value
	}
	return false
}

// String returns the raw source text the expression was parsed from.
func (e *Expr) String() string { return e.raw }

// Evaluator caches parsed expressions and applies the fail-open policy:
// expressions that do not parse evaluate to true and are logged once.
// Failed strings cache a nil entry, so a bad condition costs one parse
// attempt total, not one per evaluation.
type Evaluator struct {
	log *logrus.Entry

	mu    sync.Mutex
	cache map[string]*Expr
}

// NewEvaluator builds an evaluator. A nil log entry discards warnings.
func NewEvaluator(log *logrus.Entry) *Evaluator {
	if log == nil {
		log = logging.Discard()
	}
	return &Evaluator{
		log:   log,
		cache: map[string]*Expr{},
	}
}

// Eval evaluates a raw expression string against st. It is total: parse
// failures warn and return true so that a bad condition degrades to "block
// always eligible" rather than killing the animation.
func (ev *Evaluator) Eval(raw string, st State) bool {
	expr := ev.compile(raw)
	if expr == nil {
		return true
	}
	return expr.Eval(st)
}

func (ev *Evaluator) compile(raw string) *Expr {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	if expr, ok := ev.cache[raw]; ok {
		return expr
	}
	expr, err := Parse(raw)
	if err != nil {
		ev.cache[raw] = nil
		ev.log.WithField("expr", raw).Warnf("unparseable condition treated as true: %v", err)
		return nil
	}
	ev.cache[raw] = expr
	return expr
}
