// Package behavior implements next-behavior selection: a weighted random
// walk over the behaviors declared by a pack.
package behavior

import (
	"errors"
	"math/rand"
	"sort"

	"github.com/auziqni/learn-shimeji-sub000/internal/condition"
	"github.com/auziqni/learn-shimeji-sub000/internal/descriptor"
)

// ErrNoCandidate is returned when no behavior is currently eligible.
var ErrNoCandidate = errors.New("behavior: no eligible behavior")

// Table selects behaviors against a shared pool. It holds no per-pet state;
// a single Table serves every pet instance of a pack.
type Table struct {
	pool map[string]descriptor.Behavior
	eval *condition.Evaluator
	rng  *rand.Rand
}

// NewTable builds a transition table over pool. rng may be seeded for
// deterministic tests; pass rand.New(rand.NewSource(time.Now().UnixNano()))
// in production.
func NewTable(pool map[string]descriptor.Behavior, eval *condition.Evaluator, rng *rand.Rand) *Table {
	return &Table{pool: pool, eval: eval, rng: rng}
}

// Next picks the behavior following current.
//
// When current declares an explicit next-behavior list, selection is a
// weighted draw over the references that resolve in the pool, weighted by
// each reference's own frequency. Dangling references are skipped. This is
// the only path by which hidden or zero-frequency behaviors are reachable.
//
// Otherwise selection is a free walk: a weighted draw over every
// non-hidden, positive-frequency behavior whose condition holds in st.
func (t *Table) Next(current *descriptor.Behavior, st condition.State) (string, error) {
	if current != nil && len(current.Next) > 0 {
		return t.fromReferences(current.Next)
	}
	return t.freeWalk(st)
}

func (t *Table) fromReferences(refs []descriptor.BehaviorRef) (string, error) {
	var names []string
	var weights []int
	for _, ref := range refs {
		if _, ok := t.pool[ref.Name]; !ok {
			continue
		}
		names = append(names, ref.Name)
		weights = append(weights, ref.Frequency)
	}
	if len(names) == 0 {
		return "", ErrNoCandidate
	}
	return t.draw(names, weights), nil
}

func (t *Table) freeWalk(st condition.State) (string, error) {
	var names []string
	var weights []int
	// Deterministic candidate order keeps seeded draws reproducible.
	for _, b := range sortedPool(t.pool) {
		if b.Hidden || b.Frequency <= 0 {
			continue
		}
		if b.Condition != "" && t.eval != nil && !t.eval.Eval(b.Condition, st) {
			continue
		}
		names = append(names, b.Name)
		weights = append(weights, b.Frequency)
	}
	if len(names) == 0 {
		return "", ErrNoCandidate
	}
	return t.draw(names, weights), nil
}

// draw performs a weighted random pick. An all-zero weight set degrades to
// a uniform pick so explicitly referenced zero-frequency behaviors stay
// selectable.
func (t *Table) draw(names []string, weights []int) string {
	total := 0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return names[t.rng.Intn(len(names))]
	}
	n := t.rng.Intn(total)
	for i, w := range weights {
		n -= w
		if n < 0 {
			return names[i]
		}
	}
	return names[len(names)-1]
}

func sortedPool(pool map[string]descriptor.Behavior) []descriptor.Behavior {
	names := make([]string, 0, len(pool))
	for name := range pool {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]descriptor.Behavior, len(names))
	for i, name := range names {
		out[i] = pool[name]
	}
	return out
}
